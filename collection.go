// collection.go - Collection operations backing walker traversals

package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Source = (*Collection)(nil)

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// WithTimeout returns a handle whose round trips are each limited to d.
// A zero d disables the per-operation limit.
func (c *Collection) WithTimeout(d time.Duration) *Collection {
	copied := *c
	copied.timeout = d
	return &copied
}

func (c *Collection) roundTrip(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// CountUpTo counts documents matching filter, stopping at limit. A limit of
// zero or less counts every match.
func (c *Collection) CountUpTo(ctx context.Context, filter bson.M, limit int64) (int64, error) {
	ctx, cancel := c.roundTrip(ctx)
	defer cancel()

	opts := options.Count()
	if limit > 0 {
		opts.SetLimit(limit)
	}

	count, err := c.mgoColl.CountDocuments(ctx, filter, opts)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count documents in %q", c.name)
	}
	return count, nil
}

// FindBatch reads at most limit documents matching filter in sort order.
func (c *Collection) FindBatch(ctx context.Context, filter bson.M, sort bson.D, limit int64) ([]bson.M, error) {
	ctx, cancel := c.roundTrip(ctx)
	defer cancel()

	findOpts := options.Find().SetSort(sort).SetLimit(limit)
	if limit > 0 && limit <= int64(^uint32(0)>>1) {
		// The whole page fits in the first reply
		findOpts.SetBatchSize(int32(limit))
	}

	cursor, err := c.mgoColl.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %q", c.name)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "failed to read page from %q", c.name)
	}
	return docs, nil
}

// OpenCursor opens a cursor over at most limit documents matching filter in
// sort order. The cursor is flagged to survive idle periods on the server, so
// it must be closed by the caller.
func (c *Collection) OpenCursor(ctx context.Context, filter bson.M, sort bson.D, limit int64) (Cursor, error) {
	openCtx, cancel := c.roundTrip(ctx)
	defer cancel()

	findOpts := options.Find().
		SetSort(sort).
		SetLimit(limit).
		SetNoCursorTimeout(true)

	cursor, err := c.mgoColl.Find(openCtx, filter, findOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cursor on %q", c.name)
	}

	return &Iter{
		cursor:  cursor,
		timeout: c.timeout,
	}, nil
}

// Insert inserts documents, giving any document without an _id a fresh
// ObjectID.
func (c *Collection) Insert(docs ...interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prepared := make([]interface{}, len(docs))
	for i, doc := range docs {
		prepared[i] = ensureObjectId(doc)
	}

	if len(prepared) == 1 {
		_, err := c.mgoColl.InsertOne(ctx, prepared[0])
		return err
	}
	_, err := c.mgoColl.InsertMany(ctx, prepared)
	return err
}

// Count counts every document in the collection
func (c *Collection) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := c.mgoColl.CountDocuments(ctx, bson.M{})
	return int(count), err
}

// DropCollection drops the collection
func (c *Collection) DropCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return c.mgoColl.Drop(ctx)
}

// ensureObjectId adds an _id to map documents that lack one
func ensureObjectId(doc interface{}) interface{} {
	switch v := doc.(type) {
	case bson.M:
		if _, hasId := v["_id"]; !hasId {
			v["_id"] = primitive.NewObjectID()
		}
		return v
	case map[string]interface{}:
		if _, hasId := v["_id"]; !hasId {
			v["_id"] = primitive.NewObjectID()
		}
		return v
	default:
		return doc
	}
}
