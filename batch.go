// batch.go - Array mode: bounded pages buffered in memory

package report

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// strategy is one traversal mode. load replaces the current page, take pops
// one document (ok=false once the page is drained), close releases any
// server-side state.
type strategy interface {
	load(ctx context.Context, filter bson.M, sort bson.D) error
	take(ctx context.Context) (doc bson.M, ok bool, err error)
	close(ctx context.Context) error
}

// batchFetcher serves documents from an in-memory page of at most limit
// documents.
type batchFetcher struct {
	src   Source
	limit int64
	buf   []bson.M
	pos   int
}

func newBatchFetcher(src Source, limit int64) *batchFetcher {
	return &batchFetcher{src: src, limit: limit}
}

// refill runs one bounded read and replaces the buffer.
func (b *batchFetcher) refill(ctx context.Context, filter bson.M, sort bson.D) error {
	b.buf, b.pos = nil, 0

	docs, err := b.src.FindBatch(ctx, filter, sort, b.limit)
	if err != nil {
		return wrapSource("find", err)
	}
	// A source that ignores the limit must not grow the buffer past it
	if int64(len(docs)) > b.limit {
		docs = docs[:b.limit]
	}
	b.buf = docs
	return nil
}

// takeOne pops the oldest buffered document in sort order
func (b *batchFetcher) takeOne() (bson.M, bool) {
	if b.pos >= len(b.buf) {
		return nil, false
	}
	doc := b.buf[b.pos]
	b.buf[b.pos] = nil
	b.pos++
	return doc, true
}

// buffered returns the number of documents not yet taken
func (b *batchFetcher) buffered() int {
	return len(b.buf) - b.pos
}

func (b *batchFetcher) load(ctx context.Context, filter bson.M, sort bson.D) error {
	return b.refill(ctx, filter, sort)
}

func (b *batchFetcher) take(context.Context) (bson.M, bool, error) {
	doc, ok := b.takeOne()
	return doc, ok, nil
}

func (b *batchFetcher) close(context.Context) error {
	b.buf, b.pos = nil, 0
	return nil
}
