// stream.go - Cursor mode: bounded server-side cursors re-opened per page

package report

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// streamCursor keeps one server-side cursor of at most limit documents open
// at a time. The cursor is opened without an idle timeout so a slow consumer
// cannot lose it mid-page, and it is replaced rather than kept for the whole
// collection.
type streamCursor struct {
	src   Source
	limit int64
	cur   Cursor
	taken int64
}

func newStreamCursor(src Source, limit int64) *streamCursor {
	return &streamCursor{src: src, limit: limit}
}

// open closes the current cursor, if any, and opens a replacement.
func (s *streamCursor) open(ctx context.Context, filter bson.M, sort bson.D) error {
	if err := s.close(ctx); err != nil {
		return err
	}

	cur, err := s.src.OpenCursor(ctx, filter, sort, s.limit)
	if err != nil {
		return wrapSource("open", err)
	}
	s.cur = cur
	s.taken = 0
	return nil
}

// takeOne advances the cursor by one document. ok is false once the cursor
// is exhausted or the page limit has been reached.
func (s *streamCursor) takeOne(ctx context.Context) (bson.M, bool, error) {
	if s.cur == nil || s.taken >= s.limit {
		return nil, false, nil
	}

	var doc bson.M
	if !s.cur.Next(ctx, &doc) {
		if err := s.cur.Err(); err != nil {
			return nil, false, wrapSource("cursor", err)
		}
		return nil, false, nil
	}
	s.taken++
	return doc, true, nil
}

// close releases the cursor. Calling it again is a no-op.
func (s *streamCursor) close(ctx context.Context) error {
	if s.cur == nil {
		return nil
	}
	cur := s.cur
	s.cur = nil
	return wrapSource("cursor", cur.Close(ctx))
}

func (s *streamCursor) load(ctx context.Context, filter bson.M, sort bson.D) error {
	return s.open(ctx, filter, sort)
}

func (s *streamCursor) take(ctx context.Context) (bson.M, bool, error) {
	return s.takeOne(ctx)
}
