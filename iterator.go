// iterator.go - Cursor iteration over the official MongoDB driver

package report

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

var _ Cursor = (*Iter)(nil)

// Next decodes the next document into result. It returns false at the end
// of the cursor or on error; Err tells the two apart.
func (it *Iter) Next(ctx context.Context, result interface{}) bool {
	if it.err != nil {
		return false
	}

	if it.cursor == nil {
		it.err = ErrNotFound
		return false
	}

	if it.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, it.timeout)
		defer cancel()
	}

	if !it.cursor.Next(ctx) {
		// End of iteration is normal; only keep real errors
		it.err = it.cursor.Err()
		return false
	}

	var doc bson.M
	if err := it.cursor.Decode(&doc); err != nil {
		it.err = err
		return false
	}

	it.err = mapStructToInterface(doc, result)
	return it.err == nil
}

// Err returns the first error met by the iterator
func (it *Iter) Err() error {
	return it.err
}

// Close kills the server-side cursor. Closing twice is harmless.
func (it *Iter) Close(ctx context.Context) error {
	if it.cursor != nil {
		err := it.cursor.Close(ctx)
		it.cursor = nil
		if err != nil && it.err == nil {
			it.err = err
		}
		return err
	}
	return nil
}
