// watermark.go - Last-seen identifier tracking for keyset pagination

package report

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Watermark holds the identifier of the last document yielded by a
// traversal and derives the predicate that bounds the next page.
type Watermark struct {
	field     string
	direction Direction
	last      interface{}
	set       bool
}

// NewWatermark returns an unset watermark for field walked in direction.
func NewWatermark(field string, direction Direction) *Watermark {
	if field == "" {
		field = DefaultIDField
	}
	if direction != Ascending {
		direction = Descending
	}
	return &Watermark{field: field, direction: direction}
}

// Advance records doc's identifier as the new watermark. The identifier must
// move strictly forward in the traversal direction.
func (w *Watermark) Advance(doc bson.M) error {
	id, ok := LookupPath(doc, w.field)
	if !ok || id == nil {
		return &InvariantViolation{Field: w.field, Previous: w.last}
	}

	if w.set {
		cmp, comparable := compareIDs(id, w.last)
		// Incomparable types are left to the server's ordering
		if comparable && cmp*int(w.direction) <= 0 {
			return &InvariantViolation{Field: w.field, Previous: w.last, Current: id}
		}
	}

	w.last = id
	w.set = true
	return nil
}

// IsSet reports whether any document has been recorded
func (w *Watermark) IsSet() bool {
	return w.set
}

// Last returns the current watermark value, or nil when unset
func (w *Watermark) Last() interface{} {
	return w.last
}

// Bound returns the predicate fragment for the next page: nil before the
// first document, then {field: {$lt: last}} descending or {$gt: last}
// ascending.
func (w *Watermark) Bound() bson.M {
	if !w.set {
		return nil
	}
	return bson.M{w.field: bson.M{w.operator(): w.last}}
}

// Apply returns a copy of filter narrowed by the current bound. An existing
// constraint on the identifier field is preserved through $and.
func (w *Watermark) Apply(filter bson.M) bson.M {
	bound := w.Bound()
	if bound == nil {
		return filter
	}
	if _, constrained := filter[w.field]; !constrained {
		result := cloneFilter(filter)
		result[w.field] = bound[w.field]
		return result
	}
	return bson.M{"$and": bson.A{filter, bound}}
}

func (w *Watermark) operator() string {
	if w.direction == Ascending {
		return "$gt"
	}
	return "$lt"
}
