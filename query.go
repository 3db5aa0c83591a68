// query.go - Keyset query definition for collection traversals

package report

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// DefaultIDField is the identifier used for keyset pagination unless a
// Query names another one.
const DefaultIDField = "_id"

// Query is a filter plus the direction in which the identifier field is
// walked. The identifier must be unique and totally ordered.
type Query struct {
	Filter    bson.M
	Direction Direction
	IDField   string
}

// NewQuery returns a descending query over _id for the given filter. A nil
// filter matches every document.
func NewQuery(filter bson.M) Query {
	return Query{
		Filter:    filter,
		Direction: Descending,
		IDField:   DefaultIDField,
	}
}

// Ascending switches the query to ascending identifier order
func (q Query) Ascending() Query {
	q.Direction = Ascending
	return q
}

// Descending switches the query to descending identifier order
func (q Query) Descending() Query {
	q.Direction = Descending
	return q
}

// SortBy sets the identifier field and direction from a single sort key:
// "field" for ascending, "-field" for descending.
func (q Query) SortBy(key string) Query {
	q.Direction = Ascending
	if strings.HasPrefix(key, "-") {
		q.Direction = Descending
		key = key[1:]
	}
	if key != "" {
		q.IDField = key
	}
	return q
}

// Sort returns the sort document for the query's identifier and direction.
func (q Query) Sort() bson.D {
	return bson.D{{Key: q.idField(), Value: int(q.direction())}}
}

// normalize returns a copy with defaults applied and a private filter map,
// so a traversal never writes into the caller's filter.
func (q Query) normalize() Query {
	q.IDField = q.idField()
	q.Direction = q.direction()
	if q.Filter == nil {
		q.Filter = bson.M{}
	} else {
		q.Filter = cloneFilter(q.Filter)
	}
	return q
}

func (q Query) idField() string {
	if q.IDField == "" {
		return DefaultIDField
	}
	return q.IDField
}

// direction treats anything other than Ascending as the default descending order.
func (q Query) direction() Direction {
	if q.Direction == Ascending {
		return Ascending
	}
	return Descending
}
