// utils.go - Utility functions shared by the walker and the MongoDB source

package report

import (
	"bytes"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mapStructToInterface decodes src into dst, respecting bson tags.
func mapStructToInterface(src, dst interface{}) error {
	if src == nil {
		return ErrNotFound
	}

	// Fast path for callers that want the raw document
	if doc, ok := src.(bson.M); ok {
		if out, ok := dst.(*bson.M); ok {
			*out = doc
			return nil
		}
	}

	data, err := bson.Marshal(src)
	if err != nil {
		return err
	}
	return bson.Unmarshal(data, dst)
}

// cloneFilter returns a shallow copy of filter so the caller's map is never
// mutated by a traversal.
func cloneFilter(filter bson.M) bson.M {
	result := make(bson.M, len(filter))
	for key, value := range filter {
		result[key] = value
	}
	return result
}

// LookupPath returns the value at a dotted path inside doc, descending into
// embedded documents and arrays ("items.0.sku").
func LookupPath(doc interface{}, path string) (interface{}, bool) {
	current := doc
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case bson.M:
			value, ok := v[part]
			if !ok {
				return nil, false
			}
			current = value
		case map[string]interface{}:
			value, ok := v[part]
			if !ok {
				return nil, false
			}
			current = value
		case bson.D:
			found := false
			for _, elem := range v {
				if elem.Key == part {
					current = elem.Value
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		case bson.A:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}
			current = v[index]
		case []interface{}:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}
			current = v[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// compareIDs orders two identifier values. ok is false when the values are of
// types that cannot be ordered against each other; equal values of any type
// still compare as 0.
func compareIDs(a, b interface{}) (cmp int, ok bool) {
	switch x := a.(type) {
	case primitive.ObjectID:
		if y, isOID := b.(primitive.ObjectID); isOID {
			return bytes.Compare(x[:], y[:]), true
		}
	case string:
		if y, isString := b.(string); isString {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, isTime := asTime(b); isTime {
			return x.Compare(y), true
		}
	case primitive.DateTime:
		if y, isTime := asTime(b); isTime {
			return x.Time().Compare(y), true
		}
	}

	if x, isInt := asInt64(a); isInt {
		if y, isInt := asInt64(b); isInt {
			return compareOrdered(x, y), true
		}
	}
	if x, isNum := asFloat64(a); isNum {
		if y, isNum := asFloat64(b); isNum {
			return compareOrdered(x, y), true
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}

func compareOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
