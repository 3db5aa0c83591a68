package report

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestWatermarkUnsetBound tests that a fresh watermark adds no predicate
func TestWatermarkUnsetBound(t *testing.T) {
	mark := NewWatermark("", Descending)

	if mark.IsSet() {
		t.Fatal("Expected fresh watermark to be unset")
	}
	if mark.Bound() != nil {
		t.Errorf("Expected nil bound, got %v", mark.Bound())
	}

	filter := bson.M{"status": "paid"}
	AssertEqual(t, filter, mark.Apply(filter), "Unset watermark changed the filter")
}

// TestWatermarkDirection tests the comparison operator per direction
func TestWatermarkDirection(t *testing.T) {
	desc := NewWatermark("_id", Descending)
	AssertNoError(t, desc.Advance(bson.M{"_id": 10}), "Descending advance")
	AssertEqual(t, bson.M{"_id": bson.M{"$lt": 10}}, desc.Bound(), "Descending bound")

	asc := NewWatermark("_id", Ascending)
	AssertNoError(t, asc.Advance(bson.M{"_id": 10}), "Ascending advance")
	AssertEqual(t, bson.M{"_id": bson.M{"$gt": 10}}, asc.Bound(), "Ascending bound")

	// Anything but Ascending walks descending
	other := NewWatermark("_id", Direction(7))
	AssertNoError(t, other.Advance(bson.M{"_id": 1}), "Unknown direction advance")
	AssertEqual(t, bson.M{"_id": bson.M{"$lt": 1}}, other.Bound(), "Unknown direction bound")
}

// TestWatermarkStrictAdvance tests that identifiers must strictly advance
func TestWatermarkStrictAdvance(t *testing.T) {
	mark := NewWatermark("_id", Descending)
	AssertNoError(t, mark.Advance(bson.M{"_id": int64(5)}), "First advance")
	AssertNoError(t, mark.Advance(bson.M{"_id": int32(4)}), "Mixed integer widths advance")

	err := mark.Advance(bson.M{"_id": int64(4)})
	var violation *InvariantViolation
	if !errors.As(err, &violation) {
		t.Fatalf("Expected InvariantViolation for repeated id, got %v", err)
	}
	AssertEqual(t, int32(4), violation.Previous, "Violation previous value")
	AssertEqual(t, int64(4), violation.Current, "Violation current value")

	// A rejected document leaves the watermark where it was
	AssertEqual(t, int32(4), mark.Last(), "Watermark moved on violation")

	if err := mark.Advance(bson.M{"_id": int64(9)}); err == nil {
		t.Error("Expected backwards id to be rejected")
	}
}

// TestWatermarkMissingID tests documents without the identifier field
func TestWatermarkMissingID(t *testing.T) {
	mark := NewWatermark("_id", Ascending)

	err := mark.Advance(bson.M{"name": "no id"})
	var violation *InvariantViolation
	if !errors.As(err, &violation) {
		t.Fatalf("Expected InvariantViolation, got %v", err)
	}
	AssertEqual(t, `invariant violation: document has no "_id" field`, err.Error(), "Missing id message")
	if mark.IsSet() {
		t.Error("Watermark should stay unset")
	}
}

// TestWatermarkObjectIDs tests ordering of ObjectIds
func TestWatermarkObjectIDs(t *testing.T) {
	older := primitive.NewObjectIDFromTimestamp(time.Unix(100, 0))
	newer := primitive.NewObjectIDFromTimestamp(time.Unix(200, 0))

	mark := NewWatermark("_id", Descending)
	AssertNoError(t, mark.Advance(bson.M{"_id": newer}), "Newer first")
	AssertNoError(t, mark.Advance(bson.M{"_id": older}), "Older second")

	if err := mark.Advance(bson.M{"_id": newer}); err == nil {
		t.Error("Expected ObjectId moving backwards to be rejected")
	}
}

// TestWatermarkApply tests filter composition
func TestWatermarkApply(t *testing.T) {
	mark := NewWatermark("_id", Descending)
	AssertNoError(t, mark.Advance(bson.M{"_id": 42}), "Advance")

	filter := bson.M{"status": "paid"}
	applied := mark.Apply(filter)
	AssertEqual(t, bson.M{"status": "paid", "_id": bson.M{"$lt": 42}}, applied, "Applied filter")
	AssertEqual(t, bson.M{"status": "paid"}, filter, "Caller filter was mutated")

	// An existing identifier constraint is kept alongside the bound
	constrained := bson.M{"_id": bson.M{"$gte": 10}}
	applied = mark.Apply(constrained)
	expected := bson.M{"$and": bson.A{constrained, bson.M{"_id": bson.M{"$lt": 42}}}}
	AssertEqual(t, expected, applied, "Constrained filter")
}

// TestWatermarkNestedField tests a dotted identifier path
func TestWatermarkNestedField(t *testing.T) {
	mark := NewWatermark("meta.seq", Ascending)
	AssertNoError(t, mark.Advance(bson.M{"meta": bson.M{"seq": 3}}), "Nested advance")
	AssertEqual(t, bson.M{"meta.seq": bson.M{"$gt": 3}}, mark.Bound(), "Nested bound")
}
