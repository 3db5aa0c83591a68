// types.go - Type definitions for the collection walker and its MongoDB source

package report

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
)

// Session wraps a connected MongoDB client.
type Session struct {
	client *mongodrv.Client
	dbName string // from the URI path
}

// DB wraps a database handle
type DB struct {
	mgoDB   *mongodrv.Database
	name    string
	timeout time.Duration
}

// Collection wraps a collection handle and serves as a Source for walkers
type Collection struct {
	mgoColl *mongodrv.Collection
	name    string
	timeout time.Duration // Per round trip
}

// Iter wraps a server-side cursor
type Iter struct {
	cursor  *mongodrv.Cursor
	timeout time.Duration
	err     error
}

// Source is the data source a Walker traverses. Every method is one bounded
// round trip; implementations must never issue an unbounded read.
type Source interface {
	// CountUpTo counts documents matching filter, stopping at limit.
	CountUpTo(ctx context.Context, filter bson.M, limit int64) (int64, error)

	// FindBatch runs one sorted read returning at most limit documents.
	FindBatch(ctx context.Context, filter bson.M, sort bson.D, limit int64) ([]bson.M, error)

	// OpenCursor opens a sorted cursor over at most limit documents that does
	// not expire from inactivity while open.
	OpenCursor(ctx context.Context, filter bson.M, sort bson.D, limit int64) (Cursor, error)
}

// Cursor is a sequential document source opened by Source.OpenCursor.
type Cursor interface {
	Next(ctx context.Context, result interface{}) bool
	Err() error
	Close(ctx context.Context) error
}

// Direction is the sort direction of a traversal over the identifier field.
type Direction int

const (
	// Descending walks from the highest identifier down. It is the default.
	Descending Direction = -1
	// Ascending walks from the lowest identifier up.
	Ascending Direction = 1
)

func (d Direction) String() string {
	if d == Ascending {
		return "ascending"
	}
	return "descending"
}

// Mode is the traversal strategy chosen by a Walker on first use.
type Mode int

const (
	// ModeUnset means the walker has not selected a strategy yet.
	ModeUnset Mode = iota
	// ModeArray buffers bounded pages in memory.
	ModeArray
	// ModeCursor streams bounded pages through server-side cursors.
	ModeCursor
)

func (m Mode) String() string {
	switch m {
	case ModeArray:
		return "array"
	case ModeCursor:
		return "cursor"
	default:
		return "unset"
	}
}

// State is the lifecycle state of a Walker. Transitions only move forward.
type State int

const (
	Uninitialized State = iota
	ModeSelected
	Active
	Exhausted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ModeSelected:
		return "mode-selected"
	case Active:
		return "active"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
