// errors.go - Error types returned by walkers and exports

package report

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an iterator has no cursor to read from.
var ErrNotFound = errors.New("not found")

// Errors returned while resolving an export. They mirror the messages the
// export registry has always reported to operators.
var (
	ErrGeneratorNotFound      = errors.New("generator not found: check the generators passed to the registry")
	ErrModelNotFound          = errors.New("model not found: check the model name and the source resolver")
	ErrDefaultQueryBuilderNil = errors.New("default query builder is not set: register one or add a model-specific query")
	ErrInvalidOption          = errors.New("invalid export option")
)

// DataSourceError wraps any failure from the count, read or cursor operations
// of a Source. It is always surfaced to the caller of Walker.Next.
type DataSourceError struct {
	Op  string // "count", "find", "open" or "cursor"
	Err error
}

func (err *DataSourceError) Error() string {
	if err == nil {
		return "<nil>"
	}
	return "data source " + err.Op + ": " + err.Err.Error()
}

func (err *DataSourceError) Unwrap() error {
	return err.Err
}

// InvariantViolation reports a document whose identifier does not advance
// the watermark in the traversal direction. It indicates non-unique or
// non-monotonic identifiers rather than a transient failure.
type InvariantViolation struct {
	Field    string
	Previous interface{}
	Current  interface{}
}

func (err *InvariantViolation) Error() string {
	if err == nil {
		return "<nil>"
	}
	if err.Current == nil {
		return fmt.Sprintf("invariant violation: document has no %q field", err.Field)
	}
	return fmt.Sprintf("invariant violation: %s %v does not advance past watermark %v", err.Field, err.Current, err.Previous)
}

// wrapSource turns a source failure into a *DataSourceError, leaving nil and
// already wrapped errors untouched.
func wrapSource(op string, err error) error {
	if err == nil {
		return nil
	}
	var dsErr *DataSourceError
	if errors.As(err, &dsErr) {
		return err
	}
	return &DataSourceError{Op: op, Err: err}
}
