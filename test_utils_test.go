package report

import (
	"context"
	"errors"
	"os"
	"reflect"
	"sort"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestDB holds a live MongoDB connection for integration tests
type TestDB struct {
	Session *Session
	DBName  string
}

// NewTestDB connects to the MongoDB named by MONGODB_TEST_URL and skips the
// test when the variable is unset.
func NewTestDB(t *testing.T) *TestDB {
	mongoURL := os.Getenv("MONGODB_TEST_URL")
	if mongoURL == "" {
		t.Skip("MONGODB_TEST_URL not set; skipping MongoDB integration test")
	}

	session, err := DialWithTimeout(mongoURL, 30*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect to test MongoDB: %v", err)
	}

	if err := session.Ping(context.Background()); err != nil {
		t.Fatalf("Test MongoDB does not answer: %v", err)
	}

	// A unique database per test run
	dbName := "mgo_report_test_" + primitive.NewObjectID().Hex()

	return &TestDB{
		Session: session,
		DBName:  dbName,
	}
}

// Close drops the test database and closes the connection
func (tdb *TestDB) Close(t *testing.T) {
	if tdb.Session != nil {
		if err := tdb.Session.DB(tdb.DBName).DropDatabase(); err != nil {
			t.Logf("Warning: Failed to drop test database: %v", err)
		}
		if err := tdb.Session.Close(context.Background()); err != nil {
			t.Logf("Warning: Failed to disconnect: %v", err)
		}
	}
}

// C returns a collection from the test database
func (tdb *TestDB) C(collection string) *Collection {
	return tdb.Session.DB(tdb.DBName).C(collection)
}

// AssertError checks if an error occurred when one was expected
func AssertError(t *testing.T, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error but got none: %s", message)
	}
}

// AssertNoError checks if no error occurred when none was expected
func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %s - %v", message, err)
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}, message string) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("%s - Expected: %v, Got: %v", message, expected, actual)
	}
}

// errInjected is the failure memSource returns when told to fail
var errInjected = errors.New("injected failure")

// memSource is an in-memory Source. It applies the subset of query operators
// walkers generate ($lt, $gt, $gte, $lte, $and, equality), records every
// call, and fails a chosen call of each operation on demand.
type memSource struct {
	docs    []bson.M
	idField string

	calls  map[string]int
	failAt map[string]int // op -> 1-based call number that fails

	limits      []int64
	filters     []bson.M
	openCursors int
	closed      int

	// cursorFailAfter makes cursor reads fail after that many documents
	// across all cursors; zero disables it.
	cursorFailAfter int
	cursorRead      int
}

// newMemSource returns a source holding documents with _id 1..n
func newMemSource(n int) *memSource {
	docs := make([]bson.M, n)
	for i := range docs {
		docs[i] = bson.M{"_id": int64(i + 1), "seq": i + 1, "even": (i+1)%2 == 0}
	}
	return &memSource{
		docs:    docs,
		idField: "_id",
		calls:   map[string]int{},
		failAt:  map[string]int{},
	}
}

// totalCalls counts every data source operation so far
func (s *memSource) totalCalls() int {
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *memSource) record(op string, filter bson.M, limit int64) error {
	s.calls[op]++
	s.filters = append(s.filters, filter)
	s.limits = append(s.limits, limit)
	if at, ok := s.failAt[op]; ok && at == s.calls[op] {
		return errInjected
	}
	return nil
}

func (s *memSource) matching(filter bson.M, sortDoc bson.D) []bson.M {
	var result []bson.M
	for _, doc := range s.docs {
		if matchFilter(doc, filter) {
			result = append(result, doc)
		}
	}
	if len(sortDoc) > 0 {
		field := sortDoc[0].Key
		dir, _ := sortDoc[0].Value.(int)
		sort.SliceStable(result, func(i, j int) bool {
			a, _ := LookupPath(result[i], field)
			b, _ := LookupPath(result[j], field)
			cmp, _ := compareIDs(a, b)
			return cmp*dir < 0
		})
	}
	return result
}

func (s *memSource) CountUpTo(_ context.Context, filter bson.M, limit int64) (int64, error) {
	if err := s.record("count", filter, limit); err != nil {
		return 0, err
	}
	n := int64(len(s.matching(filter, nil)))
	if limit > 0 && n > limit {
		n = limit
	}
	return n, nil
}

func (s *memSource) FindBatch(_ context.Context, filter bson.M, sortDoc bson.D, limit int64) ([]bson.M, error) {
	if err := s.record("find", filter, limit); err != nil {
		return nil, err
	}
	docs := s.matching(filter, sortDoc)
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return copyDocs(docs), nil
}

func (s *memSource) OpenCursor(_ context.Context, filter bson.M, sortDoc bson.D, limit int64) (Cursor, error) {
	if err := s.record("open", filter, limit); err != nil {
		return nil, err
	}
	docs := s.matching(filter, sortDoc)
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	s.openCursors++
	return &memCursor{src: s, docs: copyDocs(docs)}, nil
}

func copyDocs(docs []bson.M) []bson.M {
	out := make([]bson.M, len(docs))
	for i, doc := range docs {
		out[i] = cloneFilter(doc)
	}
	return out
}

type memCursor struct {
	src    *memSource
	docs   []bson.M
	pos    int
	err    error
	closed bool
}

func (c *memCursor) Next(_ context.Context, result interface{}) bool {
	if c.closed || c.err != nil || c.pos >= len(c.docs) {
		return false
	}
	if c.src.cursorFailAfter > 0 && c.src.cursorRead >= c.src.cursorFailAfter {
		c.err = errInjected
		return false
	}
	doc := c.docs[c.pos]
	c.pos++
	c.src.cursorRead++
	c.err = mapStructToInterface(doc, result)
	return c.err == nil
}

func (c *memCursor) Err() error {
	return c.err
}

func (c *memCursor) Close(context.Context) error {
	if !c.closed {
		c.closed = true
		c.src.openCursors--
		c.src.closed++
	}
	return nil
}

func matchFilter(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		if key == "$and" {
			clauses, _ := want.(bson.A)
			for _, clause := range clauses {
				sub, _ := clause.(bson.M)
				if !matchFilter(doc, sub) {
					return false
				}
			}
			continue
		}

		got, found := LookupPath(doc, key)
		ops, isOps := want.(bson.M)
		if !isOps {
			if !found {
				return false
			}
			if cmp, ok := compareIDs(got, want); !ok || cmp != 0 {
				return false
			}
			continue
		}
		if !found {
			return false
		}
		for op, bound := range ops {
			cmp, ok := compareIDs(got, bound)
			if !ok {
				return false
			}
			switch op {
			case "$lt":
				if cmp >= 0 {
					return false
				}
			case "$lte":
				if cmp > 0 {
					return false
				}
			case "$gt":
				if cmp <= 0 {
					return false
				}
			case "$gte":
				if cmp < 0 {
					return false
				}
			case "$eq":
				if cmp != 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
