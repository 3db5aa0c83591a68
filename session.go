// session.go - Session operations over the official MongoDB driver

package report

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultOperationTimeout = 10 * time.Second

// DialWithTimeout connects to mongoURL, enforcing timeout on the initial
// handshake. The default database is taken from the URI path, falling back
// to "test".
func DialWithTimeout(mongoURL string, timeout time.Duration) (*Session, error) {
	// Honour zero or negative timeouts by falling back to the default of 10s
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Exports only read; retryable writes buy nothing and fail on standalones
	clientOptions := options.Client().ApplyURI(mongoURL).SetRetryWrites(false)

	client, err := mongodrv.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", redactURI(mongoURL))
	}

	return &Session{client: client, dbName: databaseFromURI(mongoURL)}, nil
}

// Close disconnects the client. Cursors opened through the session must be
// closed first.
func (s *Session) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks that the deployment answers on the primary, so a bad URI or
// an unreachable server fails before an export starts.
func (s *Session) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "failed to reach MongoDB")
	}
	return nil
}

// DB returns a database handle. An empty name selects the URI's database.
func (s *Session) DB(name string) *DB {
	if name == "" {
		name = s.dbName
	}
	return &DB{
		mgoDB:   s.client.Database(name),
		name:    name,
		timeout: defaultOperationTimeout,
	}
}

// WithTimeout returns a handle whose collections limit each round trip to d
func (db *DB) WithTimeout(d time.Duration) *DB {
	copied := *db
	copied.timeout = d
	return &copied
}

// Name returns the database name
func (db *DB) Name() string {
	return db.name
}

// C returns a collection handle
func (db *DB) C(name string) *Collection {
	return &Collection{
		mgoColl: db.mgoDB.Collection(name),
		name:    name,
		timeout: db.timeout,
	}
}

// DropDatabase drops the database
func (db *DB) DropDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return db.mgoDB.Drop(ctx)
}

// databaseFromURI returns the database named in the URI path, or "test".
func databaseFromURI(mongoURL string) string {
	parsed, err := url.Parse(mongoURL)
	if err != nil {
		return "test"
	}
	if name := strings.TrimPrefix(parsed.Path, "/"); name != "" {
		return name
	}
	return "test"
}

// redactURI strips credentials from a connection string for log and error text.
func redactURI(mongoURL string) string {
	parsed, err := url.Parse(mongoURL)
	if err != nil || parsed.User == nil {
		return mongoURL
	}
	parsed.User = url.User("xxx")
	return parsed.String()
}
