package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mashup/internal/config"
)

// Store persists jobs in a single SQLite file shared by the service and the
// CLI.
type Store struct {
	db   *sqlx.DB
	path string
}

// busyBackoff is the wait before each retry of a write that hit SQLITE_BUSY.
var busyBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
}

// Open creates the state directory if needed and opens the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens (creating when absent) the job database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	// Set per connection through the DSN; the pool may open several.
	q := url.Values{"_pragma": {"journal_mode(WAL)", "busy_timeout(5000)", "foreign_keys(1)"}}
	db, err := sqlx.Open("sqlite", "file:"+dbPath+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	s := &Store{db: db, path: dbPath}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open job database %s: %w", dbPath, err)
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the database file location.
func (s *Store) Path() string { return s.path }

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func isBusy(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY
}

// execWithRetry runs a write statement, retrying while another connection
// holds the write lock, and returns the affected row count.
func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (int64, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; ; attempt++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res.RowsAffected()
		}
		if !isBusy(err) || attempt >= len(busyBackoff) {
			return 0, err
		}
		select {
		case <-time.After(busyBackoff[attempt]):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
