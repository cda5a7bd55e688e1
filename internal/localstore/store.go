// Package localstore is the best-effort local persistence layer: named JSON
// blobs in an embedded SQLite database, used as the offline fallback and
// cache for remotely synced state. Reads are synchronous; writes are
// debounced per key so bursts of saves collapse into one physical write.
// Load and save outcomes, including failures, are reported to registered
// listeners — the failure path is never silent.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/priceloom/priceloom/internal/debounce"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultSaveDelay is the quiet interval before a Save hits disk.
const DefaultSaveDelay = 500 * time.Millisecond

// Listener receives the outcome of a load or save for one key. On success
// errDesc is empty; on failure value is the best-available value (the
// fallback for loads, the unsaved payload for saves) and errDesc is a
// non-empty description.
type Listener func(value []byte, errDesc string)

type subscription struct {
	key string
	fn  Listener
}

// Store persists named JSON blobs. A Store opened without a database path
// runs headless: loads return the fallback and saves are no-ops, so code
// paths that persist opportunistically need no special casing.
type Store struct {
	db     *sql.DB // nil in headless mode
	deb    *debounce.Debouncer
	logger *slog.Logger

	mu       sync.Mutex
	loadSubs []*subscription
	saveSubs []*subscription

	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
}

// Open creates a Store backed by the SQLite database at dbPath, applying
// embedded migrations. An empty dbPath returns a headless Store. Use
// ":memory:" for tests.
func Open(dbPath string, saveDelay time.Duration, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		logger.Debug("local store running headless")

		return &Store{logger: logger, deb: debounce.New(saveDelay, logger)}, nil
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", dbPath, err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		deb:    debounce.New(saveDelay, logger),
		logger: logger,
	}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("local store ready", slog.String("path", dbPath))

	return s, nil
}

// runMigrations applies all pending schema migrations via the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("localstore: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("localstore: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("localstore: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	s.getStmt, err = s.db.PrepareContext(ctx, `SELECT value FROM blobs WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("localstore: prepare get: %w", err)
	}

	s.upsertStmt, err = s.db.PrepareContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("localstore: prepare upsert: %w", err)
	}

	return nil
}

// Close flushes pending debounced saves and closes the database.
func (s *Store) Close() error {
	s.deb.FlushAll()

	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Load returns the stored blob for key if present and parseable as JSON,
// else fallback. Load-listeners for the key are notified with the stored
// value on success, or with (fallback, error description) on a missing
// key, empty value, or parse failure. Headless stores return fallback
// without notifying.
func (s *Store) Load(key string, fallback []byte) []byte {
	if s.db == nil {
		return fallback
	}

	var value []byte

	err := s.getStmt.QueryRow(key).Scan(&value)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.loadFailed(key, fallback, fmt.Sprintf("no value stored for %q", key))
	case err != nil:
		return s.loadFailed(key, fallback, fmt.Sprintf("reading %q: %v", key, err))
	case len(value) == 0:
		return s.loadFailed(key, fallback, fmt.Sprintf("empty value stored for %q", key))
	case !json.Valid(value):
		return s.loadFailed(key, fallback, fmt.Sprintf("corrupt value stored for %q", key))
	}

	s.notify(s.loadSubscribers(key), value, "")

	return value
}

func (s *Store) loadFailed(key string, fallback []byte, desc string) []byte {
	s.logger.Warn("local load failed", slog.String("key", key), slog.String("error", desc))
	s.notify(s.loadSubscribers(key), fallback, desc)

	return fallback
}

// Save schedules a fire-and-forget debounced write of value under key.
// Bursts of saves to the same key collapse into one physical write of the
// latest value. Save-listeners are notified with the value on success, or
// with (value, error description) on failure. Headless stores do nothing.
func (s *Store) Save(key string, value []byte) {
	if s.db == nil {
		return
	}

	s.deb.Schedule(key, func() { s.write(key, value) })
}

// Flush performs any pending save for key immediately. Returns false if
// nothing was pending.
func (s *Store) Flush(key string) bool {
	return s.deb.Flush(key)
}

// write is the physical save, run by the debouncer after the quiet
// interval.
func (s *Store) write(key string, value []byte) {
	_, err := s.upsertStmt.Exec(key, value, time.Now().UnixMilli())
	if err != nil {
		desc := fmt.Sprintf("saving %q: %v", key, err)
		s.logger.Warn("local save failed", slog.String("key", key), slog.String("error", desc))
		s.notify(s.saveSubscribers(key), value, desc)

		return
	}

	s.logger.Debug("local save", slog.String("key", key), slog.Int("bytes", len(value)))
	s.notify(s.saveSubscribers(key), value, "")
}

// SubscribeToLoad registers a listener for load outcomes of key. The
// returned function removes exactly this (key, listener) registration.
func (s *Store) SubscribeToLoad(key string, fn Listener) func() {
	return s.subscribe(&s.loadSubs, key, fn)
}

// SubscribeToSave registers a listener for save outcomes of key. The
// returned function removes exactly this (key, listener) registration.
func (s *Store) SubscribeToSave(key string, fn Listener) func() {
	return s.subscribe(&s.saveSubs, key, fn)
}

func (s *Store) subscribe(list *[]*subscription, key string, fn Listener) func() {
	sub := &subscription{key: key, fn: fn}

	s.mu.Lock()
	*list = append(*list, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, candidate := range *list {
			if candidate == sub {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) loadSubscribers(key string) []Listener {
	return s.subscribersFor(&s.loadSubs, key)
}

func (s *Store) saveSubscribers(key string) []Listener {
	return s.subscribersFor(&s.saveSubs, key)
}

func (s *Store) subscribersFor(list *[]*subscription, key string) []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fns []Listener

	for _, sub := range *list {
		if sub.key == key {
			fns = append(fns, sub.fn)
		}
	}

	return fns
}

func (s *Store) notify(fns []Listener, value []byte, errDesc string) {
	for _, fn := range fns {
		fn(value, errDesc)
	}
}
