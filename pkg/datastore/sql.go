package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const dbTimeLayout = "2006-01-02 15:04:05"

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

func (p *baseProvider) Close() error {
	return nil
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory provides database access for the key-value schema.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf ProviderFactory) NonTx() DataStore {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf ProviderFactory) Tx(ctx context.Context) (DataStoreTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs migrations.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	DB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := DB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := DB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *ProviderFactory) Close() error {
	return s.DB.Close()
}

func (s *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		collection TEXT NOT NULL CHECK(length(collection) > 0),
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"ALTER TABLE kv ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	return s.NonTx().SchemaVersion(ctx)
}

func (s *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

func (s *ProviderFactory) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("datastore: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// SchemaVersion returns the applied migration version.
func (s *baseProvider) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

// ---- Collections ----

// ListEntries returns every key/value pair of a collection.
func (s *baseProvider) ListEntries(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := s.QueryContext(ctx, "SELECT key, value FROM kv WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("datastore: list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("datastore: scan entry: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: list entries: %w", err)
	}
	return out, nil
}

// ListCollections returns the names of all non-empty collections.
func (s *baseProvider) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.QueryContext(ctx, "SELECT DISTINCT collection FROM kv ORDER BY collection")
	if err != nil {
		return nil, fmt.Errorf("datastore: list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("datastore: scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdatedAt returns the most recent write time of a collection, or the zero
// time if it is empty.
func (s *baseProvider) UpdatedAt(ctx context.Context, collection string) (time.Time, error) {
	var latest sql.NullString
	err := s.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM kv WHERE collection = ?", collection).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("datastore: updated at: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, nil
	}
	parsed, err := parseDBTime(latest.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("datastore: updated at: %w", err)
	}
	return parsed, nil
}

// ClearCollection deletes every entry of a collection.
func (s *txProvider) ClearCollection(ctx context.Context, collection string) error {
	if _, err := s.ExecContext(ctx, "DELETE FROM kv WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("datastore: clear collection: %w", err)
	}
	return nil
}

// PutEntry inserts or replaces a single entry.
func (s *txProvider) PutEntry(ctx context.Context, collection, key string, value json.RawMessage, at time.Time) error {
	if !json.Valid(value) {
		return fmt.Errorf("datastore: put entry %s/%s: invalid JSON", collection, key)
	}
	_, err := s.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (collection, key, value, updated_at) VALUES (?, ?, ?, ?)",
		collection, key, string(value), formatDBTime(at))
	if err != nil {
		return fmt.Errorf("datastore: put entry: %w", err)
	}
	return nil
}
