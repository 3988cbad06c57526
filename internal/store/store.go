package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a cache written at version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against caches whose user_version is older.
// Fresh caches run them too, so each must also apply to the current
// schema.sql layout.
var migrations = []migration{
	{1, "index artifacts by code hash", `CREATE INDEX IF NOT EXISTS idx_artifacts_code_hash ON artifacts(code_hash)`},
	// Artifacts written before v2 do not say which plugins produced them,
	// so they are dropped rather than trusted.
	{2, "key artifacts by plugin fingerprint", `
		DROP TABLE artifacts;
		CREATE TABLE artifacts (
			record_hash TEXT NOT NULL,
			backend     TEXT NOT NULL,
			plugins     TEXT NOT NULL DEFAULT '',
			code        TEXT NOT NULL,
			code_hash   TEXT NOT NULL,
			run_id      TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			PRIMARY KEY (record_hash, backend, plugins)
		);
		CREATE INDEX idx_artifacts_code_hash ON artifacts(code_hash);
	`},
}

func currentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// pragmas are applied on open; want is what PRAGMA <name> reads back.
var pragmas = []struct {
	name, set, want string
}{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Store is the compilation cache: one SQLite file holding canonical records
// keyed by source hash and the code generated from them.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens the cache at path, creating the file and its directory when
// missing. Each Open gets a fresh run id that every row written through the
// returned Store records.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to cache %s: %w", path, err)
	}

	// One connection: pragmas are per connection and SQLite has one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies this Open call.
func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for queries the Store has no method for.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion())); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
