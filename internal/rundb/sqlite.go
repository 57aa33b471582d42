// Package rundb maintains a SQLite catalog of packed runs so a training
// pipeline can enumerate artifacts without scanning directories. It is a
// secondary index: the artifact plus sidecar remain the source of truth.
package rundb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

// Run is one indexed artifact.
type Run struct {
	ID           int64
	Path         string
	SHA256       string
	Source       string
	TargetYaw    float64
	TargetHeight int
	GridWidth    int
	GridHeight   int
	K            int
	Frames       int
	Windows      int
	Dropped      int
	CreatedAt    time.Time
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("rundb: empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("rundb: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rundb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL durability is
	// fine for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("rundb: %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmt := `CREATE TABLE IF NOT EXISTS runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		path          TEXT NOT NULL UNIQUE,
		sha256        TEXT NOT NULL,
		source        TEXT NOT NULL DEFAULT '',
		target_yaw    REAL NOT NULL,
		target_height INTEGER NOT NULL,
		grid_w        INTEGER NOT NULL,
		grid_h        INTEGER NOT NULL,
		k             INTEGER NOT NULL,
		frames        INTEGER NOT NULL,
		windows       INTEGER NOT NULL,
		dropped       INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	);`
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("rundb: init schema: %w", err)
	}
	return nil
}

// Insert adds or replaces the row for a packed artifact, keyed by path.
func (d *DB) Insert(ctx context.Context, r Run) (int64, error) {
	res, err := d.db.ExecContext(ctx, `INSERT INTO runs
		(path, sha256, source, target_yaw, target_height, grid_w, grid_h, k, frames, windows, dropped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		sha256=excluded.sha256, source=excluded.source,
		target_yaw=excluded.target_yaw, target_height=excluded.target_height,
		grid_w=excluded.grid_w, grid_h=excluded.grid_h, k=excluded.k,
		frames=excluded.frames, windows=excluded.windows, dropped=excluded.dropped,
		created_at=excluded.created_at`,
		r.Path, r.SHA256, r.Source, r.TargetYaw, r.TargetHeight,
		r.GridWidth, r.GridHeight, r.K, r.Frames, r.Windows, r.Dropped,
		r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("rundb: insert %s: %w", r.Path, err)
	}
	return res.LastInsertId()
}

// List returns every indexed run, newest first.
func (d *DB) List(ctx context.Context) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
		id, path, sha256, source, target_yaw, target_height,
		grid_w, grid_h, k, frames, windows, dropped, created_at
		FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("rundb: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.Path, &r.SHA256, &r.Source, &r.TargetYaw, &r.TargetHeight,
			&r.GridWidth, &r.GridHeight, &r.K, &r.Frames, &r.Windows, &r.Dropped, &created); err != nil {
			return nil, fmt.Errorf("rundb: scan: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ByPath fetches one run row, sql.ErrNoRows wrapped if absent.
func (d *DB) ByPath(ctx context.Context, path string) (Run, error) {
	var r Run
	var created string
	err := d.db.QueryRowContext(ctx, `SELECT
		id, path, sha256, source, target_yaw, target_height,
		grid_w, grid_h, k, frames, windows, dropped, created_at
		FROM runs WHERE path = ?`, path).
		Scan(&r.ID, &r.Path, &r.SHA256, &r.Source, &r.TargetYaw, &r.TargetHeight,
			&r.GridWidth, &r.GridHeight, &r.K, &r.Frames, &r.Windows, &r.Dropped, &created)
	if err != nil {
		return Run{}, fmt.Errorf("rundb: lookup %s: %w", path, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return r, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// FileSHA256 hashes an artifact for the index row.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("rundb: open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("rundb: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
