// Package cache provides a SQLite read cache over the version ledger for
// fast status and version queries.
//
// The cache is strictly derived state: it is rebuilt transactionally from
// the authoritative ledger after each pass, and deleting the database file
// loses nothing. The database runs in embedded mode with WAL enabled.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/schemadrift/schemadrift/internal/ledger"
)

// FileName is the cache database file inside the state directory.
const FileName = "cache.db"

// timeFormat is fixed-width so stored timestamps compare correctly as
// strings in SQL (RFC3339Nano trims trailing zeros and does not).
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Cache wraps the SQLite connection.
type Cache struct {
	conn *sql.DB
	path string
}

// Row is one cached version record.
type Row struct {
	TypeName         string
	FirstSeen        time.Time
	LastUpdated      time.Time
	TimeCreated      *time.Time
	DeprecatedStatus string
}

// RemovedRow is one cached removed record.
type RemovedRow struct {
	Row
	RemovedDate time.Time
}

// Open opens (creating if needed) the cache database at path.
// The caller must Close it.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	c := &Cache{conn: conn, path: path}

	if _, err := c.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := c.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	c.conn = nil
	return nil
}

// InitSchema creates the cache tables and indexes. Idempotent.
func (c *Cache) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS versions (
		type_name TEXT PRIMARY KEY,
		first_seen TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		time_created TEXT,
		deprecation_status TEXT
	);

	CREATE TABLE IF NOT EXISTS removed (
		type_name TEXT PRIMARY KEY,
		first_seen TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		time_created TEXT,
		deprecation_status TEXT,
		removed_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_versions_last_updated ON versions(last_updated);
	CREATE INDEX IF NOT EXISTS idx_removed_date ON removed(removed_date);
	`

	if _, err := c.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return nil
}

// Refresh rebuilds the cache from the ledger in one transaction, so readers
// never observe a half-populated cache.
func (c *Cache) Refresh(ctx context.Context, l *ledger.Ledger) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM versions"); err != nil {
		return fmt.Errorf("failed to clear versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM removed"); err != nil {
		return fmt.Errorf("failed to clear removed: %w", err)
	}

	for name, rec := range l.Versions() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO versions (type_name, first_seen, last_updated, time_created, deprecation_status)
			VALUES (?, ?, ?, ?, ?)`,
			name,
			rec.FirstSeen.Format(timeFormat),
			rec.LastUpdated.Format(timeFormat),
			formatOptTime(rec.TimeCreated),
			rec.DeprecatedStatus,
		)
		if err != nil {
			return fmt.Errorf("failed to cache %s: %w", name, err)
		}
	}

	for name, rec := range l.Removed() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO removed (type_name, first_seen, last_updated, time_created, deprecation_status, removed_date)
			VALUES (?, ?, ?, ?, ?, ?)`,
			name,
			rec.FirstSeen.Format(timeFormat),
			rec.LastUpdated.Format(timeFormat),
			formatOptTime(rec.TimeCreated),
			rec.DeprecatedStatus,
			rec.RemovedDate.Format(timeFormat),
		)
		if err != nil {
			return fmt.Errorf("failed to cache removed %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache refresh: %w", err)
	}

	return nil
}

// Counts returns the cached number of active and removed records.
func (c *Cache) Counts(ctx context.Context) (active, removed int, err error) {
	if err := c.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM versions").Scan(&active); err != nil {
		return 0, 0, fmt.Errorf("failed to count versions: %w", err)
	}
	if err := c.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM removed").Scan(&removed); err != nil {
		return 0, 0, fmt.Errorf("failed to count removed: %w", err)
	}
	return active, removed, nil
}

// ListSince returns active records whose last update is at or after since,
// ordered most recently updated first. A zero since returns everything.
func (c *Cache) ListSince(ctx context.Context, since time.Time) ([]Row, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT type_name, first_seen, last_updated, time_created, deprecation_status
		FROM versions
		WHERE last_updated >= ?
		ORDER BY last_updated DESC, type_name`,
		since.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r               Row
			first, last     string
			created, status sql.NullString
		)
		if err := rows.Scan(&r.TypeName, &first, &last, &created, &status); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		if r.FirstSeen, err = time.Parse(timeFormat, first); err != nil {
			return nil, fmt.Errorf("bad first_seen for %s: %w", r.TypeName, err)
		}
		if r.LastUpdated, err = time.Parse(timeFormat, last); err != nil {
			return nil, fmt.Errorf("bad last_updated for %s: %w", r.TypeName, err)
		}
		if created.Valid && created.String != "" {
			t, err := time.Parse(timeFormat, created.String)
			if err != nil {
				return nil, fmt.Errorf("bad time_created for %s: %w", r.TypeName, err)
			}
			r.TimeCreated = &t
		}
		r.DeprecatedStatus = status.String
		out = append(out, r)
	}

	return out, rows.Err()
}

// ListRemoved returns removed records, most recently removed first.
func (c *Cache) ListRemoved(ctx context.Context) ([]RemovedRow, error) {
	rows, err := c.conn.QueryContext(ctx, `
		SELECT type_name, first_seen, last_updated, removed_date
		FROM removed
		ORDER BY removed_date DESC, type_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query removed: %w", err)
	}
	defer rows.Close()

	var out []RemovedRow
	for rows.Next() {
		var (
			r                    RemovedRow
			first, last, removed string
		)
		if err := rows.Scan(&r.TypeName, &first, &last, &removed); err != nil {
			return nil, fmt.Errorf("failed to scan removed row: %w", err)
		}
		if r.FirstSeen, err = time.Parse(timeFormat, first); err != nil {
			return nil, fmt.Errorf("bad first_seen for %s: %w", r.TypeName, err)
		}
		if r.LastUpdated, err = time.Parse(timeFormat, last); err != nil {
			return nil, fmt.Errorf("bad last_updated for %s: %w", r.TypeName, err)
		}
		if r.RemovedDate, err = time.Parse(timeFormat, removed); err != nil {
			return nil, fmt.Errorf("bad removed_date for %s: %w", r.TypeName, err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// formatOptTime renders an optional timestamp for storage, empty when nil.
func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeFormat)
}
