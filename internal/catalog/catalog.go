package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"tagfiler/internal/logging"
	"tagfiler/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Catalog manages all database operations for the tagfiler service.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Catalog instance.
// dbPath must be the full path to the database file; the parent directory
// must already exist and be writable (use startup.LoadConfig to validate).
func New(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL keeps foreground reads responsive while a scan is writing;
	// busy_timeout avoids spurious "database is locked" failures.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		mtime REAL NOT NULL DEFAULT 0,
		hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
	CREATE INDEX IF NOT EXISTS idx_files_mtime ON files(mtime);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		ord INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

	CREATE TABLE IF NOT EXISTS file_tags (
		file_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		UNIQUE(file_id, tag_id),
		FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_file_tags_file ON file_tags(file_id);
	CREATE INDEX IF NOT EXISTS idx_file_tags_tag ON file_tags(tag_id);

	CREATE TABLE IF NOT EXISTS roots (
		path TEXT PRIMARY KEY,
		last_scanned REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return c.backfillTagOrder(ctx)
}

// backfillTagOrder assigns sequential ord values, in name order, to tags
// created before the ord column carried a value.
func (c *Catalog) backfillTagOrder(ctx context.Context) error {
	var missing int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags WHERE ord IS NULL").Scan(&missing)
	if err != nil {
		return fmt.Errorf("failed to check tag order: %w", err)
	}
	if missing == 0 {
		return nil
	}

	logging.Info("Migrating catalog: assigning display order to %d tags", missing)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, "SELECT id FROM tags WHERE ord IS NULL ORDER BY name")
	if err != nil {
		return err
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	var maxOrd int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(ord), 0) FROM tags").Scan(&maxOrd); err != nil {
		return err
	}

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, "UPDATE tags SET ord = ? WHERE id = ?", maxOrd+int64(i)+1, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// UpdateDBMetrics refreshes database connection gauges.
func (c *Catalog) UpdateDBMetrics() {
	stats := c.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// NormalizePath canonicalizes a path for use as a catalog identity.
func NormalizePath(p string) string {
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

// likePrefix builds a LIKE pattern matching every path strictly under root,
// with wildcard metacharacters in root escaped. Patterns built here must be
// used with ESCAPE '\'.
func likePrefix(root string) string {
	r := NormalizePath(root)
	if !strings.HasSuffix(r, string(filepath.Separator)) {
		r += string(filepath.Separator)
	}
	return escapeLike(r) + "%"
}

// escapeLike escapes %, _ and the escape character itself for LIKE ... ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// observeQuery starts a query observation; the returned func finishes it.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}
