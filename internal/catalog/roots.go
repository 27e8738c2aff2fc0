package catalog

import (
	"context"
	"fmt"

	"tagfiler/internal/logging"
)

// AddRoot registers a directory subtree for indexing. Registering an
// already-known root is a no-op.
func (c *Catalog) AddRoot(ctx context.Context, path string) error {
	done := observeQuery("add_root")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO roots (path, last_scanned) VALUES (?, 0)",
		NormalizePath(path))
	done(err)
	if err != nil {
		return fmt.Errorf("failed to add root %s: %w", path, err)
	}
	return nil
}

// TouchRoot records when a root was last reconciled.
func (c *Catalog) TouchRoot(ctx context.Context, path string, when float64) error {
	done := observeQuery("touch_root")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx,
		"UPDATE roots SET last_scanned = ? WHERE path = ?", when, NormalizePath(path))
	done(err)
	if err != nil {
		return fmt.Errorf("failed to touch root %s: %w", path, err)
	}
	return nil
}

// RemoveRoot unregisters a root and deletes exactly the file rows whose
// path lies under it. A sibling root sharing a name prefix (/data/a vs
// /data/ab) is unaffected.
func (c *Catalog) RemoveRoot(ctx context.Context, path string) (int64, error) {
	done := observeQuery("remove_root")

	path = NormalizePath(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE path LIKE ? ESCAPE '\'`, likePrefix(path))
	if err != nil {
		done(err)
		return 0, fmt.Errorf("failed to delete files under %s: %w", path, err)
	}
	removed, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx, "DELETE FROM roots WHERE path = ?", path); err != nil {
		done(err)
		return 0, fmt.Errorf("failed to remove root %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		done(err)
		return 0, err
	}

	logging.Info("Removed root %s and %d file rows under it", path, removed)
	done(nil)
	return removed, nil
}

// ListRoots returns all registered roots ordered by path.
func (c *Catalog) ListRoots(ctx context.Context) ([]Root, error) {
	done := observeQuery("list_roots")

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT path, last_scanned FROM roots ORDER BY path")
	if err != nil {
		done(err)
		return nil, fmt.Errorf("root query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roots []Root
	for rows.Next() {
		var root Root
		if err := rows.Scan(&root.Path, &root.LastScanned); err != nil {
			done(err)
			return nil, fmt.Errorf("root scan failed: %w", err)
		}
		roots = append(roots, root)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, fmt.Errorf("root rows error: %w", err)
	}

	done(nil)
	return roots, nil
}
