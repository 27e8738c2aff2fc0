package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagfiler/internal/logging"
)

// UpsertFile records the current size and mtime of the file at path,
// inserting a new row or updating the existing one matched by normalized
// path. If path does not resolve to an existing regular file the call is a
// silent no-op: the filesystem may change between enumeration and stat, and
// that is not an error. The hash column is never touched.
func (c *Catalog) UpsertFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	done := observeQuery("upsert_file")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO files (path, size, mtime, hash) VALUES (?, ?, ?, NULL)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime
	`, NormalizePath(path), info.Size(), modTimeSeconds(info))
	done(err)
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", path, err)
	}
	return nil
}

// modTimeSeconds converts a FileInfo mtime to float seconds since epoch.
func modTimeSeconds(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

// CountAndMaxModTime returns the number of file rows and the maximum mtime
// among them, either globally (root == "") or restricted to paths under the
// given root. It is a cheap fingerprint of catalog state, not a
// correctness-critical read.
func (c *Catalog) CountAndMaxModTime(ctx context.Context, root string) (int64, float64, error) {
	done := observeQuery("count_and_max_mtime")

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		count    int64
		maxMtime float64
		err      error
	)
	if root == "" {
		err = c.db.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(MAX(mtime), 0) FROM files").Scan(&count, &maxMtime)
	} else {
		err = c.db.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(MAX(mtime), 0) FROM files WHERE path LIKE ? ESCAPE '\'`,
			likePrefix(root)).Scan(&count, &maxMtime)
	}
	done(err)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fingerprint catalog: %w", err)
	}
	return count, maxMtime, nil
}

// RemoveMissingUnder deletes every file row under root whose path no longer
// exists on disk and returns the number of rows removed.
func (c *Catalog) RemoveMissingUnder(ctx context.Context, root string) (int64, error) {
	done := observeQuery("remove_missing_under")

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, path FROM files WHERE path LIKE ? ESCAPE '\'`, likePrefix(root))
	if err != nil {
		done(err)
		return 0, fmt.Errorf("failed to list files under %s: %w", root, err)
	}

	type row struct {
		id   int64
		path string
	}
	var candidates []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.path); err != nil {
			_ = rows.Close()
			done(err)
			return 0, fmt.Errorf("failed to scan file row: %w", err)
		}
		candidates = append(candidates, r)
	}
	if err := rows.Close(); err != nil {
		done(err)
		return 0, err
	}

	var removed int64
	for _, cand := range candidates {
		if _, statErr := os.Stat(cand.path); statErr == nil {
			continue
		}
		if _, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", cand.id); err != nil {
			done(err)
			return removed, fmt.Errorf("failed to delete stale row %s: %w", cand.path, err)
		}
		removed++
	}

	done(nil)
	return removed, nil
}

// ListFiles returns the file rows matching the filter, ordered by path
// ascending. All filter conditions are conjunctive; a file must carry every
// tag in Filter.TagIDs to match.
func (c *Catalog) ListFiles(ctx context.Context, f Filter) ([]File, error) {
	done := observeQuery("list_files")

	var (
		joins  []string
		where  []string
		params []interface{}
	)

	for i, tid := range f.TagIDs {
		joins = append(joins,
			fmt.Sprintf("JOIN file_tags ft%d ON ft%d.file_id = f.id AND ft%d.tag_id = ?", i, i, i))
		params = append(params, tid)
	}
	if f.Search != "" {
		where = append(where, `f.path LIKE ? ESCAPE '\'`)
		params = append(params, "%"+escapeLike(f.Search)+"%")
	}
	if f.OnlyTagged {
		where = append(where, "EXISTS (SELECT 1 FROM file_tags x WHERE x.file_id = f.id)")
	}
	if f.RootPrefix != "" {
		where = append(where, `f.path LIKE ? ESCAPE '\'`)
		params = append(params, likePrefix(f.RootPrefix))
	}

	query := `
		SELECT f.id, f.path, f.size, f.mtime,
			COALESCE((SELECT GROUP_CONCAT(t.name, ', ')
				FROM tags t JOIN file_tags ft ON ft.tag_id = t.id
				WHERE ft.file_id = f.id), '') AS tags
		FROM files f ` + strings.Join(joins, " ")
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.path ASC"

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("file query failed: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var files []File
	for rows.Next() {
		var file File
		if err := rows.Scan(&file.ID, &file.Path, &file.Size, &file.ModTime, &file.Tags); err != nil {
			done(err)
			return nil, fmt.Errorf("file scan failed: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, fmt.Errorf("file rows error: %w", err)
	}

	done(nil)
	return files, nil
}

// RenameFile renames a file on disk and moves its catalog row (with its tag
// associations) to the new path.
func (c *Catalog) RenameFile(ctx context.Context, oldPath, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return "", fmt.Errorf("new name cannot be empty")
	}

	oldPath = NormalizePath(oldPath)
	newPath := filepath.Join(filepath.Dir(oldPath), newName)

	if err := os.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("rename failed: %w", err)
	}

	done := observeQuery("rename_file")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx,
		"UPDATE files SET path = ? WHERE path = ?", newPath, oldPath)
	done(err)
	if err != nil {
		return "", fmt.Errorf("failed to update renamed file row: %w", err)
	}
	return newPath, nil
}

// DeleteFile removes a file from disk and drops its catalog row. A file
// already missing from disk still has its row removed.
func (c *Catalog) DeleteFile(ctx context.Context, path string) error {
	path = NormalizePath(path)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	done := observeQuery("delete_file")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	done(err)
	if err != nil {
		return fmt.Errorf("failed to delete file row %s: %w", path, err)
	}
	return nil
}

// GetFileByPath retrieves a single file row by normalized path.
func (c *Catalog) GetFileByPath(ctx context.Context, path string) (*File, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var file File
	err := c.db.QueryRowContext(ctx,
		"SELECT id, path, size, mtime FROM files WHERE path = ?",
		NormalizePath(path)).Scan(&file.ID, &file.Path, &file.Size, &file.ModTime)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get file %s: %w", path, err)
	}
	return &file, nil
}
