package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"tagfiler/internal/logging"
)

// ErrDuplicateName is returned when a tag rename races with the creation of
// another tag holding the target name.
var ErrDuplicateName = errors.New("tag name already exists")

// EnsureTag gets or creates a tag by name. The name is trimmed; an empty
// name is a no-op returning id 0. Newly created tags are assigned the next
// display order value.
func (c *Catalog) EnsureTag(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}

	done := observeQuery("ensure_tag")

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

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == nil {
		done(nil)
		return id, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		done(err)
		return 0, fmt.Errorf("failed to look up tag: %w", err)
	}

	var nextOrd int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(ord), 0) + 1 FROM tags").Scan(&nextOrd); err != nil {
		done(err)
		return 0, fmt.Errorf("failed to compute tag order: %w", err)
	}

	result, err := tx.ExecContext(ctx, "INSERT INTO tags (name, ord) VALUES (?, ?)", name, nextOrd)
	if err != nil {
		done(err)
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}

	id, _ = result.LastInsertId()
	if err := tx.Commit(); err != nil {
		done(err)
		return 0, err
	}
	done(nil)
	return id, nil
}

// RenameOrMergeTag renames the tag oldID to newName. When newName collides
// with a different existing tag, the two are merged: the old tag's file
// associations move onto the existing tag (duplicates dropped) and the old
// tag is deleted. Renaming a tag to its own current name is a no-op. The
// returned bool reports whether a merge happened.
func (c *Catalog) RenameOrMergeTag(ctx context.Context, oldID int64, newName string) (bool, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return false, fmt.Errorf("tag name cannot be empty")
	}

	done := observeQuery("rename_or_merge_tag")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", newName).Scan(&existingID)

	switch {
	case err == nil:
		if existingID == oldID {
			// Renaming to its own current name.
			done(nil)
			return false, tx.Commit()
		}

		// Merge: union the associations onto the surviving tag, then
		// drop the old tag (cascade removes its remaining pairs).
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO file_tags (file_id, tag_id)
			SELECT file_id, ? FROM file_tags WHERE tag_id = ?
		`, existingID, oldID)
		if err != nil {
			done(err)
			return false, fmt.Errorf("failed to merge tag associations: %w", err)
		}

		if _, err = tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", oldID); err != nil {
			done(err)
			return false, fmt.Errorf("failed to delete merged tag: %w", err)
		}

		if err := tx.Commit(); err != nil {
			done(err)
			return false, err
		}

		logging.Info("Merged tag %d into existing tag %q", oldID, newName)
		done(nil)
		return true, nil

	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, "UPDATE tags SET name = ? WHERE id = ?", newName, oldID)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				done(ErrDuplicateName)
				return false, ErrDuplicateName
			}
			done(err)
			return false, fmt.Errorf("failed to rename tag: %w", err)
		}
		if err := tx.Commit(); err != nil {
			done(err)
			return false, err
		}
		done(nil)
		return false, nil

	default:
		done(err)
		return false, fmt.Errorf("failed to look up tag name: %w", err)
	}
}

// DeleteTags removes the given tags; their file associations cascade away.
func (c *Catalog) DeleteTags(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	done := observeQuery("delete_tags")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := c.db.ExecContext(ctx,
		"DELETE FROM tags WHERE id IN ("+placeholders+")", args...)
	done(err)
	if err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return nil
}

// ListTags returns all tags in display order with per-tag file counts.
func (c *Catalog) ListTags(ctx context.Context) ([]Tag, error) {
	done := observeQuery("list_tags")

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.id, t.name, COALESCE(t.ord, 0), COUNT(ft.file_id)
		FROM tags t
		LEFT JOIN file_tags ft ON t.id = ft.tag_id
		GROUP BY t.id
		ORDER BY t.ord, t.name
	`)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("tag query failed: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Ord, &tag.Count); err != nil {
			done(err)
			return nil, fmt.Errorf("tag scan failed: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, fmt.Errorf("tag rows error: %w", err)
	}

	done(nil)
	return tags, nil
}

// FileTags returns the tags attached to one file, in display order.
func (c *Catalog) FileTags(ctx context.Context, fileID int64) ([]Tag, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.id, t.name, COALESCE(t.ord, 0)
		FROM tags t
		JOIN file_tags ft ON ft.tag_id = t.id
		WHERE ft.file_id = ?
		ORDER BY t.ord, t.name
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("file tag query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Ord); err != nil {
			return nil, fmt.Errorf("file tag scan failed: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// TagFiles associates a tag with each of the given files, skipping pairs
// that already exist.
func (c *Catalog) TagFiles(ctx context.Context, fileIDs []int64, tagID int64) error {
	if len(fileIDs) == 0 {
		return nil
	}

	done := observeQuery("tag_files")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, fid := range fileIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO file_tags (file_id, tag_id) VALUES (?, ?)", fid, tagID); err != nil {
			done(err)
			return fmt.Errorf("failed to tag file %d: %w", fid, err)
		}
	}

	err = tx.Commit()
	done(err)
	return err
}

// UntagFile removes the given tag associations from one file.
func (c *Catalog) UntagFile(ctx context.Context, fileID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	done := observeQuery("untag_file")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, tid := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM file_tags WHERE file_id = ? AND tag_id = ?", fileID, tid); err != nil {
			done(err)
			return fmt.Errorf("failed to untag file %d: %w", fileID, err)
		}
	}

	err = tx.Commit()
	done(err)
	return err
}

// MoveTag shifts a tag up (delta < 0) or down (delta > 0) in display order
// by swapping ord values with its nearest neighbor. Moving past either end
// is a no-op.
func (c *Catalog) MoveTag(ctx context.Context, id int64, delta int) error {
	if delta == 0 {
		return nil
	}

	done := observeQuery("move_tag")

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var curOrd int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(ord, 0) FROM tags WHERE id = ?", id).Scan(&curOrd); err != nil {
		done(err)
		return fmt.Errorf("failed to look up tag %d: %w", id, err)
	}

	var (
		neighborID  int64
		neighborOrd int64
	)
	if delta < 0 {
		err = tx.QueryRowContext(ctx,
			"SELECT id, ord FROM tags WHERE ord < ? ORDER BY ord DESC LIMIT 1", curOrd).
			Scan(&neighborID, &neighborOrd)
	} else {
		err = tx.QueryRowContext(ctx,
			"SELECT id, ord FROM tags WHERE ord > ? ORDER BY ord ASC LIMIT 1", curOrd).
			Scan(&neighborID, &neighborOrd)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Already at the edge.
		done(nil)
		return tx.Commit()
	}
	if err != nil {
		done(err)
		return fmt.Errorf("failed to find neighbor tag: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE tags SET ord = ? WHERE id = ?", neighborOrd, id); err != nil {
		done(err)
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE tags SET ord = ? WHERE id = ?", curOrd, neighborID); err != nil {
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}
