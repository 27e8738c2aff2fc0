package reconciler

import (
	"context"
	"os"
	"path/filepath"

	"tagfiler/internal/logging"
	"tagfiler/internal/metrics"
)

// walkState carries counters shared across the roots of one reconciliation.
type walkState struct {
	total     int64 // progress denominator (never less than 1)
	fsTotal   int64 // actual file count from the fingerprint pass
	step      int64
	processed int64
	upserted  int64
	skipped   int64
}

// diskCountAndMaxModTime walks root counting regular files and tracking the
// maximum modification time seen. Individual stat and readdir failures are
// skipped: a transient permission or race error must not abort the scan, the
// affected file simply contributes nothing. The skipped count is returned
// for the batch summary.
func diskCountAndMaxModTime(root string) (count int64, maxMtime float64, skipped int64) {
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			skipped++
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		count++
		if mt := float64(info.ModTime().UnixNano()) / 1e9; mt > maxMtime {
			maxMtime = mt
		}
		return nil
	})
	if err != nil {
		logging.Warn("walk of %s ended early: %v", root, err)
	}
	return count, maxMtime, skipped
}

// walkAndUpsert walks one root, upserting every regular file found and
// emitting a progress tick on every step boundary and on the final file.
// Per-file upsert failures are counted and skipped.
func (r *Reconciler) walkAndUpsert(ctx context.Context, root string, w *walkState) {
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.skipped++
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if upsertErr := r.db.UpsertFile(ctx, path); upsertErr != nil {
			logging.Warn("upsert of %s failed: %v", path, upsertErr)
			w.skipped++
			metrics.ScanFilesSkipped.Inc()
		} else {
			w.upserted++
			metrics.ScanFilesProcessed.Inc()
		}

		w.processed++
		if w.processed%w.step == 0 || w.processed == w.fsTotal {
			r.tick(w.processed, w.total)
		}
		return nil
	})
	if err != nil {
		logging.Warn("walk of %s ended early: %v", root, err)
	}
}
