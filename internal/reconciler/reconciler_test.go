package reconciler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tagfiler/internal/catalog"
)

// setupTest creates a catalog and reconciler backed by a temp database.
func setupTest(t testing.TB) (*catalog.Catalog, *Reconciler) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := catalog.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test catalog: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, New(db)
}

// populateRoot creates a directory with the given file names.
func populateRoot(t testing.TB, names ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return root
}

func TestReconcile(t *testing.T) {
	db, r := setupTest(t)
	ctx := context.Background()
	root := populateRoot(t, "a.txt", "b.txt", "c.txt")

	type tick struct{ processed, total int64 }
	var ticks []tick
	r.SetOnProgress(func(processed, total int64) {
		ticks = append(ticks, tick{processed, total})
	})

	var completions int
	r.SetOnComplete(func(Summary) { completions++ })

	summary, err := r.Reconcile(ctx, root)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if summary.ShortCircuit {
		t.Error("first scan of a root must not short-circuit")
	}
	if summary.Total != 3 || summary.Upserted != 3 {
		t.Errorf("summary = %+v, want Total 3, Upserted 3", summary)
	}
	if summary.Removed != 0 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want nothing removed or skipped", summary)
	}

	if completions != 1 {
		t.Errorf("completion delivered %d times, want 1", completions)
	}

	// Ticks are monotonic and end at (total, total).
	if len(ticks) == 0 {
		t.Fatal("no progress ticks delivered")
	}
	last := ticks[len(ticks)-1]
	if last.processed != 3 || last.total != 3 {
		t.Errorf("final tick = %+v, want (3, 3)", last)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].processed < ticks[i-1].processed {
			t.Errorf("ticks not monotonic: %d then %d", ticks[i-1].processed, ticks[i].processed)
		}
	}

	// The catalog now agrees with the filesystem.
	count, _, err := db.CountAndMaxModTime(ctx, root)
	if err != nil {
		t.Fatalf("CountAndMaxModTime failed: %v", err)
	}
	if count != 3 {
		t.Errorf("catalog holds %d rows under root, want 3", count)
	}

	// The root registered itself.
	roots, err := db.ListRoots(ctx)
	if err != nil {
		t.Fatalf("ListRoots failed: %v", err)
	}
	if len(roots) != 1 || roots[0].Path != root {
		t.Errorf("roots = %+v, want just %s", roots, root)
	}
	if roots[0].LastScanned <= 0 {
		t.Errorf("last_scanned = %f, want > 0", roots[0].LastScanned)
	}

	if r.State() != StateIdle {
		t.Errorf("state after scan = %v, want idle", r.State())
	}
}

func TestReconcileShortCircuit(t *testing.T) {
	_, r := setupTest(t)
	ctx := context.Background()
	root := populateRoot(t, "a.txt", "b.txt")

	if _, err := r.Reconcile(ctx, root); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	var completions int
	var got Summary
	r.SetOnComplete(func(s Summary) {
		completions++
		got = s
	})

	var ticks int
	r.SetOnProgress(func(processed, total int64) { ticks++ })

	summary, err := r.Reconcile(ctx, root)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	if !summary.ShortCircuit {
		t.Error("unchanged root should short-circuit")
	}
	if summary.Upserted != 0 || summary.Removed != 0 {
		t.Errorf("short-circuit did work: %+v", summary)
	}
	if ticks != 0 {
		t.Errorf("short-circuit emitted %d progress ticks, want 0", ticks)
	}

	// Completion is still delivered so observers always see the end.
	if completions != 1 {
		t.Errorf("completion delivered %d times, want 1", completions)
	}
	if !got.ShortCircuit {
		t.Error("completion summary did not mark the short-circuit")
	}
	if r.State() != StateIdle {
		t.Errorf("state after short-circuit = %v, want idle", r.State())
	}
}

func TestReconcileDetectsNewFile(t *testing.T) {
	_, r := setupTest(t)
	ctx := context.Background()
	root := populateRoot(t, "a.txt")

	if _, err := r.Reconcile(ctx, root); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "b.txt"), []byte("new"), 0o644); err != nil {
		t.Fatalf("Failed to add file: %v", err)
	}

	summary, err := r.Reconcile(ctx, root)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if summary.ShortCircuit {
		t.Error("added file should defeat the short-circuit")
	}
	if summary.Total != 2 || summary.Upserted != 2 {
		t.Errorf("summary = %+v, want Total 2, Upserted 2", summary)
	}
}

func TestReconcilePrunesDeleted(t *testing.T) {
	db, r := setupTest(t)
	ctx := context.Background()
	root := populateRoot(t, "a.txt", "b.txt", "c.txt")

	if _, err := r.Reconcile(ctx, root); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}

	doomed := filepath.Join(root, "b.txt")
	if err := os.Remove(doomed); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	summary, err := r.Reconcile(ctx, root)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if summary.ShortCircuit {
		t.Error("deleted file should defeat the short-circuit")
	}
	if summary.Removed != 1 {
		t.Errorf("Removed = %d, want 1", summary.Removed)
	}

	count, _, err := db.CountAndMaxModTime(ctx, root)
	if err != nil {
		t.Fatalf("CountAndMaxModTime failed: %v", err)
	}
	if count != 2 {
		t.Errorf("catalog holds %d rows, want 2", count)
	}
}

func TestReconcileEmptyRootWithStaleRows(t *testing.T) {
	db, r := setupTest(t)
	ctx := context.Background()
	root := populateRoot(t, "only.txt")

	if _, err := r.Reconcile(ctx, root); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "only.txt")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	summary, err := r.Reconcile(ctx, root)
	if err != nil {
		t.Fatalf("Reconcile of emptied root failed: %v", err)
	}
	if summary.Removed != 1 {
		t.Errorf("Removed = %d, want 1", summary.Removed)
	}

	// The progress denominator never reaches zero even with no files.
	p := r.Progress()
	if p.Total != 1 {
		t.Errorf("Progress.Total = %d, want floor of 1", p.Total)
	}
	if p.Scanning {
		t.Error("Progress.Scanning still true after completion")
	}

	count, _, err := db.CountAndMaxModTime(ctx, root)
	if err != nil {
		t.Fatalf("CountAndMaxModTime failed: %v", err)
	}
	if count != 0 {
		t.Errorf("catalog holds %d rows, want 0", count)
	}
}

func TestReconcileBadRoot(t *testing.T) {
	_, r := setupTest(t)
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Reconcile of nonexistent root should fail")
	}
	if r.State() != StateIdle {
		t.Errorf("state after failed scan = %v, want idle", r.State())
	}

	// A plain file is not a valid root.
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := r.Reconcile(ctx, file); err == nil {
		t.Error("Reconcile of a regular file should fail")
	}
	if r.State() != StateIdle {
		t.Errorf("state after failed scan = %v, want idle", r.State())
	}
}

func TestReconcileBusyRejection(t *testing.T) {
	_, r := setupTest(t)
	root := populateRoot(t, "a.txt")

	// Hold the scanning state as a running walk would.
	if err := r.tryStart("index"); err != nil {
		t.Fatalf("tryStart failed: %v", err)
	}

	_, err := r.Reconcile(context.Background(), root)
	if err == nil {
		t.Fatal("Reconcile while busy should fail")
	}
	if !errors.Is(err, ErrBusy) {
		t.Errorf("busy rejection does not match ErrBusy: %v", err)
	}

	var busyErr *BusyError
	if !errors.As(err, &busyErr) {
		t.Fatalf("error is not a BusyError: %v", err)
	}
	if busyErr.Purpose != "index" {
		t.Errorf("BusyError.Purpose = %q, want index", busyErr.Purpose)
	}

	if err := r.StartReconcile(root); !errors.Is(err, ErrBusy) {
		t.Errorf("StartReconcile while busy = %v, want ErrBusy", err)
	}
	if err := r.StartReconcileAll(); !errors.Is(err, ErrBusy) {
		t.Errorf("StartReconcileAll while busy = %v, want ErrBusy", err)
	}

	// Release and verify the reconciler recovers.
	r.finish(Summary{})
	if _, err := r.Reconcile(context.Background(), root); err != nil {
		t.Errorf("Reconcile after release failed: %v", err)
	}
}

func TestStartReconcile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping background scan test in short mode")
	}

	_, r := setupTest(t)
	root := populateRoot(t, "a.txt", "b.txt")

	done := make(chan Summary, 1)
	r.SetOnComplete(func(s Summary) { done <- s })

	if err := r.StartReconcile(root); err != nil {
		t.Fatalf("StartReconcile failed: %v", err)
	}

	select {
	case summary := <-done:
		if summary.Total != 2 || summary.Upserted != 2 {
			t.Errorf("summary = %+v, want Total 2, Upserted 2", summary)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for background scan")
	}

	if r.State() != StateIdle {
		t.Errorf("state after background scan = %v, want idle", r.State())
	}
}

func TestReconcileAll(t *testing.T) {
	db, r := setupTest(t)
	ctx := context.Background()

	rootA := populateRoot(t, "a1.txt", "a2.txt")
	rootB := populateRoot(t, "b1.txt")
	for _, root := range []string{rootA, rootB} {
		if err := db.AddRoot(ctx, root); err != nil {
			t.Fatalf("AddRoot failed: %v", err)
		}
	}

	summary, err := r.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}

	if len(summary.Roots) != 2 {
		t.Errorf("Roots = %v, want both roots", summary.Roots)
	}
	if summary.Total != 3 || summary.Upserted != 3 {
		t.Errorf("summary = %+v, want combined Total 3, Upserted 3", summary)
	}

	count, _, err := db.CountAndMaxModTime(ctx, "")
	if err != nil {
		t.Fatalf("CountAndMaxModTime failed: %v", err)
	}
	if count != 3 {
		t.Errorf("catalog holds %d rows, want 3", count)
	}
}

func TestReconcileAllNoRoots(t *testing.T) {
	_, r := setupTest(t)

	summary, err := r.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll with no roots failed: %v", err)
	}
	if len(summary.Roots) != 0 || summary.Total != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v, want idle", r.State())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if got := StateIdle.String(); got != "idle" {
		t.Errorf("StateIdle.String() = %q, want idle", got)
	}
	if got := StateScanning.String(); got != "scanning" {
		t.Errorf("StateScanning.String() = %q, want scanning", got)
	}
}

func TestBusyErrorMessage(t *testing.T) {
	t.Parallel()

	err := &BusyError{Purpose: "rescan all"}
	if err.Error() != "busy: rescan all is already in progress" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrBusy) {
		t.Error("BusyError does not match ErrBusy")
	}
}
