package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"tagfiler/internal/catalog"
	"tagfiler/internal/logging"
	"tagfiler/internal/metrics"
)

// Progress cadence: one tick per percent for a single root, every 500 files
// for a full rescan of all roots.
const rescanAllStep = 500

// State is the reconciler's lifecycle state.
type State int

const (
	// StateIdle means no reconciliation is running.
	StateIdle State = iota
	// StateScanning means a walk is in progress.
	StateScanning
)

// String returns the state name.
func (s State) String() string {
	if s == StateScanning {
		return "scanning"
	}
	return "idle"
}

// ErrBusy matches any BusyError via errors.Is.
var ErrBusy = errors.New("scan already in progress")

// BusyError is returned when a reconciliation is requested while another is
// running. Purpose names the operation currently holding the reconciler.
type BusyError struct {
	Purpose string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("busy: %s is already in progress", e.Purpose)
}

// Is reports that a BusyError matches ErrBusy.
func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// Progress is a snapshot of the current (or last) walk.
type Progress struct {
	Processed int64     `json:"processed"`
	Total     int64     `json:"total"`
	Scanning  bool      `json:"scanning"`
	Purpose   string    `json:"purpose,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// Summary aggregates the outcome of one reconciliation.
type Summary struct {
	Roots        []string      `json:"roots"`
	Total        int64         `json:"total"`
	Upserted     int64         `json:"upserted"`
	Skipped      int64         `json:"skipped"`
	Removed      int64         `json:"removed"`
	ShortCircuit bool          `json:"shortCircuit"`
	Duration     time.Duration `json:"-"`
}

// ProgressFunc receives monotonically increasing (processed, total) ticks
// for a walk in progress.
type ProgressFunc func(processed, total int64)

// CompleteFunc is invoked exactly once per reconciliation, after the walk
// and prune have finished (or the short-circuit fired).
type CompleteFunc func(Summary)

// Reconciler owns the Idle/Scanning state and performs walks against the
// catalog. All transitions go through tryStart/finish; callers observe the
// state via State and Progress, never a shared flag.
type Reconciler struct {
	db *catalog.Catalog

	mu      sync.Mutex
	state   State
	purpose string

	progress atomic.Value // Progress

	onProgress ProgressFunc
	onComplete CompleteFunc
}

// New creates a Reconciler over the given catalog.
func New(db *catalog.Catalog) *Reconciler {
	r := &Reconciler{db: db}
	r.progress.Store(Progress{})
	return r
}

// SetOnProgress registers a progress callback. Must be called before any
// reconciliation starts.
func (r *Reconciler) SetOnProgress(fn ProgressFunc) {
	r.onProgress = fn
}

// SetOnComplete registers a completion callback. Must be called before any
// reconciliation starts.
func (r *Reconciler) SetOnComplete(fn CompleteFunc) {
	r.onComplete = fn
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsScanning reports whether a walk is in progress.
func (r *Reconciler) IsScanning() bool {
	return r.State() == StateScanning
}

// Progress returns a snapshot of the current (or last) walk.
func (r *Reconciler) Progress() Progress {
	if p, ok := r.progress.Load().(Progress); ok {
		return p
	}
	return Progress{}
}

// tryStart transitions Idle -> Scanning, or rejects with a BusyError naming
// the purpose already running.
func (r *Reconciler) tryStart(purpose string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateScanning {
		metrics.ScanBusyRejectionsTotal.Inc()
		return &BusyError{Purpose: r.purpose}
	}
	r.state = StateScanning
	r.purpose = purpose
	metrics.ScanIsRunning.Set(1)
	return nil
}

// finish transitions back to Idle and delivers the completion event.
func (r *Reconciler) finish(summary Summary) {
	r.mu.Lock()
	r.state = StateIdle
	r.purpose = ""
	r.mu.Unlock()

	p := r.Progress()
	p.Scanning = false
	r.progress.Store(p)

	metrics.ScanIsRunning.Set(0)
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(summary.Duration.Seconds())

	if r.onComplete != nil {
		r.onComplete(summary)
	}
}

// Reconcile brings the catalog rows under root into agreement with the
// filesystem and blocks until done. It returns a BusyError when another
// reconciliation is running.
func (r *Reconciler) Reconcile(ctx context.Context, root string) (Summary, error) {
	if err := r.tryStart("index"); err != nil {
		return Summary{}, err
	}
	return r.runOne(ctx, root)
}

// StartReconcile is the asynchronous form of Reconcile: the busy check and
// rejection happen synchronously, the walk runs on a background goroutine.
func (r *Reconciler) StartReconcile(root string) error {
	if err := r.tryStart("index"); err != nil {
		return err
	}
	go func() {
		if _, err := r.runOne(context.Background(), root); err != nil {
			logging.Error("reconcile of %s failed: %v", root, err)
		}
	}()
	return nil
}

// ReconcileAll walks every registered root in one pass with a combined
// progress total, pruning each root after its walk. There is no
// short-circuit on this path.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Summary, error) {
	if err := r.tryStart("rescan all"); err != nil {
		return Summary{}, err
	}
	return r.runAll(ctx)
}

// StartReconcileAll is the asynchronous form of ReconcileAll.
func (r *Reconciler) StartReconcileAll() error {
	if err := r.tryStart("rescan all"); err != nil {
		return err
	}
	go func() {
		if _, err := r.runAll(context.Background()); err != nil {
			logging.Error("rescan of all roots failed: %v", err)
		}
	}()
	return nil
}

// runOne performs one single-root reconciliation. The Scanning state is
// already held; it is released (and completion delivered) on every path out.
func (r *Reconciler) runOne(ctx context.Context, root string) (summary Summary, err error) {
	start := time.Now()
	root = catalog.NormalizePath(root)
	summary.Roots = []string{root}

	defer func() {
		summary.Duration = time.Since(start)
		r.finish(summary)
	}()

	metrics.ScanRunsTotal.Inc()

	info, statErr := os.Stat(root)
	if statErr != nil {
		return summary, fmt.Errorf("cannot stat root %s: %w", root, statErr)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("root %s is not a directory", root)
	}

	diskCount, diskMax, fingerprintSkipped := diskCountAndMaxModTime(root)
	dbCount, dbMax, err := r.db.CountAndMaxModTime(ctx, root)
	if err != nil {
		return summary, err
	}

	// The catalog is considered current when the row count matches the
	// disk count and nothing on disk is newer than what the catalog has
	// seen. In-place content replacement preserving count and mtime is
	// invisible to this check; that is an accepted limitation.
	if diskCount == dbCount && dbMax >= diskMax {
		summary.ShortCircuit = true
		metrics.ScanShortCircuitsTotal.Inc()
		logging.Info("Catalog current for %s (%d files), skipping walk", root, diskCount)
		return summary, nil
	}

	if err := r.db.AddRoot(ctx, root); err != nil {
		return summary, err
	}

	total := diskCount
	if total < 1 {
		total = 1
	}
	step := diskCount / 100
	if step < 1 {
		step = 1
	}

	r.startProgress("index", total)

	w := &walkState{total: total, step: step, fsTotal: diskCount}
	r.walkAndUpsert(ctx, root, w)
	summary.Total = diskCount
	summary.Upserted = w.upserted
	summary.Skipped = w.skipped + fingerprintSkipped

	removed, pruneErr := r.db.RemoveMissingUnder(ctx, root)
	summary.Removed = removed
	if pruneErr != nil {
		return summary, pruneErr
	}

	if err := r.db.TouchRoot(ctx, root, float64(time.Now().UnixNano())/1e9); err != nil {
		logging.Warn("failed to record scan time for %s: %v", root, err)
	}

	metrics.ScanFilesRemoved.Add(float64(removed))
	logging.Info("Reconciled %s: %d upserted, %d skipped, %d removed in %v",
		root, w.upserted, summary.Skipped, removed, time.Since(start))
	return summary, nil
}

// runAll performs the all-roots rescan. The Scanning state is already held.
func (r *Reconciler) runAll(ctx context.Context) (summary Summary, err error) {
	start := time.Now()

	defer func() {
		summary.Duration = time.Since(start)
		r.finish(summary)
	}()

	metrics.ScanRunsTotal.Inc()

	registered, err := r.db.ListRoots(ctx)
	if err != nil {
		return summary, err
	}

	// Duplicate roots would double-count the combined total.
	seen := make(map[string]bool, len(registered))
	var roots []string
	for _, root := range registered {
		p := catalog.NormalizePath(root.Path)
		if !seen[p] {
			seen[p] = true
			roots = append(roots, p)
		}
	}
	summary.Roots = roots

	var fsTotal int64
	for _, root := range roots {
		n, _, _ := diskCountAndMaxModTime(root)
		fsTotal += n
	}

	total := fsTotal
	if total < 1 {
		total = 1
	}

	r.startProgress("rescan all", total)

	w := &walkState{total: total, step: rescanAllStep, fsTotal: fsTotal}
	for _, root := range roots {
		if err := r.db.AddRoot(ctx, root); err != nil {
			return summary, err
		}

		r.walkAndUpsert(ctx, root, w)

		removed, pruneErr := r.db.RemoveMissingUnder(ctx, root)
		summary.Removed += removed
		if pruneErr != nil {
			logging.Error("prune of %s failed: %v", root, pruneErr)
			continue
		}
		if err := r.db.TouchRoot(ctx, root, float64(time.Now().UnixNano())/1e9); err != nil {
			logging.Warn("failed to record scan time for %s: %v", root, err)
		}
	}

	summary.Total = fsTotal
	summary.Upserted = w.upserted
	summary.Skipped = w.skipped

	metrics.ScanFilesRemoved.Add(float64(summary.Removed))
	logging.Info("Rescanned %d roots: %d upserted, %d skipped, %d removed in %v",
		len(roots), w.upserted, w.skipped, summary.Removed, time.Since(start))
	return summary, nil
}

// startProgress resets the progress snapshot for a new walk.
func (r *Reconciler) startProgress(purpose string, total int64) {
	r.progress.Store(Progress{
		Total:     total,
		Scanning:  true,
		Purpose:   purpose,
		StartedAt: time.Now(),
	})
}

// tick publishes a progress update and delivers it to the callback.
func (r *Reconciler) tick(processed, total int64) {
	p := r.Progress()
	p.Processed = processed
	r.progress.Store(p)

	if r.onProgress != nil {
		r.onProgress(processed, total)
	}
}
