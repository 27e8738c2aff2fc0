// Package reconciler brings catalog file rows for registered roots into
// agreement with the filesystem.
//
// At most one reconciliation runs at a time, process-wide. A request made
// while one is running is rejected synchronously with a BusyError naming
// the in-progress purpose; it is never queued. Reconciliation of a single
// root is skipped entirely when a cheap fingerprint (file count plus
// maximum modification time) indicates the catalog is already current.
// Per-file I/O errors during a walk are counted and skipped, never allowed
// to abort the batch.
package reconciler
