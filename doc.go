// Package main provides the entry point for the tagfiler service.
//
// Tagfiler is a self-hosted catalog for organizing files with free-form
// tags. It keeps an SQLite database of file metadata (path, size,
// modification time), user-defined tags with a stable display order, and
// the directory roots it watches, and exposes the catalog over a JSON API.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads environment variables and validates the
//     database directory
//  2. Catalog Initialization: opens the SQLite database in WAL mode and
//     applies schema migrations
//  3. Reconciler Setup: prepares the directory walker that keeps catalog
//     rows in agreement with the filesystem
//  4. HTTP Server Setup: configures routes and middleware, optionally
//     starts a separate Prometheus metrics listener
//  5. Graceful Shutdown: handles SIGINT/SIGTERM and drains both servers
//
// # Scanning
//
// Reconciliation runs are requested over the API and execute in the
// background, one at a time. A request arriving while a scan is running is
// rejected immediately rather than queued. An unchanged root (same file
// count, nothing newer on disk than in the catalog) is detected up front
// and skipped without a walk.
//
// # Configuration
//
// All configuration comes from environment variables:
//
//	DATABASE_DIR      directory holding the SQLite database (default ".")
//	PORT              API listen port (default "8080")
//	METRICS_PORT      Prometheus listen port (default "9090")
//	METRICS_ENABLED   serve Prometheus metrics (default "true")
//	LOG_HEALTH_CHECKS log health endpoint requests (default "false")
//	LOG_LEVEL         DEBUG, INFO, WARN, or ERROR (default "INFO")
package main
