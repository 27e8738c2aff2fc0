// Package catalog implements the persistent file/tag catalog backing the
// tagfiler service.
//
// The catalog is a single SQLite database file holding five tables: files
// (one row per on-disk file, keyed by unique normalized path), tags, the
// file_tags many-to-many relation, registered root directories, and a small
// key/value settings store. All operations acquire their own connection from
// the pool and run in their own transaction where more than one statement is
// involved, so a long-running background scan never starves foreground
// reads.
//
// Storage failures propagate to the caller wrapped with context; they abort
// the single operation, never the process.
package catalog
