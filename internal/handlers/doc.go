// Package handlers implements the JSON HTTP API exposed to catalog
// front-ends: file listing and manipulation, tag management, root
// registration, scan control, and persisted settings.
package handlers
