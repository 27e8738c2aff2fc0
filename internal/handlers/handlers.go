package handlers

import (
	"tagfiler/internal/catalog"
	"tagfiler/internal/reconciler"
	"tagfiler/internal/startup"
)

// Handlers bundles the dependencies shared by all HTTP handlers.
type Handlers struct {
	db     *catalog.Catalog
	rec    *reconciler.Reconciler
	config *startup.Config
}

// New creates the handler set.
func New(db *catalog.Catalog, rec *reconciler.Reconciler, config *startup.Config) *Handlers {
	return &Handlers{
		db:     db,
		rec:    rec,
		config: config,
	}
}
