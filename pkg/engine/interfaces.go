package engine

import (
	"context"
	"time"
)

// ParamLoader reads a class parameter file into loosely typed values.
// Implementations dispatch on the file format.
type ParamLoader interface {
	// Load reads and evaluates the file at path.
	Load(ctx context.Context, path string) (map[string]any, error)

	// Supports reports whether the loader understands the file's format.
	Supports(path string) bool
}

// CatalogRecord is an archived catalog with its metadata.
type CatalogRecord struct {
	// ID is the unique identifier of the archived compile.
	ID string `json:"id"`

	// Class is the class that produced the catalog.
	Class string `json:"class"`

	// Digest is the SHA-256 of the archived catalog encoding.
	Digest string `json:"digest"`

	// OSFamily is the osfamily fact the catalog was compiled for.
	OSFamily string `json:"osfamily"`

	// DirectiveCount is the number of directives in the catalog.
	DirectiveCount int `json:"directive_count"`

	// Source is the parameter file the catalog was compiled from.
	Source string `json:"source,omitempty"`

	// CreatedAt is when the catalog was archived.
	CreatedAt time.Time `json:"created_at"`

	// Catalog is the archived catalog with secret values sealed.
	// It is nil in listings.
	Catalog *Catalog `json:"catalog,omitempty"`
}

// CatalogArchive persists compiled catalogs so later compiles can be
// compared against them.
type CatalogArchive interface {
	// SaveCatalog archives a catalog and returns its record.
	SaveCatalog(ctx context.Context, catalog *Catalog, source string) (*CatalogRecord, error)

	// GetCatalog retrieves an archived catalog by ID.
	GetCatalog(ctx context.Context, id string) (*CatalogRecord, error)

	// LatestCatalog retrieves the most recent catalog archived for a source.
	// An empty source matches any.
	LatestCatalog(ctx context.Context, source string) (*CatalogRecord, error)

	// ListCatalogs lists archived catalogs, newest first, without bodies.
	ListCatalogs(ctx context.Context, limit, offset int) ([]*CatalogRecord, error)

	// DeleteCatalog removes an archived catalog.
	DeleteCatalog(ctx context.Context, id string) error
}
