package docsystem

import (
	"context"

	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// DocumentRepository defines data access for live documents, their locales
// and their geometry. Every write that takes an expected version is a
// conditional update and returns a *domain.ConflictError when the row moved.
type DocumentRepository interface {
	// Create inserts the document row and assigns doc.ID
	Create(ctx context.Context, doc *docsystem.Document) error

	// GetByID loads the live aggregate (figures, locales, geometry)
	GetByID(ctx context.Context, id int64) (*docsystem.Document, error)

	// GetBatch loads live aggregates of one type, ordered by id.
	// Missing ids are skipped.
	GetBatch(ctx context.Context, docType docsystem.DocumentType, ids []int64) ([]*docsystem.Document, error)

	// GetTypes returns the type of every existing id
	GetTypes(ctx context.Context, ids []int64) (map[int64]docsystem.DocumentType, error)

	// List returns one page of non-redirected documents of a type, with the total count
	List(ctx context.Context, opts *docsystem.ListOptions) ([]*docsystem.Document, int, error)

	// UpdateFigures writes the document row if its version is still expectedVersion
	UpdateFigures(ctx context.Context, doc *docsystem.Document, expectedVersion int) error

	// SetProtected flips the live protected flag (not versioned)
	SetProtected(ctx context.Context, id int64, protected bool) error

	// CreateLocale inserts a new locale and assigns its ID
	CreateLocale(ctx context.Context, documentID int64, locale *docsystem.Locale) error

	// UpdateLocale writes a locale if its version is still expectedVersion
	UpdateLocale(ctx context.Context, documentID int64, locale *docsystem.Locale, expectedVersion int) error

	// SetTitlePrefix stores the derived title prefix without touching the version
	SetTitlePrefix(ctx context.Context, documentID int64, lang, prefix string) error

	// CreateGeometry inserts the geometry of a document
	CreateGeometry(ctx context.Context, documentID int64, geom *docsystem.Geometry) error

	// UpdateGeometry writes the geometry if its version is still expectedVersion
	UpdateGeometry(ctx context.Context, documentID int64, geom *docsystem.Geometry, expectedVersion int) error

	// FindIntersecting returns documents of the given types whose geometry
	// intersects the geometry of documentID
	FindIntersecting(ctx context.Context, documentID int64, types []docsystem.DocumentType) ([]docsystem.LinkedDocument, error)

	// FindRoutesByMainWaypoint returns the routes whose main waypoint is one of waypointIDs
	FindRoutesByMainWaypoint(ctx context.Context, waypointIDs []int64) ([]int64, error)
}
