package docsystem

import (
	"context"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// ArchiveRepository defines access to the append-only archive tables and
// the version history. Archive rows are never updated once inserted.
type ArchiveRepository interface {
	// CreateDocumentArchive inserts a figures snapshot and assigns its ID
	CreateDocumentArchive(ctx context.Context, archive *docsystem.ArchiveDocument) error

	// CreateLocaleArchive inserts a locale snapshot and assigns its ID
	CreateLocaleArchive(ctx context.Context, archive *docsystem.ArchiveLocale) error

	// CreateGeometryArchive inserts a geometry snapshot and assigns its ID
	CreateGeometryArchive(ctx context.Context, archive *docsystem.ArchiveGeometry) error

	// CreateVersion inserts a version row and assigns its ID
	CreateVersion(ctx context.Context, version *docsystem.DocumentVersion) error

	// MarkSuperseded clears is_latest_version on a version row
	MarkSuperseded(ctx context.Context, versionID int64) error

	// GetLatestSnapshots returns, per language, the latest version joined
	// with its archive rows
	GetLatestSnapshots(ctx context.Context, documentID int64) ([]docsystem.VersionSnapshot, error)

	// GetHistory returns the versions of one language, oldest first
	GetHistory(ctx context.Context, documentID int64, lang string) ([]docsystem.DocumentVersion, error)

	// GetSnapshot returns one version with its archive rows and neighbours
	GetSnapshot(ctx context.Context, documentID int64, lang string, versionID int64) (*docsystem.VersionSnapshot, error)

	// ChangedSince returns the documents with a version written at or after since
	ChangedSince(ctx context.Context, since time.Time) ([]docsystem.ChangedDocument, error)
}
