package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArchiveRepository implements the ArchiveRepository interface.
// Archive tables are insert-only.
type PostgresArchiveRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(config *postgres.RepositoryConfig) docsysRepo.ArchiveRepository {
	return &PostgresArchiveRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateDocumentArchive inserts a figures snapshot
func (r *PostgresArchiveRepository) CreateDocumentArchive(ctx context.Context, archive *models.ArchiveDocument) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, type, version, quality, redirects_to, figures)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.tables.ArchiveDocuments)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		archive.DocumentID,
		archive.Type,
		archive.Version,
		archive.Quality,
		archive.RedirectsTo,
		figuresOrEmpty(archive.Figures),
	).Scan(&archive.ID)
	if err != nil {
		return fmt.Errorf("create document archive: %w", err)
	}
	return nil
}

// CreateLocaleArchive inserts a locale snapshot
func (r *PostgresArchiveRepository) CreateLocaleArchive(ctx context.Context, archive *models.ArchiveLocale) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, lang, version, title, summary, description, fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, r.tables.ArchiveLocales)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		archive.DocumentID,
		archive.Lang,
		archive.Version,
		archive.Title,
		archive.Summary,
		archive.Description,
		archive.Fields,
	).Scan(&archive.ID)
	if err != nil {
		return fmt.Errorf("create locale archive: %w", err)
	}
	return nil
}

// CreateGeometryArchive inserts a geometry snapshot
func (r *PostgresArchiveRepository) CreateGeometryArchive(ctx context.Context, archive *models.ArchiveGeometry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, version, geom, geom_detail)
		VALUES ($1, $2, %s, %s)
		RETURNING id
	`, r.tables.ArchiveGeometries, fromGeoJSON("$3"), fromGeoJSON("$4"))

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		archive.DocumentID,
		archive.Version,
		nullable(archive.Geom),
		nullable(archive.GeomDetail),
	).Scan(&archive.ID)
	if err != nil {
		return fmt.Errorf("create geometry archive: %w", err)
	}
	return nil
}

// CreateVersion inserts a version row. A second latest row for the same
// language violates the partial unique index and means another request
// archived first.
func (r *PostgresArchiveRepository) CreateVersion(ctx context.Context, version *models.DocumentVersion) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, lang, archive_document_id, archive_locale_id, archive_geometry_id,
		                author_id, comment, written_at, is_latest_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		version.DocumentID,
		version.Lang,
		version.ArchiveDocumentID,
		version.ArchiveLocaleID,
		version.ArchiveGeometryID,
		version.AuthorID,
		version.Comment,
		version.WrittenAt,
		version.IsLatest,
	).Scan(&version.ID)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("document %d (%s) was archived concurrently", version.DocumentID, version.Lang),
				ResourceType: "locale",
				ResourceID:   fmt.Sprintf("%d/%s", version.DocumentID, version.Lang),
			}
		}
		return fmt.Errorf("create version: %w", err)
	}
	return nil
}

// MarkSuperseded clears is_latest_version on a version row
func (r *PostgresArchiveRepository) MarkSuperseded(ctx context.Context, versionID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_latest_version = FALSE
		WHERE id = $1 AND is_latest_version
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, versionID)
	if err != nil {
		return fmt.Errorf("supersede version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("version %d is no longer the latest", versionID),
			ResourceType: "locale",
			ResourceID:   fmt.Sprint(versionID),
		}
	}
	return nil
}

// snapshotSelect joins version rows, aliased v, with their archive rows.
// extra is appended to the select list.
func (r *PostgresArchiveRepository) snapshotSelect(extra, from string) string {
	return fmt.Sprintf(`
		SELECT v.id, v.document_id, v.lang, v.archive_document_id, v.archive_locale_id, v.archive_geometry_id,
		       v.author_id, v.comment, v.written_at, v.is_latest_version,
		       ad.id, ad.document_id, ad.type, ad.version, ad.quality, ad.redirects_to, ad.figures,
		       al.id, al.document_id, al.lang, al.version, al.title, al.summary, al.description, al.fields,
		       ag.id, ag.document_id, ag.version, %[4]s, %[5]s
		       %[6]s
		FROM %[7]s
		JOIN %[1]s ad ON ad.id = v.archive_document_id
		JOIN %[2]s al ON al.id = v.archive_locale_id
		LEFT JOIN %[3]s ag ON ag.id = v.archive_geometry_id
	`, r.tables.ArchiveDocuments, r.tables.ArchiveLocales, r.tables.ArchiveGeometries,
		toGeoJSON("ag.geom"), toGeoJSON("ag.geom_detail"), extra, from)
}

// scanSnapshot reads a row built by snapshotSelect; dest are the extra columns.
func scanSnapshot(row pgx.Row, dest ...any) (*models.VersionSnapshot, error) {
	var s models.VersionSnapshot
	var geomID, geomDocID *int64
	var geomVersion *int
	var geom, detail *string

	args := []any{
		&s.Version.ID, &s.Version.DocumentID, &s.Version.Lang, &s.Version.ArchiveDocumentID,
		&s.Version.ArchiveLocaleID, &s.Version.ArchiveGeometryID,
		&s.Version.AuthorID, &s.Version.Comment, &s.Version.WrittenAt, &s.Version.IsLatest,
		&s.Document.ID, &s.Document.DocumentID, &s.Document.Type, &s.Document.Version,
		&s.Document.Quality, &s.Document.RedirectsTo, &s.Document.Figures,
		&s.Locale.ID, &s.Locale.DocumentID, &s.Locale.Lang, &s.Locale.Version,
		&s.Locale.Title, &s.Locale.Summary, &s.Locale.Description, &s.Locale.Fields,
		&geomID, &geomDocID, &geomVersion, &geom, &detail,
	}
	if err := row.Scan(append(args, dest...)...); err != nil {
		return nil, err
	}

	if geomID != nil {
		g, d, err := normalizePair(geom, detail)
		if err != nil {
			return nil, err
		}
		s.Geometry = &models.ArchiveGeometry{
			ID:         *geomID,
			DocumentID: *geomDocID,
			Version:    *geomVersion,
			Geom:       g,
			GeomDetail: d,
		}
	}
	return &s, nil
}

// GetLatestSnapshots returns, per language, the latest version with its archive rows
func (r *PostgresArchiveRepository) GetLatestSnapshots(ctx context.Context, documentID int64) ([]models.VersionSnapshot, error) {
	query := r.snapshotSelect("", r.tables.Versions+" v") + `
		WHERE v.document_id = $1 AND v.is_latest_version
		ORDER BY v.lang
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("get latest versions: %w", err)
	}
	defer rows.Close()

	var snapshots []models.VersionSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest version: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// GetHistory returns the versions of one language, oldest first
func (r *PostgresArchiveRepository) GetHistory(ctx context.Context, documentID int64, lang string) ([]models.DocumentVersion, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, lang, archive_document_id, archive_locale_id, archive_geometry_id,
		       author_id, comment, written_at, is_latest_version
		FROM %s
		WHERE document_id = $1 AND lang = $2
		ORDER BY id
	`, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID, lang)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.DocumentVersion])
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return versions, nil
}

// GetSnapshot returns one version with its archive rows and its neighbours
// in the history of the same language
func (r *PostgresArchiveRepository) GetSnapshot(ctx context.Context, documentID int64, lang string, versionID int64) (*models.VersionSnapshot, error) {
	from := fmt.Sprintf(`(
			SELECT *,
			       LAG(id) OVER (ORDER BY id) AS previous_id,
			       LEAD(id) OVER (ORDER BY id) AS next_id
			FROM %s
			WHERE document_id = $1 AND lang = $2
		) v`, r.tables.Versions)
	query := r.snapshotSelect(", v.previous_id, v.next_id", from) + `
		WHERE v.id = $3
	`

	executor := postgres.GetExecutor(ctx, r.pool)
	var previous, next *int64
	s, err := scanSnapshot(executor.QueryRow(ctx, query, documentID, lang, versionID), &previous, &next)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("version %d of document %d (%s) not found", versionID, documentID, lang)}
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	s.PreviousVersionID, s.NextVersionID = previous, next
	return s, nil
}

// ChangedSince returns the documents with a version written at or after since
func (r *PostgresArchiveRepository) ChangedSince(ctx context.Context, since time.Time) ([]models.ChangedDocument, error) {
	query := fmt.Sprintf(`
		SELECT v.document_id, d.type, MAX(v.written_at) AS written_at
		FROM %s v
		JOIN %s d ON d.id = v.document_id
		WHERE v.written_at >= $1
		GROUP BY v.document_id, d.type
		ORDER BY v.document_id
	`, r.tables.Versions, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get changed documents: %w", err)
	}
	changed, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ChangedDocument])
	if err != nil {
		return nil, fmt.Errorf("scan changed document: %w", err)
	}
	return changed, nil
}
