package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) docsysRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const documentColumns = "id, type, version, quality, protected, redirects_to, figures"

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.Type,
		&doc.Version,
		&doc.Quality,
		&doc.Protected,
		&doc.RedirectsTo,
		&doc.Figures,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create inserts the document row
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (type, version, quality, protected, redirects_to, figures)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.Type,
		doc.Version,
		doc.Quality,
		doc.Protected,
		doc.RedirectsTo,
		figuresOrEmpty(doc.Figures),
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID loads the live aggregate
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, documentColumns, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	if err := r.attach(ctx, []*models.Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetBatch loads live aggregates of one type, ordered by id
func (r *PostgresDocumentRepository) GetBatch(ctx context.Context, docType models.DocumentType, ids []int64) ([]*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE type = $1 AND id = ANY($2)
		ORDER BY id
	`, documentColumns, r.tables.Documents)

	docs, err := r.queryDocuments(ctx, query, docType, ids)
	if err != nil {
		return nil, fmt.Errorf("get document batch: %w", err)
	}
	if err := r.attach(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetTypes returns the type of every existing id
func (r *PostgresDocumentRepository) GetTypes(ctx context.Context, ids []int64) (map[int64]models.DocumentType, error) {
	query := fmt.Sprintf(`SELECT id, type FROM %s WHERE id = ANY($1)`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get document types: %w", err)
	}
	defer rows.Close()

	types := make(map[int64]models.DocumentType, len(ids))
	for rows.Next() {
		var id int64
		var t models.DocumentType
		if err := rows.Scan(&id, &t); err != nil {
			return nil, fmt.Errorf("scan document type: %w", err)
		}
		types[id] = t
	}
	return types, rows.Err()
}

// List returns one page of non-redirected documents of a type
func (r *PostgresDocumentRepository) List(ctx context.Context, opts *models.ListOptions) ([]*models.Document, int, error) {
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE type = $1 AND redirects_to IS NULL
	`, r.tables.Documents)

	var total int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, countQuery, opts.Type).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE type = $1 AND redirects_to IS NULL
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, documentColumns, r.tables.Documents)

	docs, err := r.queryDocuments(ctx, query, opts.Type, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	if err := r.attach(ctx, docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *PostgresDocumentRepository) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// attach loads the locales and geometries of docs, one query each.
func (r *PostgresDocumentRepository) attach(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Document, len(docs))
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}
	if err := r.attachLocales(ctx, ids, byID); err != nil {
		return err
	}
	return r.attachGeometries(ctx, ids, byID)
}

func (r *PostgresDocumentRepository) attachLocales(ctx context.Context, ids []int64, byID map[int64]*models.Document) error {
	query := fmt.Sprintf(`
		SELECT document_id, id, lang, version, title, summary, description, fields, title_prefix
		FROM %s
		WHERE document_id = ANY($1)
		ORDER BY document_id, lang
	`, r.tables.Locales)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("get locales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var documentID int64
		var l models.Locale
		if err := rows.Scan(&documentID, &l.ID, &l.Lang, &l.Version, &l.Title, &l.Summary, &l.Description, &l.Fields, &l.TitlePrefix); err != nil {
			return fmt.Errorf("scan locale: %w", err)
		}
		byID[documentID].Locales = append(byID[documentID].Locales, l)
	}
	return rows.Err()
}

func (r *PostgresDocumentRepository) attachGeometries(ctx context.Context, ids []int64, byID map[int64]*models.Document) error {
	query := fmt.Sprintf(`
		SELECT document_id, version, %s, %s
		FROM %s
		WHERE document_id = ANY($1)
	`, toGeoJSON("geom"), toGeoJSON("geom_detail"), r.tables.Geometries)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("get geometries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var documentID int64
		var g models.Geometry
		var geom, detail *string
		if err := rows.Scan(&documentID, &g.Version, &geom, &detail); err != nil {
			return fmt.Errorf("scan geometry: %w", err)
		}
		if g.Geom, g.GeomDetail, err = normalizePair(geom, detail); err != nil {
			return err
		}
		byID[documentID].Geometry = &g
	}
	return rows.Err()
}

// UpdateFigures writes the document row if its version is still expectedVersion
func (r *PostgresDocumentRepository) UpdateFigures(ctx context.Context, doc *models.Document, expectedVersion int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET version = $2, quality = $3, redirects_to = $4, figures = $5
		WHERE id = $1 AND version = $6
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		doc.ID,
		doc.Version,
		doc.Quality,
		doc.RedirectsTo,
		figuresOrEmpty(doc.Figures),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("document %d was modified concurrently", doc.ID),
			ResourceType: "document",
			ResourceID:   fmt.Sprint(doc.ID),
		}
	}
	return nil
}

// SetProtected flips the live protected flag
func (r *PostgresDocumentRepository) SetProtected(ctx context.Context, id int64, protected bool) error {
	query := fmt.Sprintf(`UPDATE %s SET protected = $2 WHERE id = $1`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, protected)
	if err != nil {
		return fmt.Errorf("set protected: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
	}
	return nil
}

// CreateLocale inserts a new locale
func (r *PostgresDocumentRepository) CreateLocale(ctx context.Context, documentID int64, locale *models.Locale) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, lang, version, title, summary, description, fields, title_prefix)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, r.tables.Locales)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		documentID,
		locale.Lang,
		locale.Version,
		locale.Title,
		locale.Summary,
		locale.Description,
		locale.Fields,
		locale.TitlePrefix,
	).Scan(&locale.ID)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("locale %q of document %d was created concurrently", locale.Lang, documentID),
				ResourceType: "locale",
				ResourceID:   fmt.Sprintf("%d/%s", documentID, locale.Lang),
			}
		}
		return fmt.Errorf("create locale: %w", err)
	}
	return nil
}

// UpdateLocale writes a locale if its version is still expectedVersion.
// The title prefix is left alone.
func (r *PostgresDocumentRepository) UpdateLocale(ctx context.Context, documentID int64, locale *models.Locale, expectedVersion int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET version = $3, title = $4, summary = $5, description = $6, fields = $7
		WHERE document_id = $1 AND lang = $2 AND version = $8
	`, r.tables.Locales)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		documentID,
		locale.Lang,
		locale.Version,
		locale.Title,
		locale.Summary,
		locale.Description,
		locale.Fields,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update locale: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("locale %q of document %d was modified concurrently", locale.Lang, documentID),
			ResourceType: "locale",
			ResourceID:   fmt.Sprintf("%d/%s", documentID, locale.Lang),
		}
	}
	return nil
}

// SetTitlePrefix stores the derived title prefix without touching the version
func (r *PostgresDocumentRepository) SetTitlePrefix(ctx context.Context, documentID int64, lang, prefix string) error {
	query := fmt.Sprintf(`UPDATE %s SET title_prefix = $3 WHERE document_id = $1 AND lang = $2`, r.tables.Locales)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID, lang, prefix); err != nil {
		return fmt.Errorf("set title prefix: %w", err)
	}
	return nil
}

// CreateGeometry inserts the geometry of a document
func (r *PostgresDocumentRepository) CreateGeometry(ctx context.Context, documentID int64, geom *models.Geometry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, version, geom, geom_detail)
		VALUES ($1, $2, %s, %s)
	`, r.tables.Geometries, fromGeoJSON("$3"), fromGeoJSON("$4"))

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID, geom.Version, nullable(geom.Geom), nullable(geom.GeomDetail)); err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("geometry of document %d was created concurrently", documentID),
				ResourceType: "geometry",
				ResourceID:   fmt.Sprint(documentID),
			}
		}
		return fmt.Errorf("create geometry: %w", err)
	}
	return nil
}

// UpdateGeometry writes the geometry if its version is still expectedVersion
func (r *PostgresDocumentRepository) UpdateGeometry(ctx context.Context, documentID int64, geom *models.Geometry, expectedVersion int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET version = $2, geom = %s, geom_detail = %s
		WHERE document_id = $1 AND version = $5
	`, r.tables.Geometries, fromGeoJSON("$3"), fromGeoJSON("$4"))

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, documentID, geom.Version, nullable(geom.Geom), nullable(geom.GeomDetail), expectedVersion)
	if err != nil {
		return fmt.Errorf("update geometry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("geometry of document %d was modified concurrently", documentID),
			ResourceType: "geometry",
			ResourceID:   fmt.Sprint(documentID),
		}
	}
	return nil
}

// FindIntersecting returns live documents of the given types whose geometry
// intersects the geometry of documentID. Detail geometries are preferred
// over default points on both sides.
func (r *PostgresDocumentRepository) FindIntersecting(ctx context.Context, documentID int64, types []models.DocumentType) ([]models.LinkedDocument, error) {
	query := fmt.Sprintf(`
		SELECT d.id, d.type
		FROM %[1]s self
		JOIN %[1]s g ON ST_Intersects(COALESCE(g.geom_detail, g.geom), COALESCE(self.geom_detail, self.geom))
		JOIN %[2]s d ON d.id = g.document_id
		WHERE self.document_id = $1
		  AND g.document_id <> $1
		  AND d.type = ANY($2)
		  AND d.redirects_to IS NULL
		ORDER BY d.id
	`, r.tables.Geometries, r.tables.Documents)

	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID, names)
	if err != nil {
		return nil, fmt.Errorf("find intersecting documents: %w", err)
	}
	defer rows.Close()

	var linked []models.LinkedDocument
	for rows.Next() {
		var l models.LinkedDocument
		if err := rows.Scan(&l.DocumentID, &l.Type); err != nil {
			return nil, fmt.Errorf("scan intersecting document: %w", err)
		}
		linked = append(linked, l)
	}
	return linked, rows.Err()
}

// FindRoutesByMainWaypoint returns the routes whose main waypoint is one of waypointIDs
func (r *PostgresDocumentRepository) FindRoutesByMainWaypoint(ctx context.Context, waypointIDs []int64) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE type = $1 AND (figures->>'main_waypoint_id')::bigint = ANY($2)
		ORDER BY id
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, models.TypeRoute, waypointIDs)
	if err != nil {
		return nil, fmt.Errorf("find routes by main waypoint: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan route id: %w", err)
	}
	return ids, nil
}

func figuresOrEmpty(f models.Figures) models.Figures {
	if f == nil {
		return models.Figures{}
	}
	return f
}

