package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAssociationRepository implements the AssociationRepository interface
type PostgresAssociationRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewAssociationRepository creates a new association repository
func NewAssociationRepository(config *postgres.RepositoryConfig) docsysRepo.AssociationRepository {
	return &PostgresAssociationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetForDocument returns every edge touching documentID
func (r *PostgresAssociationRepository) GetForDocument(ctx context.Context, documentID int64) ([]models.LinkedAssociation, error) {
	query := fmt.Sprintf(`
		SELECT a.parent_document_id, a.child_document_id,
		       d.id AS other_id, d.type AS other_type,
		       a.child_document_id = $1 AS other_is_parent
		FROM %s a
		JOIN %s d ON d.id = CASE WHEN a.parent_document_id = $1 THEN a.child_document_id ELSE a.parent_document_id END
		WHERE a.parent_document_id = $1 OR a.child_document_id = $1
		ORDER BY d.id
	`, r.tables.Associations, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("get associations: %w", err)
	}
	defer rows.Close()

	var links []models.LinkedAssociation
	for rows.Next() {
		var l models.LinkedAssociation
		if err := rows.Scan(&l.ParentID, &l.ChildID, &l.OtherID, &l.OtherType, &l.OtherIsParent); err != nil {
			return nil, fmt.Errorf("scan association: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Create inserts an edge, reporting whether it was new
func (r *PostgresAssociationRepository) Create(ctx context.Context, a models.Association) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (parent_document_id, child_document_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, r.tables.Associations)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, a.ParentID, a.ChildID)
	if err != nil {
		return false, fmt.Errorf("create association %d-%d: %w", a.ParentID, a.ChildID, err)
	}
	return result.RowsAffected() == 1, nil
}

// Delete removes an edge
func (r *PostgresAssociationRepository) Delete(ctx context.Context, a models.Association) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE parent_document_id = $1 AND child_document_id = $2
	`, r.tables.Associations)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, a.ParentID, a.ChildID); err != nil {
		return fmt.Errorf("delete association %d-%d: %w", a.ParentID, a.ChildID, err)
	}
	return nil
}

// CreateLogEntry appends to the association log
func (r *PostgresAssociationRepository) CreateLogEntry(ctx context.Context, entry *models.AssociationLogEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (parent_document_id, child_document_id, user_id, written_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, r.tables.AssociationLog)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, entry.ParentID, entry.ChildID, entry.UserID, entry.WrittenAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("log association: %w", err)
	}
	return nil
}

