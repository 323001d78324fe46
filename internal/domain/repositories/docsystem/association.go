package docsystem

import (
	"context"

	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// AssociationRepository defines access to the association graph and its log.
type AssociationRepository interface {
	// GetForDocument returns every edge touching documentID, with the type of the other end
	GetForDocument(ctx context.Context, documentID int64) ([]docsystem.LinkedAssociation, error)

	// Create inserts an edge. Returns false when the edge already existed.
	Create(ctx context.Context, association docsystem.Association) (bool, error)

	// Delete removes an edge
	Delete(ctx context.Context, association docsystem.Association) error

	// CreateLogEntry appends to the association log
	CreateLogEntry(ctx context.Context, entry *docsystem.AssociationLogEntry) error
}
