package docsystem

import (
	"context"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// SyncService is the read surface used by the search index synchronizer
type SyncService interface {
	// ChangedSince lists the documents written at or after since, plus the
	// routes whose main waypoint changed
	ChangedSince(ctx context.Context, since time.Time) ([]docsystem.ChangedDocument, error)

	// LoadBatch returns hydrated current documents of one type, in id order
	LoadBatch(ctx context.Context, docType docsystem.DocumentType, ids []int64) ([]*docsystem.Document, error)
}
