package docsystem

import (
	"context"

	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// DocumentCache caches hydrated documents for reads.
// Get returns (nil, nil) on a miss.
type DocumentCache interface {
	Get(ctx context.Context, id int64) (*docsystem.Document, error)
	Set(ctx context.Context, doc *docsystem.Document) error
	Invalidate(ctx context.Context, ids ...int64) error
}
