package docsystem

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// syncService implements the SyncService interface
type syncService struct {
	docRepo     docsysRepo.DocumentRepository
	archiveRepo docsysRepo.ArchiveRepository
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewSyncService creates the read surface of the search index synchronizer.
// Batches are hydrated in windows of batchSize, at most concurrency at a time.
func NewSyncService(
	docRepo docsysRepo.DocumentRepository,
	archiveRepo docsysRepo.ArchiveRepository,
	batchSize int,
	concurrency int,
	logger *slog.Logger,
) docsysSvc.SyncService {
	if batchSize <= 0 {
		batchSize = config.DefaultSyncBatchSize
	}
	if concurrency <= 0 {
		concurrency = config.DefaultSyncConcurrency
	}
	return &syncService{
		docRepo:     docRepo,
		archiveRepo: archiveRepo,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ChangedSince lists the documents with a version written at or after
// since. Routes whose main waypoint changed are added, their title prefix
// may have changed with it.
func (s *syncService) ChangedSince(ctx context.Context, since time.Time) ([]models.ChangedDocument, error) {
	changed, err := s.archiveRepo.ChangedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("get changed documents: %w", err)
	}

	present := make(map[int64]bool, len(changed))
	var waypointIDs []int64
	var waypointsWrittenAt time.Time
	for _, c := range changed {
		present[c.DocumentID] = true
		if c.Type == models.TypeWaypoint {
			waypointIDs = append(waypointIDs, c.DocumentID)
			if c.WrittenAt.After(waypointsWrittenAt) {
				waypointsWrittenAt = c.WrittenAt
			}
		}
	}

	if len(waypointIDs) > 0 {
		routeIDs, err := s.docRepo.FindRoutesByMainWaypoint(ctx, waypointIDs)
		if err != nil {
			return nil, fmt.Errorf("find routes of changed waypoints: %w", err)
		}
		for _, id := range routeIDs {
			if present[id] {
				continue
			}
			present[id] = true
			changed = append(changed, models.ChangedDocument{
				DocumentID: id,
				Type:       models.TypeRoute,
				WrittenAt:  waypointsWrittenAt,
			})
		}
	}

	slices.SortFunc(changed, func(a, b models.ChangedDocument) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return changed, nil
}

// LoadBatch hydrates current documents of one type, in id order. Unknown ids
// are skipped.
func (s *syncService) LoadBatch(ctx context.Context, docType models.DocumentType, ids []int64) (docs []*models.Document, err error) {
	if !docType.Valid() {
		return nil, domain.NewValidationError("type", fmt.Sprintf("unknown document type %q", docType))
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) > config.MaxSyncIDs {
		return nil, domain.NewValidationError("ids", fmt.Sprintf("at most %d ids per batch", config.MaxSyncIDs))
	}

	ctx, span := tracer.Start(ctx, "sync.load_batch", trace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("ids", len(ids)),
	))
	defer func() { endSpan(span, err) }()

	windows := slices.Collect(slices.Chunk(ids, s.batchSize))
	results := make([][]*models.Document, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, window := range windows {
		g.Go(func() error {
			batch, err := s.docRepo.GetBatch(gctx, docType, window)
			if err != nil {
				return fmt.Errorf("load window %d: %w", i, err)
			}
			results[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs = make([]*models.Document, 0, len(ids))
	for _, batch := range results {
		docs = append(docs, batch...)
	}

	s.logger.Debug("sync batch loaded",
		"type", docType,
		"requested", len(ids),
		"loaded", len(docs),
		"windows", len(windows),
	)
	return docs, nil
}
