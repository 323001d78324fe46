package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/cache"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AssociationReconciler validates submitted links and brings the stored
// association graph in line with them.
type AssociationReconciler struct {
	registry  *doctype.Registry
	assocRepo docsysRepo.AssociationRepository
	docRepo   docsysRepo.DocumentRepository
	typeCache *cache.TypeCache
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewAssociationReconciler creates a reconciler. typeCache may be nil.
func NewAssociationReconciler(
	registry *doctype.Registry,
	assocRepo docsysRepo.AssociationRepository,
	docRepo docsysRepo.DocumentRepository,
	typeCache *cache.TypeCache,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *AssociationReconciler {
	return &AssociationReconciler{
		registry:  registry,
		assocRepo: assocRepo,
		docRepo:   docRepo,
		typeCache: typeCache,
		metrics:   metrics,
		logger:    logger,
	}
}

func associationField(key models.AssociationKey) string {
	return "associations." + string(key)
}

// Validate checks every submitted link and returns all problems at once.
// Keys the document type cannot update are ignored. docID is zero on create.
func (r *AssociationReconciler) Validate(
	ctx context.Context,
	cfg *doctype.TypeConfig,
	docID int64,
	submitted models.Associations,
) (*domain.ValidationError, error) {
	verr := &domain.ValidationError{}

	expected := make(map[models.AssociationKey]models.DocumentType)
	var ids []int64
	for _, key := range cfg.Associations.Updatable {
		refs, ok := submitted[key]
		if !ok || len(refs) == 0 {
			continue
		}
		if _, err := r.registry.OtherRole(cfg.Type, key); err != nil {
			verr.Add(associationField(key), "invalid association type")
			continue
		}
		ks, _ := r.registry.AssociationKey(key)
		expected[key] = ks.Type
		ids = append(ids, submitted.IDs(key)...)
	}

	types, err := r.lookupTypes(ctx, ids)
	if err != nil {
		return nil, err
	}

	// a document is linked at most once, whatever the direction
	listedUnder := make(map[int64]models.AssociationKey)
	for _, key := range cfg.Associations.Updatable {
		want, ok := expected[key]
		if !ok {
			continue
		}
		for _, id := range submitted.IDs(key) {
			got, exists := types[id]
			first, listed := listedUnder[id]
			switch {
			case docID != 0 && id == docID:
				verr.Add(associationField(key), fmt.Sprintf("document %q cannot be associated with itself", fmt.Sprint(id)))
			case listed:
				verr.Add(associationField(key), fmt.Sprintf("document %q is already listed in %q", fmt.Sprint(id), first))
			case !exists:
				verr.Add(associationField(key), fmt.Sprintf("document %q does not exist", fmt.Sprint(id)))
			case got != want:
				verr.Add(associationField(key), fmt.Sprintf("document %q is not of type %q", fmt.Sprint(id), want))
			}
			if !listed {
				listedUnder[id] = key
			}
		}
	}

	for _, key := range cfg.Associations.Required {
		if len(submitted.IDs(key)) == 0 {
			ks, _ := r.registry.AssociationKey(key)
			verr.Add(associationField(key), fmt.Sprintf("at least one %s is required", ks.Type))
		}
	}

	return verr, nil
}

// lookupTypes resolves document types through the in-process cache first.
func (r *AssociationReconciler) lookupTypes(ctx context.Context, ids []int64) (map[int64]models.DocumentType, error) {
	if len(ids) == 0 {
		return map[int64]models.DocumentType{}, nil
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if r.typeCache == nil {
		return r.docRepo.GetTypes(ctx, ids)
	}

	found, misses := r.typeCache.Lookup(ids)
	r.metrics.RecordCacheLookup("types", len(misses) == 0)
	if len(misses) == 0 {
		return found, nil
	}

	loaded, err := r.docRepo.GetTypes(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("get document types: %w", err)
	}
	r.typeCache.Add(loaded)
	for id, t := range loaded {
		found[id] = t
	}
	return found, nil
}

// Apply reconciles the stored edges of doc with the submitted ones. For
// every key the type may update, the submission is the complete desired set:
// missing edges are created and logged, extra edges are removed. Edges that
// no updatable key covers are left alone.
func (r *AssociationReconciler) Apply(
	ctx context.Context,
	doc *models.Document,
	cfg *doctype.TypeConfig,
	submitted models.Associations,
	userID int64,
	now time.Time,
) (applied models.AppliedAssociations, err error) {
	ctx, span := tracer.Start(ctx, "associations.apply", trace.WithAttributes(
		attribute.Int64("document.id", doc.ID),
		attribute.String("document.type", string(doc.Type)),
	))
	defer func() { endSpan(span, err) }()

	existing, err := r.assocRepo.GetForDocument(ctx, doc.ID)
	if err != nil {
		return applied, fmt.Errorf("get associations: %w", err)
	}

	type keyPlan struct {
		otherIsParent bool
		current       map[int64]models.Association
		desired       []int64
	}
	var plans []keyPlan
	for _, key := range cfg.Associations.Updatable {
		role, err := r.registry.OtherRole(cfg.Type, key)
		if err != nil {
			continue
		}
		ks, _ := r.registry.AssociationKey(key)
		p := keyPlan{
			otherIsParent: role == doctype.RoleParent,
			current:       make(map[int64]models.Association),
			desired:       submitted.IDs(key),
		}
		for _, e := range existing {
			if e.OtherType == ks.Type && e.OtherIsParent == p.otherIsParent {
				p.current[e.OtherID] = e.Association
			}
		}
		plans = append(plans, p)
	}

	// Removals run first so a link can move from one key to another.
	linked := make(map[int64]bool, len(existing))
	for _, e := range existing {
		linked[e.OtherID] = true
	}
	for _, p := range plans {
		for _, otherID := range sortedIDs(p.current) {
			if slices.Contains(p.desired, otherID) {
				continue
			}
			edge := p.current[otherID]
			if err := r.assocRepo.Delete(ctx, edge); err != nil {
				return applied, fmt.Errorf("delete association %d-%d: %w", edge.ParentID, edge.ChildID, err)
			}
			delete(linked, otherID)
			applied.Removed = append(applied.Removed, edge)
		}
	}

	for _, p := range plans {
		for _, otherID := range p.desired {
			// linked either through this key or the other way round
			if linked[otherID] {
				continue
			}
			edge := models.Association{ParentID: doc.ID, ChildID: otherID}
			if p.otherIsParent {
				edge = models.Association{ParentID: otherID, ChildID: doc.ID}
			}
			created, err := r.assocRepo.Create(ctx, edge)
			if err != nil {
				return applied, fmt.Errorf("create association %d-%d: %w", edge.ParentID, edge.ChildID, err)
			}
			linked[otherID] = true
			if !created {
				continue
			}
			entry := &models.AssociationLogEntry{
				ParentID:  edge.ParentID,
				ChildID:   edge.ChildID,
				UserID:    userID,
				WrittenAt: now,
			}
			if err := r.assocRepo.CreateLogEntry(ctx, entry); err != nil {
				return applied, fmt.Errorf("log association: %w", err)
			}
			applied.Added = append(applied.Added, edge)
		}
	}

	r.metrics.RecordAssociationChanges(len(applied.Added), len(applied.Removed))
	if !applied.IsEmpty() {
		r.logger.Debug("associations reconciled",
			"document_id", doc.ID,
			"added", len(applied.Added),
			"removed", len(applied.Removed),
		)
	}
	return applied, nil
}

func sortedIDs(m map[int64]models.Association) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// neighbours returns the ids on the other end of the given edges.
func neighbours(docID int64, applied models.AppliedAssociations) []int64 {
	var ids []int64
	for _, edges := range [][]models.Association{applied.Added, applied.Removed} {
		for _, e := range edges {
			if e.ParentID == docID {
				ids = append(ids, e.ChildID)
			} else {
				ids = append(ids, e.ParentID)
			}
		}
	}
	return ids
}
