package docsystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	docsys "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/domain/repositories"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/domain/services"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/observability"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// documentService implements the DocumentService interface
type documentService struct {
	registry    *doctype.Registry
	docRepo     docsysRepo.DocumentRepository
	archiveRepo docsysRepo.ArchiveRepository
	assocRepo   docsysRepo.AssociationRepository
	txManager   repositories.TransactionManager
	authorizer  services.DocumentAuthorizer
	reconciler  *AssociationReconciler
	archiver    *Archiver
	cache       docsysSvc.DocumentCache
	metrics     *observability.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewDocumentService creates a new document service. docCache may be nil.
func NewDocumentService(
	registry *doctype.Registry,
	docRepo docsysRepo.DocumentRepository,
	archiveRepo docsysRepo.ArchiveRepository,
	assocRepo docsysRepo.AssociationRepository,
	txManager repositories.TransactionManager,
	authorizer services.DocumentAuthorizer,
	reconciler *AssociationReconciler,
	docCache docsysSvc.DocumentCache,
	metrics *observability.Metrics,
	logger *slog.Logger,
) docsysSvc.DocumentService {
	if docCache == nil {
		docCache = noopCache{}
	}
	return &documentService{
		registry:    registry,
		docRepo:     docRepo,
		archiveRepo: archiveRepo,
		assocRepo:   assocRepo,
		txManager:   txManager,
		authorizer:  authorizer,
		reconciler:  reconciler,
		archiver:    NewArchiver(archiveRepo, metrics),
		cache:       docCache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateDocument validates a submission and stores version 1 of it
func (s *documentService) CreateDocument(ctx context.Context, actor *models.Actor, req *docsysSvc.CreateDocumentRequest) (result *docsysSvc.WriteResult, err error) {
	ctx, span := tracer.Start(ctx, "document.create", trace.WithAttributes(
		attribute.String("document.type", string(req.Type)),
	))
	start := time.Now()
	defer func() {
		s.metrics.RecordWrite(string(req.Type), "create", outcome(err), time.Since(start))
		endSpan(span, err)
	}()

	cfg, err := s.typeConfig(req.Type)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanCreate(actor, req.Type); err != nil {
		return nil, err
	}

	doc := req.Document.Clone()
	doc.ID, doc.Type, doc.RedirectsTo, doc.Protected = 0, req.Type, nil, false
	if doc.Associations == nil {
		doc.Associations = docsys.Associations{}
	}

	verr, err := validateSubmission(cfg, doc, true)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(req.Message, validation.RuneLength(0, config.MaxCommentLength)); err != nil {
		verr.Add("message", err.Error())
	}

	now := s.now().UTC()
	var summary docsys.ChangeSummary
	var applied docsys.AppliedAssociations

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		avErr, err := s.reconciler.Validate(txCtx, cfg, 0, doc.Associations)
		if err != nil {
			return err
		}
		verr.Merge(avErr)

		waypoint, mwErr, err := s.loadMainWaypoint(txCtx, doc)
		if err != nil {
			return err
		}
		verr.Merge(mwErr)
		if verr.HasErrors() {
			return verr
		}

		verr.Merge(deriveGeometry(cfg, doc, waypoint))
		verr.Merge(checkGeometryRequired(cfg, doc))
		if verr.HasErrors() {
			return verr
		}
		if doc.Geometry.IsEmpty() {
			doc.Geometry = nil
		}

		summary = ClassifyUpdate(nil, doc)
		bumpVersions(doc, nil, summary)

		if err := s.docRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		for i := range doc.Locales {
			if err := s.docRepo.CreateLocale(txCtx, doc.ID, &doc.Locales[i]); err != nil {
				return fmt.Errorf("create locale %s: %w", doc.Locales[i].Lang, err)
			}
		}
		if doc.Geometry != nil {
			if err := s.docRepo.CreateGeometry(txCtx, doc.ID, doc.Geometry); err != nil {
				return fmt.Errorf("create geometry: %w", err)
			}
		}

		meta := versionMeta{AuthorID: actor.UserID, Comment: req.Message, WrittenAt: now}
		if _, err := s.archiver.Archive(txCtx, doc, nil, summary, meta); err != nil {
			return err
		}

		if doc.Type == docsys.TypeRoute {
			if err := s.refreshTitlePrefixes(txCtx, doc, waypoint); err != nil {
				return err
			}
		}

		applied, err = s.reconciler.Apply(txCtx, doc, cfg, doc.Associations, actor.UserID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, neighbours(doc.ID, applied)...)
	s.recordChanges(doc.Type, summary)
	s.logger.Info("document created",
		"id", doc.ID,
		"type", doc.Type,
		"langs", doc.Langs(),
		"user_id", actor.UserID,
	)

	return &docsysSvc.WriteResult{Document: doc, Changes: summary, Associations: applied}, nil
}

// UpdateDocument merges a submission into the persisted document
func (s *documentService) UpdateDocument(ctx context.Context, actor *models.Actor, id int64, req *docsysSvc.UpdateDocumentRequest) (*docsysSvc.WriteResult, error) {
	cfg, err := s.typeConfig(req.Type)
	if err != nil {
		return nil, err
	}

	incoming := req.Document.Clone()
	incoming.Type = req.Type
	verr, err := validateSubmission(cfg, incoming, false)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(req.Message, validation.RuneLength(0, config.MaxCommentLength)); err != nil {
		verr.Add("message", err.Error())
	}

	return s.write(ctx, actor, id, writeOp{
		name:    "update",
		event:   "document updated",
		docType: req.Type,
		message: req.Message,
		verr:    verr,
		build: func(context.Context, *docsys.Document) (*docsys.Document, error) {
			return incoming, nil
		},
	})
}

// Redirect turns a document into a tombstone pointing at another document
// of the same type. It is a regular figures change, archived as such.
func (s *documentService) Redirect(ctx context.Context, actor *models.Actor, id int64, req *docsysSvc.RedirectRequest) (*docsysSvc.WriteResult, error) {
	if err := s.authorizer.CanModerate(actor); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.TargetID, validation.Required, validation.NotIn(id).Error("cannot redirect a document to itself")),
		validation.Field(&req.Version, validation.Required),
		validation.Field(&req.Message, validation.RuneLength(0, config.MaxCommentLength)),
	); err != nil {
		verr := &domain.ValidationError{}
		if err := collect(verr, "", err); err != nil {
			return nil, err
		}
		return nil, verr
	}

	return s.write(ctx, actor, id, writeOp{
		name:     "redirect",
		event:    "document redirected",
		message:  req.Message,
		redirect: true,
		build: func(txCtx context.Context, persisted *docsys.Document) (*docsys.Document, error) {
			target, err := s.docRepo.GetByID(txCtx, req.TargetID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, domain.NewValidationError("target_document_id", fmt.Sprintf("document %q does not exist", fmt.Sprint(req.TargetID)))
				}
				return nil, fmt.Errorf("get redirect target: %w", err)
			}
			if target.Type != persisted.Type {
				return nil, domain.NewValidationError("target_document_id", fmt.Sprintf("document %q is not of type %q", fmt.Sprint(req.TargetID), persisted.Type))
			}
			if target.IsRedirected() {
				return nil, domain.NewValidationError("target_document_id", "target document is itself redirected")
			}

			incoming := &docsys.Document{
				ID:          persisted.ID,
				Type:        persisted.Type,
				Version:     req.Version,
				Quality:     persisted.Quality,
				Figures:     persisted.Figures.Clone(),
				RedirectsTo: &target.ID,
			}
			return incoming, nil
		},
	})
}

// writeOp parameterizes the shared update path.
type writeOp struct {
	name     string
	event    string
	docType  docsys.DocumentType // empty accepts any type
	message  string
	redirect bool
	verr     *domain.ValidationError // problems found before the transaction

	// build returns the submission to merge, given the persisted document.
	build func(ctx context.Context, persisted *docsys.Document) (*docsys.Document, error)
}

// write runs the update algorithm in one transaction: load, authorize,
// snapshot, merge (version checks), validate links, derive geometry,
// classify, persist and archive, reconcile associations.
func (s *documentService) write(ctx context.Context, actor *models.Actor, id int64, op writeOp) (result *docsysSvc.WriteResult, err error) {
	ctx, span := tracer.Start(ctx, "document."+op.name, trace.WithAttributes(
		attribute.Int64("document.id", id),
	))
	start := time.Now()
	var docType docsys.DocumentType = op.docType
	defer func() {
		s.metrics.RecordWrite(string(docType), op.name, outcome(err), time.Since(start))
		endSpan(span, err)
	}()

	if actor == nil {
		return nil, &domain.UnauthorizedError{Message: "authentication required"}
	}
	verr := op.verr
	if verr == nil {
		verr = &domain.ValidationError{}
	}

	now := s.now().UTC()
	var (
		merged     *docsys.Document
		summary    docsys.ChangeSummary
		applied    docsys.AppliedAssociations
		touched    []int64
		redirectTo *int64
	)

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		persisted, err := s.docRepo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if op.docType != "" && persisted.Type != op.docType {
			return &domain.NotFoundError{Message: fmt.Sprintf("%s %d not found", op.docType, id)}
		}
		docType = persisted.Type
		cfg, err := s.typeConfig(persisted.Type)
		if err != nil {
			return err
		}
		if err := s.authorizer.CanUpdate(actor, persisted); err != nil {
			return err
		}

		// Snapshots must be read before the merge.
		previous, err := s.archiveRepo.GetLatestSnapshots(txCtx, id)
		if err != nil {
			return fmt.Errorf("get latest versions: %w", err)
		}

		incoming, err := op.build(txCtx, persisted)
		if err != nil {
			return err
		}
		merged, err = mergeDocument(persisted, incoming, mergeOptions{redirect: op.redirect})
		if err != nil {
			return err
		}

		if merged.Associations != nil {
			avErr, err := s.reconciler.Validate(txCtx, cfg, id, merged.Associations)
			if err != nil {
				return err
			}
			verr.Merge(avErr)
		}
		waypoint, mwErr, err := s.loadMainWaypoint(txCtx, merged)
		if err != nil {
			return err
		}
		verr.Merge(mwErr)
		if verr.HasErrors() {
			return verr
		}

		verr.Merge(deriveGeometry(cfg, merged, waypoint))
		verr.Merge(checkGeometryRequired(cfg, merged))
		if verr.HasErrors() {
			return verr
		}

		summary = ClassifyUpdate(previous, merged)
		if !summary.IsEmpty() {
			bumpVersions(merged, persisted, summary)
			if err := s.persist(txCtx, persisted, merged, summary); err != nil {
				return err
			}
			meta := versionMeta{AuthorID: actor.UserID, Comment: op.message, WrittenAt: now}
			if _, err := s.archiver.Archive(txCtx, merged, previous, summary, meta); err != nil {
				return err
			}
		}

		switch merged.Type {
		case docsys.TypeRoute:
			if err := s.refreshTitlePrefixes(txCtx, merged, waypoint); err != nil {
				return err
			}
		case docsys.TypeWaypoint:
			if summary.Has(docsys.ChangeLang) {
				if touched, err = s.refreshDependentRoutes(txCtx, merged); err != nil {
					return err
				}
			}
		}

		if merged.Associations != nil {
			if applied, err = s.reconciler.Apply(txCtx, merged, cfg, merged.Associations, actor.UserID, now); err != nil {
				return err
			}
		}
		redirectTo = merged.RedirectsTo
		return nil
	})
	if err != nil {
		return nil, err
	}

	stale := append([]int64{id}, neighbours(id, applied)...)
	stale = append(stale, touched...)
	if redirectTo != nil {
		stale = append(stale, *redirectTo)
	}
	s.invalidate(ctx, stale...)
	s.recordChanges(merged.Type, summary)

	s.logger.Info(op.event,
		"id", id,
		"type", merged.Type,
		"change_kinds", summary.ChangeKinds,
		"changed_langs", summary.ChangedLangs,
		"associations_added", len(applied.Added),
		"associations_removed", len(applied.Removed),
		"user_id", actor.UserID,
	)

	return &docsysSvc.WriteResult{Document: merged, Changes: summary, Associations: applied}, nil
}

// persist writes the changed live rows with version-conditional updates.
func (s *documentService) persist(ctx context.Context, persisted, merged *docsys.Document, summary docsys.ChangeSummary) error {
	if summary.TouchesDocument() {
		if err := s.docRepo.UpdateFigures(ctx, merged, persisted.Version); err != nil {
			return err
		}
	}

	for _, lang := range summary.ChangedLangs {
		l := merged.Locale(lang)
		if prev := persisted.Locale(lang); prev != nil {
			if err := s.docRepo.UpdateLocale(ctx, merged.ID, l, prev.Version); err != nil {
				return err
			}
		} else if err := s.docRepo.CreateLocale(ctx, merged.ID, l); err != nil {
			return fmt.Errorf("create locale %s: %w", lang, err)
		}
	}

	if summary.Has(docsys.ChangeGeom) {
		if persisted.Geometry != nil {
			return s.docRepo.UpdateGeometry(ctx, merged.ID, merged.Geometry, persisted.Geometry.Version)
		}
		if err := s.docRepo.CreateGeometry(ctx, merged.ID, merged.Geometry); err != nil {
			return fmt.Errorf("create geometry: %w", err)
		}
	}
	return nil
}

// SetProtected locks or unlocks a document. The flag is not versioned.
func (s *documentService) SetProtected(ctx context.Context, actor *models.Actor, id int64, protected bool) error {
	if err := s.authorizer.CanModerate(actor); err != nil {
		return err
	}
	if _, err := s.docRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.docRepo.SetProtected(ctx, id, protected); err != nil {
		return fmt.Errorf("set protected: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("document protection changed", "id", id, "protected", protected, "user_id", actor.UserID)
	return nil
}

// GetDocument returns the live document with its grouped associations and
// the areas and maps it lies in
func (s *documentService) GetDocument(ctx context.Context, req *docsysSvc.GetDocumentRequest) (*docsys.Document, error) {
	if req.Lang != "" && !docsys.IsSupportedLang(req.Lang) {
		return nil, domain.NewValidationError("lang", fmt.Sprintf("invalid lang %q", req.Lang))
	}

	doc, err := s.cache.Get(ctx, req.ID)
	if err != nil {
		s.logger.Warn("document cache read failed", "id", req.ID, "error", err)
	}
	if doc == nil {
		if doc, err = s.hydrate(ctx, req.ID); err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, doc); err != nil {
			s.logger.Warn("document cache write failed", "id", req.ID, "error", err)
		}
	}

	if req.Type != "" && doc.Type != req.Type {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("%s %d not found", req.Type, req.ID)}
	}
	if req.Lang != "" {
		doc = filterLang(doc, req.Lang)
	}
	return doc, nil
}

func (s *documentService) hydrate(ctx context.Context, id int64) (*docsys.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.AvailableLangs = doc.Langs()

	edges, err := s.assocRepo.GetForDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get associations: %w", err)
	}
	doc.Associations = docsys.Associations{}
	for _, e := range edges {
		key, ok := s.registry.KeyFor(doc.Type, e.OtherType, e.OtherIsParent)
		if !ok {
			continue
		}
		doc.Associations[key] = append(doc.Associations[key], docsys.AssociationRef{DocumentID: e.OtherID, Type: e.OtherType})
	}
	for _, refs := range doc.Associations {
		slices.SortFunc(refs, func(a, b docsys.AssociationRef) int { return cmp.Compare(a.DocumentID, b.DocumentID) })
	}

	if doc.Geometry != nil {
		linked, err := s.docRepo.FindIntersecting(ctx, id, []docsys.DocumentType{docsys.TypeArea, docsys.TypeMap})
		if err != nil {
			return nil, fmt.Errorf("find intersecting documents: %w", err)
		}
		for _, l := range linked {
			if l.Type == docsys.TypeArea {
				doc.Areas = append(doc.Areas, l)
			} else {
				doc.Maps = append(doc.Maps, l)
			}
		}
	}
	return doc, nil
}

// ListDocuments returns a page of non-redirected documents
func (s *documentService) ListDocuments(ctx context.Context, opts *docsys.ListOptions) (*docsys.ListResult, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	docs, total, err := s.docRepo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for i, doc := range docs {
		doc.AvailableLangs = doc.Langs()
		if opts.Lang != "" {
			docs[i] = filterLang(doc, opts.Lang)
		}
	}

	return &docsys.ListResult{
		Documents: docs,
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}, nil
}

// GetHistory lists the versions of one language of a document
func (s *documentService) GetHistory(ctx context.Context, id int64, lang string) (*docsys.History, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	locale := doc.Locale(lang)
	if locale == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("document %d has no %q locale", id, lang)}
	}

	versions, err := s.archiveRepo.GetHistory(ctx, id, lang)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &docsys.History{DocumentID: id, Lang: lang, Title: locale.Title, Versions: versions}, nil
}

// GetVersion returns the archived state of one version
func (s *documentService) GetVersion(ctx context.Context, id int64, lang string, versionID int64) (*docsys.VersionSnapshot, error) {
	return s.archiveRepo.GetSnapshot(ctx, id, lang, versionID)
}

func (s *documentService) typeConfig(t docsys.DocumentType) (*doctype.TypeConfig, error) {
	cfg, err := s.registry.Get(t)
	if err != nil {
		return nil, domain.NewValidationError("type", err.Error())
	}
	return cfg, nil
}

// invalidate drops documents from the read cache. Failures only mean stale
// reads until the TTL expires.
func (s *documentService) invalidate(ctx context.Context, ids ...int64) {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("document cache invalidation failed", "ids", ids, "error", err)
	}
}

func (s *documentService) recordChanges(t docsys.DocumentType, summary docsys.ChangeSummary) {
	for _, kind := range summary.ChangeKinds {
		s.metrics.RecordChangeKind(string(t), string(kind))
	}
}

// filterLang keeps only the best locale for lang.
func filterLang(doc *docsys.Document, lang string) *docsys.Document {
	out := doc.Clone()
	out.Locales = nil
	if best := docsys.BestLocale(doc.Locales, lang); best != nil {
		out.Locales = []docsys.Locale{best.Clone()}
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		return "denied"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// noopCache is used when no document cache is configured.
type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*docsys.Document, error) { return nil, nil }
func (noopCache) Set(context.Context, *docsys.Document) error          { return nil }
func (noopCache) Invalidate(context.Context, ...int64) error           { return nil }
