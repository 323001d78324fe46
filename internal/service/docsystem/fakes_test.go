package docsystem

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/cache"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	docsys "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/domain/repositories"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/service/auth"

	"github.com/stretchr/testify/require"
)

// memState is the whole in-memory database. It is copied before every
// transaction and restored when the transaction fails.
type memState struct {
	nextID         int64
	docs           map[int64]*docsys.Document
	archiveDocs    map[int64]docsys.ArchiveDocument
	archiveLocales map[int64]docsys.ArchiveLocale
	archiveGeoms   map[int64]docsys.ArchiveGeometry
	versions       []docsys.DocumentVersion
	assocs         map[docsys.Association]bool
	assocLog       []docsys.AssociationLogEntry
}

func newMemState() *memState {
	return &memState{
		docs:           map[int64]*docsys.Document{},
		archiveDocs:    map[int64]docsys.ArchiveDocument{},
		archiveLocales: map[int64]docsys.ArchiveLocale{},
		archiveGeoms:   map[int64]docsys.ArchiveGeometry{},
		assocs:         map[docsys.Association]bool{},
	}
}

func (st *memState) clone() *memState {
	out := &memState{
		nextID:         st.nextID,
		docs:           make(map[int64]*docsys.Document, len(st.docs)),
		archiveDocs:    maps.Clone(st.archiveDocs),
		archiveLocales: maps.Clone(st.archiveLocales),
		archiveGeoms:   maps.Clone(st.archiveGeoms),
		versions:       slices.Clone(st.versions),
		assocs:         maps.Clone(st.assocs),
		assocLog:       slices.Clone(st.assocLog),
	}
	for id, d := range st.docs {
		out.docs[id] = d.Clone()
	}
	return out
}

func (st *memState) id() int64 {
	st.nextID++
	return st.nextID
}

// memStore implements the document, archive and association repositories
// and the transaction manager on top of memState.
type memStore struct {
	mu           sync.Mutex
	state        *memState
	intersecting map[int64][]docsys.LinkedDocument
	failures     map[string]error
	commits      int
}

func newMemStore() *memStore {
	return &memStore{
		state:        newMemState(),
		intersecting: map[int64][]docsys.LinkedDocument{},
		failures:     map[string]error{},
	}
}

func (s *memStore) fail(op string) error {
	return s.failures[op]
}

// ExecTx implements repositories.TransactionManager
func (s *memStore) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// --- DocumentRepository

func (s *memStore) Create(_ context.Context, doc *docsys.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.state.id()
	stored := doc.Clone()
	stored.Locales, stored.Geometry, stored.Associations = nil, nil, nil
	stored.AvailableLangs, stored.Areas, stored.Maps = nil, nil, nil
	s.state.docs[doc.ID] = stored
	return nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*docsys.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.state.docs[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("document %d not found", id)}
	}
	return doc.Clone(), nil
}

func (s *memStore) GetBatch(_ context.Context, docType docsys.DocumentType, ids []int64) ([]*docsys.Document, error) {
	if err := s.fail("GetBatch"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*docsys.Document
	for _, id := range ids {
		if doc, ok := s.state.docs[id]; ok && doc.Type == docType {
			out = append(out, doc.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *docsys.Document) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *memStore) GetTypes(_ context.Context, ids []int64) (map[int64]docsys.DocumentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]docsys.DocumentType)
	for _, id := range ids {
		if doc, ok := s.state.docs[id]; ok {
			out[id] = doc.Type
		}
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, opts *docsys.ListOptions) ([]*docsys.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*docsys.Document
	for _, doc := range s.state.docs {
		if doc.Type == opts.Type && !doc.IsRedirected() {
			all = append(all, doc.Clone())
		}
	}
	slices.SortFunc(all, func(a, b *docsys.Document) int { return cmp.Compare(a.ID, b.ID) })
	total := len(all)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)
	return all[start:end], total, nil
}

func (s *memStore) UpdateFigures(_ context.Context, doc *docsys.Document, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.state.docs[doc.ID]
	if !ok || stored.Version != expectedVersion {
		return &domain.ConflictError{Message: "document was modified", ResourceType: "document", ResourceID: fmt.Sprint(doc.ID)}
	}
	stored.Version = doc.Version
	stored.Quality = doc.Quality
	stored.RedirectsTo = doc.Clone().RedirectsTo
	stored.Figures = doc.Figures.Clone()
	return nil
}

func (s *memStore) SetProtected(_ context.Context, id int64, protected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.docs[id].Protected = protected
	return nil
}

func (s *memStore) CreateLocale(_ context.Context, documentID int64, locale *docsys.Locale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.state.docs[documentID]
	if doc.Locale(locale.Lang) != nil {
		return fmt.Errorf("duplicate locale %s", locale.Lang)
	}
	locale.ID = s.state.id()
	doc.Locales = append(doc.Locales, locale.Clone())
	return nil
}

func (s *memStore) UpdateLocale(_ context.Context, documentID int64, locale *docsys.Locale, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.state.docs[documentID].Locale(locale.Lang)
	if stored == nil || stored.Version != expectedVersion {
		return &domain.ConflictError{Message: "locale was modified", ResourceType: "locale"}
	}
	prefix := stored.TitlePrefix
	*stored = locale.Clone()
	stored.TitlePrefix = prefix
	return nil
}

func (s *memStore) SetTitlePrefix(_ context.Context, documentID int64, lang, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.state.docs[documentID].Locale(lang); l != nil {
		l.TitlePrefix = prefix
	}
	return nil
}

func (s *memStore) CreateGeometry(_ context.Context, documentID int64, geom *docsys.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.state.docs[documentID]
	if doc.Geometry != nil {
		return fmt.Errorf("geometry of %d already exists", documentID)
	}
	g := *geom
	doc.Geometry = &g
	return nil
}

func (s *memStore) UpdateGeometry(_ context.Context, documentID int64, geom *docsys.Geometry, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.state.docs[documentID]
	if doc.Geometry == nil || doc.Geometry.Version != expectedVersion {
		return &domain.ConflictError{Message: "geometry was modified", ResourceType: "geometry"}
	}
	g := *geom
	doc.Geometry = &g
	return nil
}

func (s *memStore) FindIntersecting(_ context.Context, documentID int64, types []docsys.DocumentType) ([]docsys.LinkedDocument, error) {
	var out []docsys.LinkedDocument
	for _, l := range s.intersecting[documentID] {
		if slices.Contains(types, l.Type) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) FindRoutesByMainWaypoint(_ context.Context, waypointIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for id, doc := range s.state.docs {
		if doc.Type != docsys.TypeRoute {
			continue
		}
		if wp, ok := doc.Figures.Int64(mainWaypointField); ok && slices.Contains(waypointIDs, wp) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

// --- ArchiveRepository

func (s *memStore) CreateDocumentArchive(_ context.Context, archive *docsys.ArchiveDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	archive.ID = s.state.id()
	s.state.archiveDocs[archive.ID] = *archive
	return nil
}

func (s *memStore) CreateLocaleArchive(_ context.Context, archive *docsys.ArchiveLocale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	archive.ID = s.state.id()
	s.state.archiveLocales[archive.ID] = *archive
	return nil
}

func (s *memStore) CreateGeometryArchive(_ context.Context, archive *docsys.ArchiveGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	archive.ID = s.state.id()
	s.state.archiveGeoms[archive.ID] = *archive
	return nil
}

func (s *memStore) CreateVersion(_ context.Context, version *docsys.DocumentVersion) error {
	if err := s.fail("CreateVersion"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.state.versions {
		if v.IsLatest && v.DocumentID == version.DocumentID && v.Lang == version.Lang {
			return fmt.Errorf("duplicate latest version for %d/%s", v.DocumentID, v.Lang)
		}
	}
	version.ID = s.state.id()
	s.state.versions = append(s.state.versions, *version)
	return nil
}

func (s *memStore) MarkSuperseded(_ context.Context, versionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.versions {
		if s.state.versions[i].ID == versionID {
			s.state.versions[i].IsLatest = false
		}
	}
	return nil
}

func (s *memStore) snapshot(v docsys.DocumentVersion) docsys.VersionSnapshot {
	snap := docsys.VersionSnapshot{
		Version:  v,
		Document: s.state.archiveDocs[v.ArchiveDocumentID],
		Locale:   s.state.archiveLocales[v.ArchiveLocaleID],
	}
	if v.ArchiveGeometryID != nil {
		g := s.state.archiveGeoms[*v.ArchiveGeometryID]
		snap.Geometry = &g
	}
	return snap
}

func (s *memStore) GetLatestSnapshots(_ context.Context, documentID int64) ([]docsys.VersionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docsys.VersionSnapshot
	for _, v := range s.state.versions {
		if v.DocumentID == documentID && v.IsLatest {
			out = append(out, s.snapshot(v))
		}
	}
	return out, nil
}

func (s *memStore) history(documentID int64, lang string) []docsys.DocumentVersion {
	var out []docsys.DocumentVersion
	for _, v := range s.state.versions {
		if v.DocumentID == documentID && v.Lang == lang {
			out = append(out, v)
		}
	}
	return out
}

func (s *memStore) GetHistory(_ context.Context, documentID int64, lang string) ([]docsys.DocumentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(documentID, lang), nil
}

func (s *memStore) GetSnapshot(_ context.Context, documentID int64, lang string, versionID int64) (*docsys.VersionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.history(documentID, lang)
	for i, v := range versions {
		if v.ID != versionID {
			continue
		}
		snap := s.snapshot(v)
		if i > 0 {
			snap.PreviousVersionID = &versions[i-1].ID
		}
		if i < len(versions)-1 {
			snap.NextVersionID = &versions[i+1].ID
		}
		return &snap, nil
	}
	return nil, &domain.NotFoundError{Message: fmt.Sprintf("version %d not found", versionID)}
}

func (s *memStore) ChangedSince(_ context.Context, since time.Time) ([]docsys.ChangedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := map[int64]time.Time{}
	for _, v := range s.state.versions {
		if !v.WrittenAt.Before(since) && v.WrittenAt.After(latest[v.DocumentID]) {
			latest[v.DocumentID] = v.WrittenAt
		}
	}
	var out []docsys.ChangedDocument
	for id, at := range latest {
		out = append(out, docsys.ChangedDocument{DocumentID: id, Type: s.state.docs[id].Type, WrittenAt: at})
	}
	return out, nil
}

// memAssocRepo is the association side of memStore.
type memAssocRepo struct {
	*memStore
}

// --- AssociationRepository

func (s memAssocRepo) GetForDocument(_ context.Context, documentID int64) ([]docsys.LinkedAssociation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []docsys.LinkedAssociation
	for a := range s.state.assocs {
		var other int64
		switch documentID {
		case a.ParentID:
			other = a.ChildID
		case a.ChildID:
			other = a.ParentID
		default:
			continue
		}
		out = append(out, docsys.LinkedAssociation{
			Association:   a,
			OtherID:       other,
			OtherType:     s.state.docs[other].Type,
			OtherIsParent: a.ChildID == documentID,
		})
	}
	slices.SortFunc(out, func(a, b docsys.LinkedAssociation) int { return cmp.Compare(a.OtherID, b.OtherID) })
	return out, nil
}

func (s memAssocRepo) Create(_ context.Context, association docsys.Association) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.assocs[association] {
		return false, nil
	}
	s.state.assocs[association] = true
	return true, nil
}

func (s memAssocRepo) Delete(_ context.Context, association docsys.Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.assocs, association)
	return nil
}

func (s memAssocRepo) CreateLogEntry(_ context.Context, entry *docsys.AssociationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.state.id()
	s.state.assocLog = append(s.state.assocLog, *entry)
	return nil
}

// counts summarizes the size of every table.
type counts struct {
	docs, archiveDocs, archiveLocales, archiveGeoms, versions, assocs, assocLog int
}

func (s *memStore) counts() counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return counts{
		docs:           len(s.state.docs),
		archiveDocs:    len(s.state.archiveDocs),
		archiveLocales: len(s.state.archiveLocales),
		archiveGeoms:   len(s.state.archiveGeoms),
		versions:       len(s.state.versions),
		assocs:         len(s.state.assocs),
		assocLog:       len(s.state.assocLog),
	}
}

func (s *memStore) versionsOf(documentID int64, lang string) []docsys.DocumentVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(documentID, lang)
}

// memCache is an in-memory DocumentCache.
type memCache struct {
	mu          sync.Mutex
	docs        map[int64]*docsys.Document
	invalidated []int64
}

func newMemCache() *memCache {
	return &memCache{docs: map[int64]*docsys.Document{}}
}

func (c *memCache) Get(_ context.Context, id int64) (*docsys.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := c.docs[id]; ok {
		return doc.Clone(), nil
	}
	return nil, nil
}

func (c *memCache) Set(_ context.Context, doc *docsys.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.ID] = doc.Clone()
	return nil
}

func (c *memCache) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.docs, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

// --- fixtures

var (
	testTime    = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	contributor = &models.Actor{UserID: 7, Username: "contributor"}
	moderator   = &models.Actor{UserID: 1, Username: "moderator", Moderator: true}
)

const (
	pointMontBlanc = `{"type":"Point","coordinates":[635956,5723604]}`
	pointAiguille  = `{"type":"Point","coordinates":[640000,5730000]}`
	trackMontBlanc = `{"type":"LineString","coordinates":[[635956,5723604],[635966,5723644]]}`
	pointTrackHalf = `{"type":"Point","coordinates":[635961,5723624]}`
)

type testEnv struct {
	svc      *documentService
	store    *memStore
	cache    *memCache
	registry *doctype.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry, err := doctype.NewRegistry()
	require.NoError(t, err)
	typeCache, err := cache.NewTypeCache(100)
	require.NoError(t, err)

	store := newMemStore()
	docCache := newMemCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assocs := memAssocRepo{store}
	reconciler := NewAssociationReconciler(registry, assocs, store, typeCache, nil, logger)
	svc := NewDocumentService(
		registry, store, store, assocs, store,
		auth.NewRoleBasedAuthorizer(registry),
		reconciler, docCache, nil, logger,
	).(*documentService)
	svc.now = func() time.Time { return testTime }

	return &testEnv{svc: svc, store: store, cache: docCache, registry: registry}
}

func waypointDoc(titles map[string]string) docsys.Document {
	doc := docsys.Document{
		Figures: docsys.Figures{
			"waypoint_type": "summit",
			"elevation":     4810.0,
		},
		Geometry: &docsys.Geometry{Geom: pointMontBlanc},
	}
	for _, lang := range slices.Sorted(maps.Keys(titles)) {
		doc.Locales = append(doc.Locales, docsys.Locale{Lang: lang, Title: titles[lang]})
	}
	return doc
}

func (e *testEnv) createWaypoint(t *testing.T, titles map[string]string) *docsys.Document {
	t.Helper()
	res, err := e.svc.CreateDocument(context.Background(), contributor, &docsysSvc.CreateDocumentRequest{
		Type:     docsys.TypeWaypoint,
		Document: waypointDoc(titles),
	})
	require.NoError(t, err)
	return res.Document
}

func (e *testEnv) createRoute(t *testing.T, waypointID int64, titles map[string]string) *docsys.Document {
	t.Helper()
	doc := docsys.Document{
		Figures: docsys.Figures{
			"activities":       []any{"skitouring"},
			"main_waypoint_id": float64(waypointID),
		},
		Geometry:     &docsys.Geometry{GeomDetail: trackMontBlanc},
		Associations: docsys.Associations{docsys.KeyWaypoints: {{DocumentID: waypointID}}},
	}
	for _, lang := range slices.Sorted(maps.Keys(titles)) {
		doc.Locales = append(doc.Locales, docsys.Locale{Lang: lang, Title: titles[lang]})
	}
	res, err := e.svc.CreateDocument(context.Background(), contributor, &docsysSvc.CreateDocumentRequest{
		Type:     docsys.TypeRoute,
		Document: doc,
	})
	require.NoError(t, err)
	return res.Document
}

// resubmit turns a read document into an update request body.
func resubmit(doc *docsys.Document) docsys.Document {
	in := *doc.Clone()
	in.Associations = nil
	return in
}
