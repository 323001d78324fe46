package docsystem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/arnaud-morvan/v6-api/internal/cache"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	docsys "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerEnv struct {
	reconciler *AssociationReconciler
	registry   *doctype.Registry
	store      *memStore
	typeCache  *cache.TypeCache
}

func newReconcilerEnv(t *testing.T) *reconcilerEnv {
	t.Helper()
	registry, err := doctype.NewRegistry()
	require.NoError(t, err)
	typeCache, err := cache.NewTypeCache(100)
	require.NoError(t, err)
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &reconcilerEnv{
		reconciler: NewAssociationReconciler(registry, memAssocRepo{store}, store, typeCache, nil, logger),
		registry:   registry,
		store:      store,
		typeCache:  typeCache,
	}
}

func (e *reconcilerEnv) doc(t *testing.T, docType docsys.DocumentType) *docsys.Document {
	t.Helper()
	doc := &docsys.Document{Type: docType, Version: 1}
	require.NoError(t, e.store.Create(context.Background(), doc))
	return doc
}

func (e *reconcilerEnv) cfg(t *testing.T, docType docsys.DocumentType) *doctype.TypeConfig {
	t.Helper()
	cfg, err := e.registry.Get(docType)
	require.NoError(t, err)
	return cfg
}

func refs(ids ...int64) []docsys.AssociationRef {
	out := make([]docsys.AssociationRef, len(ids))
	for i, id := range ids {
		out[i] = docsys.AssociationRef{DocumentID: id}
	}
	return out
}

func TestAssociationReconciler_Validate(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	route := env.doc(t, docsys.TypeRoute)
	wp := env.doc(t, docsys.TypeWaypoint)
	other := env.doc(t, docsys.TypeRoute)

	t.Run("valid", func(t *testing.T) {
		verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeRoute), route.ID, docsys.Associations{
			docsys.KeyWaypoints: refs(wp.ID),
			docsys.KeyRoutes:    refs(other.ID),
		})
		require.NoError(t, err)
		assert.False(t, verr.HasErrors(), verr.Fields)
	})

	t.Run("keys the type cannot update are ignored", func(t *testing.T) {
		verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeRoute), route.ID, docsys.Associations{
			docsys.KeyUsers: refs(4242),
		})
		require.NoError(t, err)
		assert.False(t, verr.HasErrors(), verr.Fields)
	})

	t.Run("every bad id is reported", func(t *testing.T) {
		verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeRoute), route.ID, docsys.Associations{
			docsys.KeyWaypoints: refs(wp.ID, 4242, other.ID),
			docsys.KeyRoutes:    refs(route.ID),
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.FieldError{
			{Name: "associations.routes", Description: fmt.Sprintf(`document "%d" cannot be associated with itself`, route.ID)},
			{Name: "associations.waypoints", Description: `document "4242" does not exist`},
			{Name: "associations.waypoints", Description: fmt.Sprintf(`document "%d" is not of type "waypoint"`, other.ID)},
		}, verr.Fields)
	})

	t.Run("a document under two keys", func(t *testing.T) {
		main := env.doc(t, docsys.TypeWaypoint)
		verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeWaypoint), main.ID, docsys.Associations{
			docsys.KeyWaypoints:        refs(wp.ID),
			docsys.KeyWaypointChildren: refs(wp.ID),
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.FieldError{
			{Name: "associations.waypoint_children", Description: fmt.Sprintf(`document "%d" is already listed in "waypoints"`, wp.ID)},
		}, verr.Fields)
	})

	t.Run("required keys", func(t *testing.T) {
		verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeOuting), 0, docsys.Associations{
			docsys.KeyRoutes: refs(route.ID),
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.FieldError{
			{Name: "associations.users", Description: "at least one user_profile is required"},
		}, verr.Fields)
	})
}

func TestAssociationReconciler_TypesAreCached(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	route := env.doc(t, docsys.TypeRoute)
	wp := env.doc(t, docsys.TypeWaypoint)
	submitted := docsys.Associations{docsys.KeyWaypoints: refs(wp.ID)}

	verr, err := env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeRoute), route.ID, submitted)
	require.NoError(t, err)
	require.False(t, verr.HasErrors())
	assert.Equal(t, 1, env.typeCache.Len())

	// types never change, so a cached entry survives the row
	delete(env.store.state.docs, wp.ID)
	verr, err = env.reconciler.Validate(ctx, env.cfg(t, docsys.TypeRoute), route.ID, submitted)
	require.NoError(t, err)
	assert.False(t, verr.HasErrors())
}

func TestAssociationReconciler_Apply(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	cfg := env.cfg(t, docsys.TypeWaypoint)
	main := env.doc(t, docsys.TypeWaypoint)
	parent := env.doc(t, docsys.TypeWaypoint)
	child := env.doc(t, docsys.TypeWaypoint)
	route := env.doc(t, docsys.TypeRoute)

	// a waypoint cannot update its routes, that edge must survive
	created, err := memAssocRepo{env.store}.Create(ctx, docsys.Association{ParentID: main.ID, ChildID: route.ID})
	require.NoError(t, err)
	require.True(t, created)

	applied, err := env.reconciler.Apply(ctx, main, cfg, docsys.Associations{
		docsys.KeyWaypoints:        refs(parent.ID),
		docsys.KeyWaypointChildren: refs(child.ID, child.ID),
	}, contributor.UserID, testTime)
	require.NoError(t, err)
	assert.Equal(t, []docsys.Association{
		{ParentID: parent.ID, ChildID: main.ID},
		{ParentID: main.ID, ChildID: child.ID},
	}, applied.Added)
	assert.Empty(t, applied.Removed)

	c := env.store.counts()
	assert.Equal(t, 3, c.assocs)
	assert.Equal(t, 2, c.assocLog)
	entry := env.store.state.assocLog[0]
	assert.Equal(t, contributor.UserID, entry.UserID)
	assert.Equal(t, testTime, entry.WrittenAt)

	// an absent key means no link of that kind
	applied, err = env.reconciler.Apply(ctx, main, cfg, docsys.Associations{
		docsys.KeyWaypointChildren: refs(child.ID),
	}, contributor.UserID, testTime)
	require.NoError(t, err)
	assert.Empty(t, applied.Added)
	assert.Equal(t, []docsys.Association{{ParentID: parent.ID, ChildID: main.ID}}, applied.Removed)

	c = env.store.counts()
	assert.Equal(t, 2, c.assocs)
	assert.Equal(t, 2, c.assocLog)
	assert.True(t, env.store.state.assocs[docsys.Association{ParentID: main.ID, ChildID: route.ID}])

	assert.ElementsMatch(t, []int64{parent.ID}, neighbours(main.ID, applied))
}

func TestAssociationReconciler_ApplyKeepsOneEdgePerPair(t *testing.T) {
	env := newReconcilerEnv(t)
	ctx := context.Background()
	assocs := memAssocRepo{env.store}

	t.Run("reverse edge is not duplicated", func(t *testing.T) {
		a := env.doc(t, docsys.TypeRoute)
		b := env.doc(t, docsys.TypeRoute)
		cfg := env.cfg(t, docsys.TypeRoute)

		applied, err := env.reconciler.Apply(ctx, a, cfg, docsys.Associations{docsys.KeyRoutes: refs(b.ID)}, contributor.UserID, testTime)
		require.NoError(t, err)
		assert.Equal(t, []docsys.Association{{ParentID: b.ID, ChildID: a.ID}}, applied.Added)
		before := env.store.counts()

		// b reads a back under "routes" and resubmits it
		applied, err = env.reconciler.Apply(ctx, b, cfg, docsys.Associations{docsys.KeyRoutes: refs(a.ID)}, contributor.UserID, testTime)
		require.NoError(t, err)
		assert.True(t, applied.IsEmpty())
		assert.Equal(t, before, env.store.counts())
		assert.False(t, env.store.state.assocs[docsys.Association{ParentID: a.ID, ChildID: b.ID}])
	})

	t.Run("link moves from parents to children", func(t *testing.T) {
		main := env.doc(t, docsys.TypeWaypoint)
		other := env.doc(t, docsys.TypeWaypoint)
		cfg := env.cfg(t, docsys.TypeWaypoint)
		created, err := assocs.Create(ctx, docsys.Association{ParentID: other.ID, ChildID: main.ID})
		require.NoError(t, err)
		require.True(t, created)

		applied, err := env.reconciler.Apply(ctx, main, cfg, docsys.Associations{
			docsys.KeyWaypointChildren: refs(other.ID),
		}, contributor.UserID, testTime)
		require.NoError(t, err)
		assert.Equal(t, []docsys.Association{{ParentID: other.ID, ChildID: main.ID}}, applied.Removed)
		assert.Equal(t, []docsys.Association{{ParentID: main.ID, ChildID: other.ID}}, applied.Added)
		assert.False(t, env.store.state.assocs[docsys.Association{ParentID: other.ID, ChildID: main.ID}])
		assert.True(t, env.store.state.assocs[docsys.Association{ParentID: main.ID, ChildID: other.ID}])
	})
}
