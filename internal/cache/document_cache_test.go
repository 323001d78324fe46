package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*DocumentCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDocumentCache(client, time.Minute, nil, logger), mr
}

func TestDocumentCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:      42,
		Type:    models.TypeWaypoint,
		Version: 3,
		Figures: models.Figures{"elevation": 4810.0},
		Locales: []models.Locale{{Lang: "fr", Version: 1, Title: "Mont Blanc"}},
	}
	require.NoError(t, c.Set(ctx, doc))
	assert.True(t, mr.Exists("document:42"))
	assert.Equal(t, time.Minute, mr.TTL("document:42"))

	got, err := c.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "Mont Blanc", got.Locales[0].Title)
	assert.Equal(t, 4810.0, got.Figures["elevation"])
}

func TestDocumentCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &models.Document{ID: 1, Type: models.TypeRoute}))
	require.NoError(t, c.Set(ctx, &models.Document{ID: 2, Type: models.TypeWaypoint}))

	require.NoError(t, c.Invalidate(ctx, 1, 2, 3))
	assert.False(t, mr.Exists("document:1"))
	assert.False(t, mr.Exists("document:2"))

	require.NoError(t, c.Invalidate(ctx))
}

func TestDocumentCache_CorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("document:9", "{not json"))

	_, err := c.Get(context.Background(), 9)
	assert.Error(t, err)
	assert.False(t, mr.Exists("document:9"))
}

func TestTypeCache(t *testing.T) {
	c, err := NewTypeCache(2)
	require.NoError(t, err)

	c.Add(map[int64]models.DocumentType{1: models.TypeRoute, 2: models.TypeWaypoint})
	found, misses := c.Lookup([]int64{1, 2, 3})
	assert.Equal(t, models.TypeRoute, found[1])
	assert.Equal(t, models.TypeWaypoint, found[2])
	assert.Equal(t, []int64{3}, misses)

	c.Add(map[int64]models.DocumentType{3: models.TypeOuting})
	assert.Equal(t, 2, c.Len())

	_, err = NewTypeCache(0)
	assert.Error(t, err)
}
