package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorWithExtras(t *testing.T) {
	w := httptest.NewRecorder()
	RespondErrorWithExtras(w, http.StatusBadRequest, "validation failed", map[string]any{
		"errors": []string{"title"},
		"status": 999,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(400), body["status"])
	assert.Equal(t, "Bad Request", body["title"])
	assert.Equal(t, "validation failed", body["detail"])
	assert.Equal(t, []any{"title"}, body["errors"])
}

func TestQueryInt64List(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/sync/routes?ids=3,%201,2", nil)
	ids, err := QueryInt64List(r, "ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	r = httptest.NewRequest(http.MethodGet, "/api/sync/routes?ids=3,x", nil)
	_, err = QueryInt64List(r, "ids")
	assert.Error(t, err)
}

func TestPathInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/routes/12", nil)
	r.SetPathValue("id", "12")
	id, err := PathInt64(r, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	r.SetPathValue("id", "-1")
	_, err = PathInt64(r, "id")
	assert.Error(t, err)
}
