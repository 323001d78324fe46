package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	"github.com/arnaud-morvan/v6-api/internal/httputil"
	"github.com/arnaud-morvan/v6-api/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

// fakeVerifier accepts tokens of the form "user-<subject>".
type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(token string) (*models.Claims, error) {
	switch token {
	case "user-7":
		return &models.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}, Username: "contributor"}, nil
	case "user-bob":
		return &models.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"}}, nil
	}
	return nil, domain.ErrUnauthorized
}

func (fakeVerifier) Close() error { return nil }

func TestAuthMiddleware(t *testing.T) {
	var seen *models.Actor
	called := false
	h := AuthMiddleware(fakeVerifier{}, discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = httputil.GetActor(r)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  *models.Actor
	}{
		{"anonymous", "", http.StatusOK, nil},
		{"valid token", "Bearer user-7", http.StatusOK, &models.Actor{UserID: 7, Username: "contributor"}},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, nil},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, nil},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, nil},
		{"non numeric subject", "Bearer user-bob", http.StatusUnauthorized, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, seen = false, nil
			req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
			assert.Equal(t, tt.wantActor, seen)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	const given = "5f0c3bde-2d55-4a4b-9d1c-8e0b3f6a7c21"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, given)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, given, seen)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/routes/1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Metrics(metrics, discard)(mux)

	for _, path := range []string{"/api/routes/1", "/api/routes/2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	counter, err := metrics.HTTPRequestsTotal.GetMetricWithLabelValues(http.MethodGet, "GET /api/{collection}/{id}", "404")
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(counter))
}
