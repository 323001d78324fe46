package httputil

import (
	"context"
	"net/http"

	"github.com/arnaud-morvan/v6-api/internal/domain/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "requestID"
)

// WithActor adds the authenticated actor to the request context
func WithActor(r *http.Request, actor *models.Actor) *http.Request {
	ctx := context.WithValue(r.Context(), actorKey, actor)
	return r.WithContext(ctx)
}

// GetActor retrieves the actor from context, returns nil for anonymous requests
func GetActor(r *http.Request) *models.Actor {
	actor, _ := r.Context().Value(actorKey).(*models.Actor)
	return actor
}

// WithRequestID adds the request id to the request context
func WithRequestID(r *http.Request, id string) *http.Request {
	ctx := context.WithValue(r.Context(), requestIDKey, id)
	return r.WithContext(ctx)
}

// GetRequestID retrieves the request id from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
