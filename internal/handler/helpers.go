package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/httputil"
)

// fieldProblem is one entry of the "errors" extension of a 400 response.
type fieldProblem struct {
	Location    string `json:"location"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validationErr *domain.ValidationError
	var conflictErr *domain.ConflictError
	var httpErr domain.HTTPError

	switch {
	case errors.As(err, &validationErr):
		problems := make([]fieldProblem, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			problems = append(problems, fieldProblem{Location: "body", Name: f.Name, Description: f.Description})
		}
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, validationErr.Error(), map[string]any{
			"errors": problems,
		})
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]any{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// resolveCollection maps the {collection} path value to a document type
func resolveCollection(registry *doctype.Registry, r *http.Request) (*doctype.TypeConfig, error) {
	collection := r.PathValue("collection")
	cfg, ok := registry.ByCollection(collection)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("unknown collection %q", collection)}
	}
	return cfg, nil
}
