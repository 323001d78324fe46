package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	docsystem "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/httputil"
)

// SyncHandler serves the search index synchronizer
type SyncHandler struct {
	syncService docsysSvc.SyncService
	registry    *doctype.Registry
	logger      *slog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService docsysSvc.SyncService, registry *doctype.Registry, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		registry:    registry,
		logger:      logger,
	}
}

// ChangesResponse is the body of GET /api/sync/changes
type ChangesResponse struct {
	Since     time.Time                   `json:"since"`
	Documents []docsystem.ChangedDocument `json:"documents"`
}

// Changes lists documents written since a timestamp
// GET /api/sync/changes?since=RFC3339
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("since")
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %q", raw))
		return
	}

	changed, err := h.syncService.ChangedSince(r.Context(), since)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if changed == nil {
		changed = []docsystem.ChangedDocument{}
	}

	httputil.RespondJSON(w, http.StatusOK, ChangesResponse{Since: since, Documents: changed})
}

// LoadBatch returns hydrated documents of one collection
// GET /api/sync/{collection}?ids=1,2,3
func (h *SyncHandler) LoadBatch(w http.ResponseWriter, r *http.Request) {
	cfg, err := resolveCollection(h.registry, r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	ids, err := httputil.QueryInt64List(r, "ids")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(ids) > config.MaxSyncIDs {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d ids per request", config.MaxSyncIDs))
		return
	}

	docs, err := h.syncService.LoadBatch(r.Context(), cfg.Type, ids)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if docs == nil {
		docs = []*docsystem.Document{}
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
