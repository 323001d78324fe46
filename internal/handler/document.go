package handler

import (
	"log/slog"
	"net/http"

	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	docsystem "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/httputil"
)

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	docService docsysSvc.DocumentService
	registry   *doctype.Registry
	logger     *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService docsysSvc.DocumentService, registry *doctype.Registry, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		registry:   registry,
		logger:     logger,
	}
}

// target resolves the collection and the {id} path value
func (h *DocumentHandler) target(r *http.Request) (*doctype.TypeConfig, int64, error) {
	cfg, err := resolveCollection(h.registry, r)
	if err != nil {
		return nil, 0, err
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		return nil, 0, domain.NewValidationError("id", err.Error())
	}
	return cfg, id, nil
}

// CreateDocument creates a new document
// POST /api/{collection}
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	cfg, err := resolveCollection(h.registry, r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	var req docsysSvc.CreateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Type = cfg.Type

	result, err := h.docService.CreateDocument(r.Context(), httputil.GetActor(r), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// ListDocuments returns a page of documents
// GET /api/{collection}?limit=&offset=&lang=
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	cfg, err := resolveCollection(h.registry, r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	limit, err := httputil.QueryInt(r, "limit", docsystem.DefaultListLimit)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := httputil.QueryInt(r, "offset", docsystem.DefaultListOffset)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.docService.ListDocuments(r.Context(), &docsystem.ListOptions{
		Type:   cfg.Type,
		Limit:  limit,
		Offset: offset,
		Lang:   r.URL.Query().Get("lang"),
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// GetDocument retrieves a document by ID
// GET /api/{collection}/{id}?lang=
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	cfg, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	doc, err := h.docService.GetDocument(r.Context(), &docsysSvc.GetDocumentRequest{
		ID:   id,
		Type: cfg.Type,
		Lang: r.URL.Query().Get("lang"),
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// UpdateDocument merges a submission into a document
// PUT /api/{collection}/{id}
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	cfg, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	var req docsysSvc.UpdateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Type = cfg.Type

	result, err := h.docService.UpdateDocument(r.Context(), httputil.GetActor(r), id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// GetHistory lists the versions of one language
// GET /api/{collection}/{id}/history/{lang}
func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	_, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	history, err := h.docService.GetHistory(r.Context(), id, r.PathValue("lang"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, history)
}

// GetVersion returns one archived version
// GET /api/{collection}/{id}/{lang}/{version_id}
func (h *DocumentHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	_, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	versionID, err := httputil.PathInt64(r, "version_id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.docService.GetVersion(r.Context(), id, r.PathValue("lang"), versionID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, snapshot)
}

// Protect locks a document for non-moderators
// POST /api/{collection}/{id}/protect
func (h *DocumentHandler) Protect(w http.ResponseWriter, r *http.Request) {
	h.setProtected(w, r, true)
}

// Unprotect unlocks a document
// POST /api/{collection}/{id}/unprotect
func (h *DocumentHandler) Unprotect(w http.ResponseWriter, r *http.Request) {
	h.setProtected(w, r, false)
}

func (h *DocumentHandler) setProtected(w http.ResponseWriter, r *http.Request, protected bool) {
	cfg, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	// the document must belong to the collection of the URL
	if _, err := h.docService.GetDocument(r.Context(), &docsysSvc.GetDocumentRequest{ID: id, Type: cfg.Type}); err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.docService.SetProtected(r.Context(), httputil.GetActor(r), id, protected); err != nil {
		handleError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Redirect merges a document into another one of the same type
// POST /api/{collection}/{id}/redirect
func (h *DocumentHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	_, id, err := h.target(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	var req docsysSvc.RedirectRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.docService.Redirect(r.Context(), httputil.GetActor(r), id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}
