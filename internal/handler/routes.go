package handler

import "net/http"

// RegisterRoutes mounts the REST surface on mux. Literal segments win over
// wildcards, so /api/sync/... never reaches the document routes.
func RegisterRoutes(mux *http.ServeMux, docs *DocumentHandler, sync *SyncHandler, health *HealthHandler) {
	mux.HandleFunc("GET /health", health.HealthCheck)

	// Search sync
	mux.HandleFunc("GET /api/sync/changes", sync.Changes)
	mux.HandleFunc("GET /api/sync/{collection}", sync.LoadBatch)

	// Documents
	mux.HandleFunc("POST /api/{collection}", docs.CreateDocument)
	mux.HandleFunc("GET /api/{collection}", docs.ListDocuments)
	mux.HandleFunc("GET /api/{collection}/{id}", docs.GetDocument)
	mux.HandleFunc("PUT /api/{collection}/{id}", docs.UpdateDocument)
	mux.HandleFunc("GET /api/{collection}/{id}/history/{lang}", docs.GetHistory)
	mux.HandleFunc("GET /api/{collection}/{id}/{lang}/{version_id}", docs.GetVersion)

	// Moderation
	mux.HandleFunc("POST /api/{collection}/{id}/protect", docs.Protect)
	mux.HandleFunc("POST /api/{collection}/{id}/unprotect", docs.Unprotect)
	mux.HandleFunc("POST /api/{collection}/{id}/redirect", docs.Redirect)
}
