package docsystem

import (
	"context"

	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// DocumentService handles versioned document writes and reads
type DocumentService interface {
	// CreateDocument validates and stores a new document, archiving version 1
	// of every submitted language and creating the submitted associations
	CreateDocument(ctx context.Context, actor *models.Actor, req *CreateDocumentRequest) (*WriteResult, error)

	// GetDocument returns the live document with its associations and spatial links
	GetDocument(ctx context.Context, req *GetDocumentRequest) (*docsystem.Document, error)

	// ListDocuments returns a page of non-redirected documents
	ListDocuments(ctx context.Context, opts *docsystem.ListOptions) (*docsystem.ListResult, error)

	// UpdateDocument merges a submission into the persisted document under
	// optimistic concurrency. Stale versions fail with *domain.ConflictError.
	UpdateDocument(ctx context.Context, actor *models.Actor, id int64, req *UpdateDocumentRequest) (*WriteResult, error)

	// GetHistory lists the versions of one language of a document
	GetHistory(ctx context.Context, id int64, lang string) (*docsystem.History, error)

	// GetVersion returns the archived state of one version
	GetVersion(ctx context.Context, id int64, lang string, versionID int64) (*docsystem.VersionSnapshot, error)

	// SetProtected locks or unlocks a document for non-moderators
	SetProtected(ctx context.Context, actor *models.Actor, id int64, protected bool) error

	// Redirect turns a document into a tombstone pointing at another one of the same type
	Redirect(ctx context.Context, actor *models.Actor, id int64, req *RedirectRequest) (*WriteResult, error)
}

// CreateDocumentRequest represents a document creation request
type CreateDocumentRequest struct {
	Type     docsystem.DocumentType `json:"-"` // Set by handler from the URL collection
	Document docsystem.Document     `json:"document"`
	Message  string                 `json:"message,omitempty"`
}

// UpdateDocumentRequest is the body of PUT /api/{collection}/{id}
type UpdateDocumentRequest struct {
	Type     docsystem.DocumentType `json:"-"`        // Set by handler from the URL collection
	Message  string                 `json:"message"`  // Stored as the comment of the new versions
	Document docsystem.Document     `json:"document"` // Must carry the version it was read at
}

// GetDocumentRequest represents a document read
type GetDocumentRequest struct {
	ID   int64
	Type docsystem.DocumentType // Optional; when set the document must be of this type
	Lang string                 // Optional; keep only the best locale for this language
}

// RedirectRequest merges a document into another one
type RedirectRequest struct {
	TargetID int64  `json:"target_document_id"`
	Version  int    `json:"version"`
	Message  string `json:"message,omitempty"`
}

// WriteResult is returned by every write
type WriteResult struct {
	Document     *docsystem.Document           `json:"document"`
	Changes      docsystem.ChangeSummary       `json:"changes"`
	Associations docsystem.AppliedAssociations `json:"associations"`
}
