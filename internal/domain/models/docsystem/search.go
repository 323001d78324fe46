package docsystem

import (
	"fmt"
	"time"
)

// Default list configuration values
const (
	DefaultListLimit  = 30
	DefaultListOffset = 0
	MaxListLimit      = 100
)

// ListOptions configures a listing of live documents of one type.
// Redirected documents are never listed.
type ListOptions struct {
	Type   DocumentType
	Limit  int
	Offset int

	// Lang, when set, keeps only the best locale of each document.
	Lang string
}

// ApplyDefaults fills in default values for unset fields
func (opts *ListOptions) ApplyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = DefaultListOffset
	}
}

// Validate checks that values are reasonable
func (opts *ListOptions) Validate() error {
	if !opts.Type.Valid() {
		return fmt.Errorf("unknown document type: %q", opts.Type)
	}
	if opts.Limit > MaxListLimit {
		return fmt.Errorf("limit cannot exceed %d (requested: %d)", MaxListLimit, opts.Limit)
	}
	if opts.Lang != "" && !IsSupportedLang(opts.Lang) {
		return fmt.Errorf("unsupported lang: %q", opts.Lang)
	}
	return nil
}

// ListResult is one page of documents.
type ListResult struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
}

// ChangedDocument is an entry of the "changed since" feed consumed by the
// search index synchronizer.
type ChangedDocument struct {
	DocumentID int64        `json:"document_id" db:"document_id"`
	Type       DocumentType `json:"type" db:"type"`
	WrittenAt  time.Time    `json:"written_at" db:"written_at"`
}
