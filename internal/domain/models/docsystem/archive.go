package docsystem

import (
	"maps"
	"time"
)

// ArchiveDocument is an immutable snapshot of a document's figures.
type ArchiveDocument struct {
	ID          int64        `json:"id" db:"id"`
	DocumentID  int64        `json:"document_id" db:"document_id"`
	Type        DocumentType `json:"type" db:"type"`
	Version     int          `json:"version" db:"version"`
	Quality     string       `json:"quality,omitempty" db:"quality"`
	RedirectsTo *int64       `json:"redirects_to,omitempty" db:"redirects_to"`
	Figures     Figures      `json:"figures" db:"figures"`
}

// NewArchiveDocument snapshots the figures of doc.
func NewArchiveDocument(doc *Document) *ArchiveDocument {
	a := &ArchiveDocument{
		DocumentID: doc.ID,
		Type:       doc.Type,
		Version:    doc.Version,
		Quality:    doc.Quality,
		Figures:    doc.Figures.Clone(),
	}
	if doc.RedirectsTo != nil {
		r := *doc.RedirectsTo
		a.RedirectsTo = &r
	}
	return a
}

// SameFigures compares the business fields of a snapshot with a live document.
func (a *ArchiveDocument) SameFigures(doc *Document) bool {
	return a.Quality == doc.Quality &&
		sameRedirect(a.RedirectsTo, doc.RedirectsTo) &&
		a.Figures.Equal(doc.Figures)
}

func sameRedirect(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ArchiveLocale is an immutable snapshot of one locale.
type ArchiveLocale struct {
	ID          int64             `json:"id" db:"id"`
	DocumentID  int64             `json:"document_id" db:"document_id"`
	Lang        string            `json:"lang" db:"lang"`
	Version     int               `json:"version" db:"version"`
	Title       string            `json:"title" db:"title"`
	Summary     string            `json:"summary,omitempty" db:"summary"`
	Description string            `json:"description,omitempty" db:"description"`
	Fields      map[string]string `json:"fields,omitempty" db:"fields"`
}

// NewArchiveLocale snapshots a live locale.
func NewArchiveLocale(documentID int64, l Locale) *ArchiveLocale {
	return &ArchiveLocale{
		DocumentID:  documentID,
		Lang:        l.Lang,
		Version:     l.Version,
		Title:       l.Title,
		Summary:     l.Summary,
		Description: l.Description,
		Fields:      maps.Clone(l.Fields),
	}
}

// AsLocale returns the snapshot as a locale value.
func (a *ArchiveLocale) AsLocale() Locale {
	return Locale{
		Lang:        a.Lang,
		Version:     a.Version,
		Title:       a.Title,
		Summary:     a.Summary,
		Description: a.Description,
		Fields:      maps.Clone(a.Fields),
	}
}

// ArchiveGeometry is an immutable snapshot of a geometry.
type ArchiveGeometry struct {
	ID         int64  `json:"id" db:"id"`
	DocumentID int64  `json:"document_id" db:"document_id"`
	Version    int    `json:"version" db:"version"`
	Geom       string `json:"geom,omitempty" db:"geom"`
	GeomDetail string `json:"geom_detail,omitempty" db:"geom_detail"`
}

// NewArchiveGeometry snapshots a live geometry.
func NewArchiveGeometry(documentID int64, g *Geometry) *ArchiveGeometry {
	return &ArchiveGeometry{
		DocumentID: documentID,
		Version:    g.Version,
		Geom:       g.Geom,
		GeomDetail: g.GeomDetail,
	}
}

// AsGeometry returns the snapshot as a geometry value.
func (a *ArchiveGeometry) AsGeometry() *Geometry {
	if a == nil {
		return nil
	}
	return &Geometry{Version: a.Version, Geom: a.Geom, GeomDetail: a.GeomDetail}
}

// DocumentVersion ties a (document, lang, point in time) to the archive
// rows that were current then.
type DocumentVersion struct {
	ID                int64     `json:"version_id" db:"id"`
	DocumentID        int64     `json:"document_id" db:"document_id"`
	Lang              string    `json:"lang" db:"lang"`
	ArchiveDocumentID int64     `json:"-" db:"archive_document_id"`
	ArchiveLocaleID   int64     `json:"-" db:"archive_locale_id"`
	ArchiveGeometryID *int64    `json:"-" db:"archive_geometry_id"`
	AuthorID          int64     `json:"user_id" db:"author_id"`
	Comment           string    `json:"comment,omitempty" db:"comment"`
	WrittenAt         time.Time `json:"written_at" db:"written_at"`
	IsLatest          bool      `json:"is_latest_version" db:"is_latest_version"`
}

// VersionSnapshot is a document version joined with its archive rows.
type VersionSnapshot struct {
	Version           DocumentVersion  `json:"version"`
	Document          ArchiveDocument  `json:"document"`
	Locale            ArchiveLocale    `json:"locale"`
	Geometry          *ArchiveGeometry `json:"geometry,omitempty"`
	PreviousVersionID *int64           `json:"previous_version_id,omitempty"`
	NextVersionID     *int64           `json:"next_version_id,omitempty"`
}

// History is the edit history of one language of a document.
type History struct {
	DocumentID int64             `json:"document_id"`
	Lang       string            `json:"lang"`
	Title      string            `json:"title"`
	Versions   []DocumentVersion `json:"versions"`
}
