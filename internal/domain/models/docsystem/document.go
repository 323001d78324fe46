package docsystem

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
)

// DocumentType is the closed set of versioned content kinds.
type DocumentType string

const (
	TypeWaypoint    DocumentType = "waypoint"
	TypeRoute       DocumentType = "route"
	TypeOuting      DocumentType = "outing"
	TypeMap         DocumentType = "map"
	TypeUserProfile DocumentType = "user_profile"
	TypeArea        DocumentType = "area"
	TypeImage       DocumentType = "image"
)

// AllTypes lists every document type.
var AllTypes = []DocumentType{
	TypeWaypoint, TypeRoute, TypeOuting, TypeMap, TypeUserProfile, TypeArea, TypeImage,
}

// Valid reports whether t belongs to the closed set.
func (t DocumentType) Valid() bool {
	return slices.Contains(AllTypes, t)
}

// Figures holds the language-neutral, type-specific fields of a document.
// Keys are whitelisted per type by the document type registry; values are
// JSON scalars (numbers decode as float64) or lists of strings.
type Figures map[string]any

// Int64 returns an integral figure.
func (f Figures) Int64(name string) (int64, bool) {
	switch v := f[name].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// Equal compares figures by value. Both sides are canonicalized through
// JSON so that 3 and 3.0 or nil and an empty map compare equal.
func (f Figures) Equal(other Figures) bool {
	return canonicalJSON(f) == canonicalJSON(other)
}

func canonicalJSON(f Figures) string {
	if len(f) == 0 {
		return "{}"
	}
	b, err := json.Marshal(map[string]any(f))
	if err != nil {
		return ""
	}
	return string(b)
}

// Clone returns a deep copy for JSON-shaped values.
func (f Figures) Clone() Figures {
	if f == nil {
		return nil
	}
	out := make(Figures, len(f))
	for k, v := range f {
		if list, ok := v.([]any); ok {
			v = slices.Clone(list)
		}
		out[k] = v
	}
	return out
}

// Document is the live aggregate: figures, locales, geometry.
type Document struct {
	ID          int64        `json:"document_id" db:"id"`
	Type        DocumentType `json:"type" db:"type"`
	Version     int          `json:"version" db:"version"`
	Quality     string       `json:"quality,omitempty" db:"quality"`
	Protected   bool         `json:"protected" db:"protected"`
	RedirectsTo *int64       `json:"redirects_to,omitempty" db:"redirects_to"`
	Figures     Figures      `json:"figures" db:"figures"`
	Locales     []Locale     `json:"locales"`
	Geometry    *Geometry    `json:"geometry,omitempty"`

	// Associations is the submitted link set on writes and the grouped
	// link set on reads. Nil on a write means "leave the graph alone".
	Associations Associations `json:"associations,omitempty"`

	// Read-only projections, never persisted.
	AvailableLangs []string         `json:"available_langs,omitempty"`
	Areas          []LinkedDocument `json:"areas,omitempty"`
	Maps           []LinkedDocument `json:"maps,omitempty"`
}

// Locale returns the locale for lang, or nil.
func (d *Document) Locale(lang string) *Locale {
	for i := range d.Locales {
		if d.Locales[i].Lang == lang {
			return &d.Locales[i]
		}
	}
	return nil
}

// Langs returns the sorted languages of the document's locales.
func (d *Document) Langs() []string {
	langs := make([]string, 0, len(d.Locales))
	for _, l := range d.Locales {
		langs = append(langs, l.Lang)
	}
	slices.Sort(langs)
	return langs
}

// IsRedirected reports whether the document is a tombstone.
func (d *Document) IsRedirected() bool {
	return d.RedirectsTo != nil
}

// Clone returns a deep copy of the persisted parts of the aggregate.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Figures = d.Figures.Clone()
	out.Locales = make([]Locale, len(d.Locales))
	for i, l := range d.Locales {
		out.Locales[i] = l.Clone()
	}
	if d.Geometry != nil {
		g := *d.Geometry
		out.Geometry = &g
	}
	if d.RedirectsTo != nil {
		r := *d.RedirectsTo
		out.RedirectsTo = &r
	}
	if d.Associations != nil {
		out.Associations = make(Associations, len(d.Associations))
		for k, refs := range d.Associations {
			out.Associations[k] = slices.Clone(refs)
		}
	}
	out.AvailableLangs = slices.Clone(d.AvailableLangs)
	out.Areas = slices.Clone(d.Areas)
	out.Maps = slices.Clone(d.Maps)
	return &out
}

// Locale is one translation of a document's text.
type Locale struct {
	ID          int64             `json:"id,omitempty" db:"id"`
	Lang        string            `json:"lang" db:"lang"`
	Version     int               `json:"version" db:"version"`
	Title       string            `json:"title" db:"title"`
	Summary     string            `json:"summary,omitempty" db:"summary"`
	Description string            `json:"description,omitempty" db:"description"`
	Fields      map[string]string `json:"fields,omitempty" db:"fields"` // type-specific text (gear, access, ...)

	// TitlePrefix is derived from a linked document (a route's main
	// waypoint). It is not archived and never bumps the version.
	TitlePrefix string `json:"title_prefix,omitempty" db:"title_prefix"`
}

// ContentEquals compares the versioned text of two locales.
func (l Locale) ContentEquals(other Locale) bool {
	return l.Title == other.Title &&
		l.Summary == other.Summary &&
		l.Description == other.Description &&
		textFieldsEqual(l.Fields, other.Fields)
}

// Clone returns a copy with its own Fields map.
func (l Locale) Clone() Locale {
	l.Fields = maps.Clone(l.Fields)
	return l
}

func textFieldsEqual(a, b map[string]string) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

// Geometry holds GeoJSON encodings of a document's location.
type Geometry struct {
	Version    int    `json:"version" db:"version"`
	Geom       string `json:"geom,omitempty" db:"geom"`               // default point
	GeomDetail string `json:"geom_detail,omitempty" db:"geom_detail"` // track or outline
}

// Equal compares encodings, not spatial equivalence.
func (g *Geometry) Equal(other *Geometry) bool {
	if g == nil || other == nil {
		return g == nil && other == nil
	}
	return g.Geom == other.Geom && g.GeomDetail == other.GeomDetail
}

// IsEmpty reports whether no encoding is set.
func (g *Geometry) IsEmpty() bool {
	return g == nil || (g.Geom == "" && g.GeomDetail == "")
}
