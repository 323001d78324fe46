package docsystem

import "slices"

// ChangeKind classifies what an update touched.
type ChangeKind string

const (
	ChangeFigures ChangeKind = "FIGURES" // document fields outside locales and geometry
	ChangeGeom    ChangeKind = "GEOM"
	ChangeLang    ChangeKind = "LANG" // at least one locale changed or was added
)

// ChangeSummary is the classifier result returned with every write.
type ChangeSummary struct {
	ChangeKinds  []ChangeKind `json:"change_kinds"`
	ChangedLangs []string     `json:"changed_langs"`
}

// NewChangeSummary returns an empty, JSON-friendly summary.
func NewChangeSummary() ChangeSummary {
	return ChangeSummary{ChangeKinds: []ChangeKind{}, ChangedLangs: []string{}}
}

// Has reports whether kind was detected.
func (s ChangeSummary) Has(kind ChangeKind) bool {
	return slices.Contains(s.ChangeKinds, kind)
}

// IsEmpty reports a no-op update.
func (s ChangeSummary) IsEmpty() bool {
	return len(s.ChangeKinds) == 0
}

// TouchesDocument reports whether the shared document row changes, which
// means every language gets a new version row.
func (s ChangeSummary) TouchesDocument() bool {
	return s.Has(ChangeFigures) || s.Has(ChangeGeom)
}

// LangChanged reports whether lang is in the changed list.
func (s ChangeSummary) LangChanged(lang string) bool {
	_, found := slices.BinarySearch(s.ChangedLangs, lang)
	return found
}
