package docsystem

import (
	"slices"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// ClassifyUpdate compares a merged live document with the latest version
// snapshots taken before the merge. Only business fields are compared; ids
// and version counters are ignored. A document without snapshots is new, so
// every dimension it carries counts as changed.
func ClassifyUpdate(previous []models.VersionSnapshot, live *models.Document) models.ChangeSummary {
	summary := models.NewChangeSummary()

	prevDoc, prevGeom := latestShared(previous)
	if prevDoc == nil || !prevDoc.SameFigures(live) {
		summary.ChangeKinds = append(summary.ChangeKinds, models.ChangeFigures)
	}

	if geometryChanged(prevGeom.AsGeometry(), live.Geometry) {
		summary.ChangeKinds = append(summary.ChangeKinds, models.ChangeGeom)
	}

	byLang := make(map[string]*models.ArchiveLocale, len(previous))
	for i := range previous {
		byLang[previous[i].Locale.Lang] = &previous[i].Locale
	}
	for _, l := range live.Locales {
		prev, ok := byLang[l.Lang]
		if !ok || !prev.AsLocale().ContentEquals(l) {
			summary.ChangedLangs = append(summary.ChangedLangs, l.Lang)
		}
	}
	if len(summary.ChangedLangs) > 0 {
		slices.Sort(summary.ChangedLangs)
		summary.ChangedLangs = slices.Compact(summary.ChangedLangs)
		summary.ChangeKinds = append(summary.ChangeKinds, models.ChangeLang)
	}

	return summary
}

// latestShared picks the newest figures and geometry snapshots among the
// per-language latest versions. Languages archived before the last figure
// change may still point at older rows.
func latestShared(previous []models.VersionSnapshot) (*models.ArchiveDocument, *models.ArchiveGeometry) {
	var doc *models.ArchiveDocument
	var geom *models.ArchiveGeometry
	for i := range previous {
		s := &previous[i]
		if doc == nil || s.Document.Version > doc.Version {
			doc = &s.Document
		}
		if s.Geometry != nil && (geom == nil || s.Geometry.Version > geom.Version) {
			geom = s.Geometry
		}
	}
	return doc, geom
}

func geometryChanged(prev, live *models.Geometry) bool {
	if prev.IsEmpty() && live.IsEmpty() {
		return false
	}
	return !prev.Equal(live)
}
