package docsystem

import (
	"testing"

	docsys "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"

	"github.com/stretchr/testify/assert"
)

func snapshotOf(doc *docsys.Document, lang string, docArchiveID int64) docsys.VersionSnapshot {
	archive := docsys.NewArchiveDocument(doc)
	archive.ID = docArchiveID
	snap := docsys.VersionSnapshot{
		Version:  docsys.DocumentVersion{DocumentID: doc.ID, Lang: lang, IsLatest: true},
		Document: *archive,
		Locale:   *docsys.NewArchiveLocale(doc.ID, *doc.Locale(lang)),
	}
	if doc.Geometry != nil {
		snap.Geometry = docsys.NewArchiveGeometry(doc.ID, doc.Geometry)
	}
	return snap
}

func classifierDoc() *docsys.Document {
	return &docsys.Document{
		ID:      10,
		Type:    docsys.TypeWaypoint,
		Version: 1,
		Quality: "draft",
		Figures: docsys.Figures{"waypoint_type": "summit", "elevation": 4810.0},
		Locales: []docsys.Locale{
			{Lang: "en", Version: 1, Title: "Mont Blanc"},
			{Lang: "fr", Version: 1, Title: "Mont Blanc"},
		},
		Geometry: &docsys.Geometry{Version: 1, Geom: pointMontBlanc},
	}
}

func TestClassifyUpdate(t *testing.T) {
	base := classifierDoc()
	previous := []docsys.VersionSnapshot{snapshotOf(base, "en", 1), snapshotOf(base, "fr", 1)}

	tests := []struct {
		name      string
		mutate    func(d *docsys.Document)
		wantKinds []docsys.ChangeKind
		wantLangs []string
	}{
		{"unchanged", func(d *docsys.Document) {}, []docsys.ChangeKind{}, []string{}},
		{"ids and versions are ignored", func(d *docsys.Document) {
			d.Version = 7
			d.Locales[0].ID, d.Locales[0].Version = 99, 4
			d.Geometry.Version = 3
		}, []docsys.ChangeKind{}, []string{}},
		{"integral numbers compare by value", func(d *docsys.Document) {
			d.Figures["elevation"] = 4810
		}, []docsys.ChangeKind{}, []string{}},
		{"figure", func(d *docsys.Document) {
			d.Figures["elevation"] = 4808.0
		}, []docsys.ChangeKind{docsys.ChangeFigures}, []string{}},
		{"quality", func(d *docsys.Document) {
			d.Quality = "fine"
		}, []docsys.ChangeKind{docsys.ChangeFigures}, []string{}},
		{"redirect", func(d *docsys.Document) {
			target := int64(11)
			d.RedirectsTo = &target
		}, []docsys.ChangeKind{docsys.ChangeFigures}, []string{}},
		{"geometry", func(d *docsys.Document) {
			d.Geometry.Geom = pointAiguille
		}, []docsys.ChangeKind{docsys.ChangeGeom}, []string{}},
		{"geometry removed", func(d *docsys.Document) {
			d.Geometry = nil
		}, []docsys.ChangeKind{docsys.ChangeGeom}, []string{}},
		{"title prefix is not content", func(d *docsys.Document) {
			d.Locales[1].TitlePrefix = "Chamonix"
		}, []docsys.ChangeKind{}, []string{}},
		{"one locale", func(d *docsys.Document) {
			d.Locales[1].Summary = "Toit des Alpes"
		}, []docsys.ChangeKind{docsys.ChangeLang}, []string{"fr"}},
		{"locale text field", func(d *docsys.Document) {
			d.Locales[0].Fields = map[string]string{"access": "Tramway du Mont-Blanc"}
		}, []docsys.ChangeKind{docsys.ChangeLang}, []string{"en"}},
		{"new locale", func(d *docsys.Document) {
			d.Locales = append(d.Locales, docsys.Locale{Lang: "it", Title: "Monte Bianco"})
		}, []docsys.ChangeKind{docsys.ChangeLang}, []string{"it"}},
		{"everything", func(d *docsys.Document) {
			d.Figures["elevation"] = 4808.0
			d.Geometry.Geom = pointAiguille
			d.Locales[1].Title = "Mont-Blanc"
			d.Locales[0].Title = "Mont-Blanc"
		}, []docsys.ChangeKind{docsys.ChangeFigures, docsys.ChangeGeom, docsys.ChangeLang}, []string{"en", "fr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := base.Clone()
			tt.mutate(live)

			got := ClassifyUpdate(previous, live)
			assert.Equal(t, tt.wantKinds, got.ChangeKinds)
			assert.Equal(t, tt.wantLangs, got.ChangedLangs)
		})
	}
}

func TestClassifyUpdate_NewDocument(t *testing.T) {
	doc := classifierDoc()
	got := ClassifyUpdate(nil, doc)
	assert.Equal(t, []docsys.ChangeKind{docsys.ChangeFigures, docsys.ChangeGeom, docsys.ChangeLang}, got.ChangeKinds)
	assert.Equal(t, []string{"en", "fr"}, got.ChangedLangs)

	doc.Geometry = nil
	got = ClassifyUpdate(nil, doc)
	assert.Equal(t, []docsys.ChangeKind{docsys.ChangeFigures, docsys.ChangeLang}, got.ChangeKinds)
}

func TestClassifyUpdate_UsesNewestSharedSnapshot(t *testing.T) {
	old := classifierDoc()
	current := old.Clone()
	current.Version = 2
	current.Figures["elevation"] = 4808.0

	// fr was archived before the last figures change
	previous := []docsys.VersionSnapshot{snapshotOf(current, "en", 2), snapshotOf(old, "fr", 1)}

	got := ClassifyUpdate(previous, current.Clone())
	assert.True(t, got.IsEmpty())
}
