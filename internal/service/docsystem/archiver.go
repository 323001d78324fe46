package docsystem

import (
	"context"
	"fmt"
	"time"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysRepo "github.com/arnaud-morvan/v6-api/internal/domain/repositories/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/observability"
)

// versionMeta describes who wrote a set of versions, and when.
type versionMeta struct {
	AuthorID  int64
	Comment   string
	WrittenAt time.Time
}

// Archiver writes archive snapshots and version rows for a classified update.
// It runs inside the caller's transaction and assumes version conflicts were
// already resolved.
type Archiver struct {
	archiveRepo docsysRepo.ArchiveRepository
	metrics     *observability.Metrics
}

// NewArchiver creates a new archiver
func NewArchiver(archiveRepo docsysRepo.ArchiveRepository, metrics *observability.Metrics) *Archiver {
	return &Archiver{archiveRepo: archiveRepo, metrics: metrics}
}

// Archive snapshots doc (already carrying its bumped versions) and writes one
// new latest version per affected language. previous are the latest
// snapshots read before the merge. An empty summary writes nothing.
func (a *Archiver) Archive(
	ctx context.Context,
	doc *models.Document,
	previous []models.VersionSnapshot,
	summary models.ChangeSummary,
	meta versionMeta,
) ([]models.DocumentVersion, error) {
	if summary.IsEmpty() {
		return nil, nil
	}

	prevDoc, prevGeom := latestShared(previous)

	// One figures snapshot per update, shared by every language.
	var archiveDocID int64
	if summary.TouchesDocument() || prevDoc == nil {
		archive := models.NewArchiveDocument(doc)
		if err := a.archiveRepo.CreateDocumentArchive(ctx, archive); err != nil {
			return nil, fmt.Errorf("archive document: %w", err)
		}
		a.metrics.RecordArchiveRows("document", 1)
		archiveDocID = archive.ID
	} else {
		archiveDocID = prevDoc.ID
	}

	var archiveGeomID *int64
	if summary.Has(models.ChangeGeom) && !doc.Geometry.IsEmpty() {
		archive := models.NewArchiveGeometry(doc.ID, doc.Geometry)
		if err := a.archiveRepo.CreateGeometryArchive(ctx, archive); err != nil {
			return nil, fmt.Errorf("archive geometry: %w", err)
		}
		a.metrics.RecordArchiveRows("geometry", 1)
		archiveGeomID = &archive.ID
	} else if prevGeom != nil {
		id := prevGeom.ID
		archiveGeomID = &id
	}

	latest := make(map[string]int64, len(previous))
	for _, s := range previous {
		latest[s.Locale.Lang] = s.Version.ID
	}

	var versions []models.DocumentVersion
	for _, lang := range doc.Langs() {
		if !summary.TouchesDocument() && !summary.LangChanged(lang) {
			continue
		}

		archiveLocale := models.NewArchiveLocale(doc.ID, *doc.Locale(lang))
		if err := a.archiveRepo.CreateLocaleArchive(ctx, archiveLocale); err != nil {
			return nil, fmt.Errorf("archive locale %s: %w", lang, err)
		}
		a.metrics.RecordArchiveRows("locale", 1)

		// The partial unique index on latest versions requires the flip first.
		if prevID, ok := latest[lang]; ok {
			if err := a.archiveRepo.MarkSuperseded(ctx, prevID); err != nil {
				return nil, fmt.Errorf("supersede version %d: %w", prevID, err)
			}
		}

		version := models.DocumentVersion{
			DocumentID:        doc.ID,
			Lang:              lang,
			ArchiveDocumentID: archiveDocID,
			ArchiveLocaleID:   archiveLocale.ID,
			ArchiveGeometryID: archiveGeomID,
			AuthorID:          meta.AuthorID,
			Comment:           meta.Comment,
			WrittenAt:         meta.WrittenAt,
			IsLatest:          true,
		}
		if err := a.archiveRepo.CreateVersion(ctx, &version); err != nil {
			return nil, fmt.Errorf("create version %s: %w", lang, err)
		}
		a.metrics.RecordArchiveRows("version", 1)
		versions = append(versions, version)
	}

	return versions, nil
}

// bumpVersions increments the counters of everything the summary says
// changed. persisted is the document as read before the merge, nil on create.
func bumpVersions(doc, persisted *models.Document, summary models.ChangeSummary) {
	if persisted == nil {
		doc.Version = 1
		for i := range doc.Locales {
			doc.Locales[i].Version = 1
		}
		if doc.Geometry != nil {
			doc.Geometry.Version = 1
		}
		return
	}

	if summary.TouchesDocument() {
		doc.Version = persisted.Version + 1
	}
	for i := range doc.Locales {
		l := &doc.Locales[i]
		if !summary.LangChanged(l.Lang) {
			continue
		}
		if prev := persisted.Locale(l.Lang); prev != nil {
			l.Version = prev.Version + 1
		} else {
			l.Version = 1
		}
	}
	if summary.Has(models.ChangeGeom) && doc.Geometry != nil {
		if persisted.Geometry != nil {
			doc.Geometry.Version = persisted.Geometry.Version + 1
		} else {
			doc.Geometry.Version = 1
		}
	}
}
