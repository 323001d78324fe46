package docsystem

import (
	"fmt"

	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

type mergeOptions struct {
	// redirect lets the submission change redirects_to (moderation only).
	redirect bool
}

// mergeDocument applies a submission onto the persisted aggregate and
// returns the new live document. Every submitted version must match the
// persisted one. Locales missing from the submission are kept as they are.
func mergeDocument(persisted, incoming *models.Document, opts mergeOptions) (*models.Document, error) {
	if incoming.Version != persisted.Version {
		return nil, &domain.ConflictError{
			Message:      fmt.Sprintf("document %d was modified (version %d, submitted %d)", persisted.ID, persisted.Version, incoming.Version),
			ResourceType: "document",
			ResourceID:   fmt.Sprint(persisted.ID),
		}
	}

	merged := persisted.Clone()
	merged.Figures = incoming.Figures.Clone()
	if incoming.Quality != "" {
		merged.Quality = incoming.Quality
	}
	if opts.redirect {
		merged.RedirectsTo = incoming.RedirectsTo
	}
	merged.Associations = incoming.Associations
	merged.AvailableLangs, merged.Areas, merged.Maps = nil, nil, nil

	for _, in := range incoming.Locales {
		current := merged.Locale(in.Lang)
		if current == nil {
			l := in.Clone()
			l.ID, l.Version, l.TitlePrefix = 0, 0, ""
			merged.Locales = append(merged.Locales, l)
			continue
		}
		if in.Version != current.Version {
			return nil, &domain.ConflictError{
				Message:      fmt.Sprintf("locale %q of document %d was modified (version %d, submitted %d)", in.Lang, persisted.ID, current.Version, in.Version),
				ResourceType: "locale",
				ResourceID:   fmt.Sprintf("%d/%s", persisted.ID, in.Lang),
			}
		}
		updated := in.Clone()
		updated.ID, updated.Version, updated.TitlePrefix = current.ID, current.Version, current.TitlePrefix
		*current = updated
	}

	if incoming.Geometry != nil {
		version := 0
		if persisted.Geometry != nil {
			if incoming.Geometry.Version != persisted.Geometry.Version {
				return nil, &domain.ConflictError{
					Message:      fmt.Sprintf("geometry of document %d was modified (version %d, submitted %d)", persisted.ID, persisted.Geometry.Version, incoming.Geometry.Version),
					ResourceType: "geometry",
					ResourceID:   fmt.Sprint(persisted.ID),
				}
			}
			version = persisted.Geometry.Version
		}
		merged.Geometry = &models.Geometry{
			Version:    version,
			Geom:       incoming.Geometry.Geom,
			GeomDetail: incoming.Geometry.GeomDetail,
		}
	}

	return merged, nil
}
