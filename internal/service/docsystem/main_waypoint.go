package docsystem

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/geometry"
)

const mainWaypointField = "main_waypoint_id"

// loadMainWaypoint checks that a route's main waypoint is one of its
// waypoint parents and loads it. When the submission carries no
// associations the stored edges are used instead.
func (s *documentService) loadMainWaypoint(ctx context.Context, doc *models.Document) (*models.Document, *domain.ValidationError, error) {
	if doc.Type != models.TypeRoute {
		return nil, nil, nil
	}
	id, ok := doc.Figures.Int64(mainWaypointField)
	if !ok {
		return nil, nil, nil
	}

	linked := false
	if doc.Associations != nil {
		linked = doc.Associations.Contains(models.KeyWaypoints, id)
	} else if doc.ID != 0 {
		edges, err := s.assocRepo.GetForDocument(ctx, doc.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("get associations: %w", err)
		}
		for _, e := range edges {
			if e.OtherID == id && e.OtherIsParent && e.OtherType == models.TypeWaypoint {
				linked = true
				break
			}
		}
	}
	if !linked {
		return nil, domain.NewValidationError(mainWaypointField, "no association for the main waypoint"), nil
	}

	waypoint, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError(mainWaypointField, fmt.Sprintf("document %q does not exist", fmt.Sprint(id))), nil
		}
		return nil, nil, fmt.Errorf("get main waypoint: %w", err)
	}
	if waypoint.Type != models.TypeWaypoint {
		return nil, domain.NewValidationError(mainWaypointField, fmt.Sprintf("document %q is not of type %q", fmt.Sprint(id), models.TypeWaypoint)), nil
	}
	return waypoint, nil, nil
}

// deriveGeometry fills in a missing default point: half-way along the
// detail geometry when the type derives one, else the main waypoint's point.
func deriveGeometry(cfg *doctype.TypeConfig, doc *models.Document, waypoint *models.Document) *domain.ValidationError {
	if doc.Geometry != nil && doc.Geometry.Geom != "" {
		return nil
	}

	if doc.Geometry != nil && doc.Geometry.GeomDetail != "" && cfg.DeriveDefaultPoint {
		point, err := geometry.DefaultPoint(doc.Geometry.GeomDetail)
		if err != nil {
			return domain.NewValidationError("geometry.geom_detail", err.Error())
		}
		doc.Geometry.Geom = point
		return nil
	}

	if waypoint != nil && waypoint.Geometry != nil && waypoint.Geometry.Geom != "" {
		if doc.Geometry == nil {
			doc.Geometry = &models.Geometry{}
		}
		doc.Geometry.Geom = waypoint.Geometry.Geom
	}
	return nil
}

// refreshTitlePrefixes copies the main waypoint's title into every locale
// of the route. Prefixes are derived data: they are not archived and do not
// bump locale versions.
func (s *documentService) refreshTitlePrefixes(ctx context.Context, route *models.Document, waypoint *models.Document) error {
	for i := range route.Locales {
		l := &route.Locales[i]
		prefix := ""
		if waypoint != nil {
			if best := models.BestLocale(waypoint.Locales, l.Lang); best != nil {
				prefix = best.Title
			}
		}
		if prefix == l.TitlePrefix {
			continue
		}
		if err := s.docRepo.SetTitlePrefix(ctx, route.ID, l.Lang, prefix); err != nil {
			return fmt.Errorf("set title prefix %s: %w", l.Lang, err)
		}
		l.TitlePrefix = prefix
	}
	return nil
}

// refreshDependentRoutes updates the prefixes of the routes whose main
// waypoint is waypoint and returns their ids.
func (s *documentService) refreshDependentRoutes(ctx context.Context, waypoint *models.Document) ([]int64, error) {
	routeIDs, err := s.docRepo.FindRoutesByMainWaypoint(ctx, []int64{waypoint.ID})
	if err != nil {
		return nil, fmt.Errorf("find routes of waypoint: %w", err)
	}
	for _, id := range routeIDs {
		route, err := s.docRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get route %d: %w", id, err)
		}
		if err := s.refreshTitlePrefixes(ctx, route, waypoint); err != nil {
			return nil, err
		}
	}
	return routeIDs, nil
}
