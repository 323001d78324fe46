package docsystem

import (
	"fmt"

	"github.com/arnaud-morvan/v6-api/internal/geometry"
)

// srid of every stored geometry (web mercator, as submitted by clients).
const srid = 3857

func toGeoJSON(column string) string {
	return fmt.Sprintf("ST_AsGeoJSON(%s)", column)
}

func fromGeoJSON(param string) string {
	return fmt.Sprintf("ST_SetSRID(ST_GeomFromGeoJSON(%s::text), %d)", param, srid)
}

// nullable maps an empty encoding to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalizePair re-encodes what PostGIS returns the way submissions are
// encoded, so stored and submitted geometries compare equal.
func normalizePair(geom, detail *string) (string, string, error) {
	var g, d string
	var err error
	if geom != nil {
		if g, err = geometry.Normalize(*geom); err != nil {
			return "", "", fmt.Errorf("decode geom: %w", err)
		}
	}
	if detail != nil {
		if d, err = geometry.Normalize(*detail); err != nil {
			return "", "", fmt.Errorf("decode geom_detail: %w", err)
		}
	}
	return g, d, nil
}
