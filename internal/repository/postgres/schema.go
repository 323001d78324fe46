package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateSchema creates the tables and indexes if they don't exist.
// Geometries are stored in EPSG:3857.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, tablePrefix string) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("enable postgis: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tables.Documents + ` (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			quality TEXT NOT NULL DEFAULT '',
			protected BOOLEAN NOT NULL DEFAULT FALSE,
			redirects_to BIGINT REFERENCES ` + tables.Documents + `(id),
			figures JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Locales + ` (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			lang TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			fields JSONB NOT NULL DEFAULT '{}',
			title_prefix TEXT NOT NULL DEFAULT '',
			UNIQUE(document_id, lang)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Geometries + ` (
			document_id BIGINT PRIMARY KEY REFERENCES ` + tables.Documents + `(id),
			version INTEGER NOT NULL DEFAULT 1,
			geom geometry(Geometry, 3857),
			geom_detail geometry(Geometry, 3857)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Associations + ` (
			parent_document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			child_document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			PRIMARY KEY (parent_document_id, child_document_id)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.AssociationLog + ` (
			id BIGSERIAL PRIMARY KEY,
			parent_document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			child_document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			user_id BIGINT NOT NULL,
			written_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.ArchiveDocuments + ` (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			type TEXT NOT NULL,
			version INTEGER NOT NULL,
			quality TEXT NOT NULL DEFAULT '',
			redirects_to BIGINT,
			figures JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.ArchiveLocales + ` (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			lang TEXT NOT NULL,
			version INTEGER NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			fields JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.ArchiveGeometries + ` (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			version INTEGER NOT NULL,
			geom geometry(Geometry, 3857),
			geom_detail geometry(Geometry, 3857)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Versions + ` (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES ` + tables.Documents + `(id),
			lang TEXT NOT NULL,
			archive_document_id BIGINT NOT NULL REFERENCES ` + tables.ArchiveDocuments + `(id),
			archive_locale_id BIGINT NOT NULL REFERENCES ` + tables.ArchiveLocales + `(id),
			archive_geometry_id BIGINT REFERENCES ` + tables.ArchiveGeometries + `(id),
			author_id BIGINT NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			written_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_latest_version BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `documents_type ON ` + tables.Documents + `(type, id) WHERE redirects_to IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `documents_main_waypoint ON ` + tables.Documents + `(((figures->>'main_waypoint_id')::bigint)) WHERE type = 'route'`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `geometries_geom ON ` + tables.Geometries + ` USING GIST (geom)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `geometries_detail ON ` + tables.Geometries + ` USING GIST (geom_detail)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `associations_child ON ` + tables.Associations + `(child_document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `versions_document_lang ON ` + tables.Versions + `(document_id, lang, id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `versions_latest_unique ON ` + tables.Versions + `(document_id, lang) WHERE is_latest_version`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `versions_written_at ON ` + tables.Versions + `(written_at)`,
	}

	for _, stmt := range append(statements, indexes...) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("run schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops every table, dependents first.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) error {
	for _, table := range tables.All() {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		logger.Info("dropped table", "table", table)
	}
	return nil
}
