package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnaud-morvan/v6-api/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Documents         string
	Locales           string
	Geometries        string
	Associations      string
	AssociationLog    string
	ArchiveDocuments  string
	ArchiveLocales    string
	ArchiveGeometries string
	Versions          string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Documents:         fmt.Sprintf("%sdocuments", prefix),
		Locales:           fmt.Sprintf("%sdocument_locales", prefix),
		Geometries:        fmt.Sprintf("%sdocument_geometries", prefix),
		Associations:      fmt.Sprintf("%sassociations", prefix),
		AssociationLog:    fmt.Sprintf("%sassociation_log", prefix),
		ArchiveDocuments:  fmt.Sprintf("%sarchive_documents", prefix),
		ArchiveLocales:    fmt.Sprintf("%sarchive_document_locales", prefix),
		ArchiveGeometries: fmt.Sprintf("%sarchive_document_geometries", prefix),
		Versions:          fmt.Sprintf("%sdocument_versions", prefix),
	}
}

// All lists every table, dependents first.
func (t *TableNames) All() []string {
	return []string{
		t.Versions,
		t.ArchiveGeometries,
		t.ArchiveLocales,
		t.ArchiveDocuments,
		t.AssociationLog,
		t.Associations,
		t.Geometries,
		t.Locales,
		t.Documents,
	}
}

// CreateConnectionPool creates a pgx connection pool and checks it with a ping.
//
// Table names are interpolated into the SQL before it reaches the server, so
// each prefix gets its own cached statements. Behind PgBouncer in transaction
// mode (port 6543) prepared statements are unavailable; statement
// descriptions are cached instead, which still encodes jsonb parameters.
// An explicit default_query_exec_mode in the URL wins.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool when the
// call runs outside a transaction.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
