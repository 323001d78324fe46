// Command v6admin manages the database of the document API: schema
// creation, sample data and the change feed used by the search indexer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs. The pool is opened lazily so
// that --help works without a database.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

func (a *app) connect(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := postgres.CreateConnectionPool(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool
	return nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// refuseInProd blocks destructive or test-data operations in production
func (a *app) refuseInProd(operation string) error {
	if a.cfg.Environment == "prod" {
		return fmt.Errorf("refusing to %s in the prod environment", operation)
	}
	return nil
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "v6admin",
		Short:         "Administration tasks for the document API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("v6admin",
				"command", cmd.Name(),
				"environment", a.cfg.Environment,
				"table_prefix", a.cfg.TablePrefix,
			)
			return a.connect(cmd.Context())
		},
	}

	root.AddCommand(
		newSchemaCommand(a),
		newSeedCommand(a),
		newChangesCommand(a),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	a := &app{
		cfg:    cfg,
		logger: logger,
		tables: postgres.NewTableNames(cfg.TablePrefix),
	}
	defer a.close()

	if err := newRootCommand(a).ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		a.close()
		os.Exit(1)
	}
}
