package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"
	postgresDocsys "github.com/arnaud-morvan/v6-api/internal/repository/postgres/docsystem"
	serviceDocsys "github.com/arnaud-morvan/v6-api/internal/service/docsystem"

	"github.com/spf13/cobra"
)

// parseSince accepts an RFC 3339 timestamp or a duration back from now ("24h")
func parseSince(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC 3339 or a positive duration", raw)
	}
	return now.Add(-d), nil
}

func newChangesCommand(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Print the documents changed since a point in time, one JSON object per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}

			repoConfig := &postgres.RepositoryConfig{Pool: a.pool, Tables: a.tables, Logger: a.logger}
			syncService := serviceDocsys.NewSyncService(
				postgresDocsys.NewDocumentRepository(repoConfig),
				postgresDocsys.NewArchiveRepository(repoConfig),
				config.DefaultSyncBatchSize,
				config.DefaultSyncConcurrency,
				a.logger,
			)

			changed, err := syncService.ChangedSince(cmd.Context(), t)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, c := range changed {
				if err := enc.Encode(c); err != nil {
					return err
				}
			}
			a.logger.Info("changes listed", "since", t, "count", len(changed))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "24h", "RFC 3339 timestamp or duration back from now")
	return cmd
}
