package main

import (
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"

	"github.com/spf13/cobra"
)

func newSchemaCommand(a *app) *cobra.Command {
	var drop bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the tables and indexes if they don't exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if drop {
				if err := a.refuseInProd("drop tables"); err != nil {
					return err
				}
				if err := postgres.DropSchema(ctx, a.pool, a.tables, a.logger); err != nil {
					return err
				}
			}

			if err := postgres.CreateSchema(ctx, a.pool, a.tables, a.cfg.TablePrefix); err != nil {
				return err
			}
			a.logger.Info("schema ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&drop, "drop", false, "drop every table first (fresh start)")
	return cmd
}
