package main

import (
	"context"
	"fmt"

	"github.com/arnaud-morvan/v6-api/internal/cache"
	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	docsystem "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"
	postgresDocsys "github.com/arnaud-morvan/v6-api/internal/repository/postgres/docsystem"
	serviceAuth "github.com/arnaud-morvan/v6-api/internal/service/auth"
	serviceDocsys "github.com/arnaud-morvan/v6-api/internal/service/docsystem"

	"github.com/spf13/cobra"
)

func newSeedCommand(a *app) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample documents through the service layer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.refuseInProd("seed sample documents"); err != nil {
				return err
			}
			svc, err := a.documentService()
			if err != nil {
				return err
			}
			actor := &models.Actor{UserID: userID, Username: "v6admin", Moderator: true}
			return seed(cmd.Context(), a, svc, actor)
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 1, "author of the seeded versions")
	return cmd
}

// documentService wires the write path without cache or metrics
func (a *app) documentService() (docsysSvc.DocumentService, error) {
	registry, err := doctype.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load document types: %w", err)
	}
	typeCache, err := cache.NewTypeCache(config.DefaultTypeCacheSize)
	if err != nil {
		return nil, err
	}

	repoConfig := &postgres.RepositoryConfig{Pool: a.pool, Tables: a.tables, Logger: a.logger}
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	archiveRepo := postgresDocsys.NewArchiveRepository(repoConfig)
	assocRepo := postgresDocsys.NewAssociationRepository(repoConfig)

	return serviceDocsys.NewDocumentService(
		registry,
		docRepo,
		archiveRepo,
		assocRepo,
		postgres.NewTransactionManager(a.pool, a.logger),
		serviceAuth.NewRoleBasedAuthorizer(registry),
		serviceDocsys.NewAssociationReconciler(registry, assocRepo, docRepo, typeCache, nil, a.logger),
		nil,
		nil,
		a.logger,
	), nil
}

func seed(ctx context.Context, a *app, svc docsysSvc.DocumentService, actor *models.Actor) error {
	create := func(docType docsystem.DocumentType, doc docsystem.Document) (*docsystem.Document, error) {
		res, err := svc.CreateDocument(ctx, actor, &docsysSvc.CreateDocumentRequest{
			Type:     docType,
			Document: doc,
			Message:  "seed",
		})
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", docType, err)
		}
		a.logger.Info("seeded document", "type", docType, "id", res.Document.ID, "title", res.Document.Locales[0].Title)
		return res.Document, nil
	}

	if _, err := create(docsystem.TypeArea, docsystem.Document{
		Figures: docsystem.Figures{"area_type": "range"},
		Geometry: &docsystem.Geometry{
			GeomDetail: `{"type":"Polygon","coordinates":[[[620000,5710000],[660000,5710000],[660000,5740000],[620000,5740000],[620000,5710000]]]}`,
		},
		Locales: []docsystem.Locale{{Lang: "fr", Title: "Massif du Mont-Blanc"}},
	}); err != nil {
		return err
	}

	summit, err := create(docsystem.TypeWaypoint, docsystem.Document{
		Figures:  docsystem.Figures{"waypoint_type": "summit", "elevation": 4808.0},
		Geometry: &docsystem.Geometry{Geom: `{"type":"Point","coordinates":[635956,5723604]}`},
		Locales: []docsystem.Locale{
			{Lang: "fr", Title: "Mont Blanc"},
			{Lang: "en", Title: "Mont Blanc"},
		},
	})
	if err != nil {
		return err
	}

	if _, err := create(docsystem.TypeRoute, docsystem.Document{
		Figures: docsystem.Figures{
			"activities":       []any{"mountain_climbing"},
			"main_waypoint_id": float64(summit.ID),
		},
		Geometry: &docsystem.Geometry{
			GeomDetail: `{"type":"LineString","coordinates":[[632000,5718000],[634000,5721000],[635956,5723604]]}`,
		},
		Locales: []docsystem.Locale{
			{Lang: "fr", Title: "Voie des Cristalliers", Description: "Par le refuge du Goûter."},
		},
		Associations: docsystem.Associations{
			docsystem.KeyWaypoints: {{DocumentID: summit.ID}},
		},
	}); err != nil {
		return err
	}

	a.logger.Info("seeding complete")
	return nil
}
