package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/auth"
	"github.com/arnaud-morvan/v6-api/internal/cache"
	"github.com/arnaud-morvan/v6-api/internal/config"
	"github.com/arnaud-morvan/v6-api/internal/doctype"
	docsysSvc "github.com/arnaud-morvan/v6-api/internal/domain/services/docsystem"
	"github.com/arnaud-morvan/v6-api/internal/handler"
	"github.com/arnaud-morvan/v6-api/internal/middleware"
	"github.com/arnaud-morvan/v6-api/internal/observability"
	"github.com/arnaud-morvan/v6-api/internal/repository/postgres"
	postgresDocsys "github.com/arnaud-morvan/v6-api/internal/repository/postgres/docsystem"
	serviceAuth "github.com/arnaud-morvan/v6-api/internal/service/auth"
	serviceDocsys "github.com/arnaud-morvan/v6-api/internal/service/docsystem"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		out = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)

	// Document type configuration is embedded in the binary
	registry, err := doctype.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load document types: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(promRegistry)

	// Caches
	var docCache docsysSvc.DocumentCache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		docCache = cache.NewDocumentCache(client, cfg.CacheTTL, metrics, logger)
		logger.Info("document cache enabled", "ttl", cfg.CacheTTL)
	} else {
		logger.Warn("REDIS_URL not set, document cache disabled")
	}

	typeCache, err := cache.NewTypeCache(cfg.TypeCacheSize)
	if err != nil {
		log.Fatalf("Failed to create type cache: %v", err)
	}

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	docRepo := postgresDocsys.NewDocumentRepository(repoConfig)
	archiveRepo := postgresDocsys.NewArchiveRepository(repoConfig)
	assocRepo := postgresDocsys.NewAssociationRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Services
	authorizer := serviceAuth.NewRoleBasedAuthorizer(registry)
	reconciler := serviceDocsys.NewAssociationReconciler(registry, assocRepo, docRepo, typeCache, metrics, logger)
	docService := serviceDocsys.NewDocumentService(
		registry,
		docRepo,
		archiveRepo,
		assocRepo,
		txManager,
		authorizer,
		reconciler,
		docCache,
		metrics,
		logger,
	)
	syncService := serviceDocsys.NewSyncService(docRepo, archiveRepo, cfg.SyncBatchSize, cfg.SyncConcurrency, logger)

	logger.Info("services initialized", "document_types", len(registry.Types()))

	// Routes
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux,
		handler.NewDocumentHandler(docService, registry, logger),
		handler.NewSyncHandler(syncService, registry, logger),
		handler.NewHealthHandler(pool, logger),
	)
	mux.Handle("GET /metrics", metrics.Handler())

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → RequestID → Recovery → Auth → Metrics → Routes
	var h http.Handler = mux
	h = middleware.Metrics(metrics, logger)(h)
	h = middleware.AuthMiddleware(jwtVerifier, logger)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestID(h)

	// CORS - Must be outermost to answer OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
