package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/config"
	"github.com/clearpath-health/intake-engine/pkg/database"
	"github.com/clearpath-health/intake-engine/pkg/handlers"
	"github.com/clearpath-health/intake-engine/pkg/llm"
	"github.com/clearpath-health/intake-engine/pkg/logging"
	"github.com/clearpath-health/intake-engine/pkg/middleware"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
	"github.com/clearpath-health/intake-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Migrations run through database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	// Repositories
	leadRepo := repositories.NewLeadRepository(db)
	appointmentRepo := repositories.NewAppointmentRepository(db)
	callRepo := repositories.NewCallRepository(db)
	spendRepo := repositories.NewAdSpendRepository(db)

	// LLM client and pipeline services
	llmClient, err := llm.NewFromConfig(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	extractor := services.NewEnrichmentExtractor(llmClient, &cfg.AI, logger)

	parseSources := []services.ParseSource{
		{Name: "leads", Store: leadRepo},
		{Name: "appointments", Store: appointmentRepo},
	}
	runner := services.NewParsingQueueRunner(parseSources, extractor, &cfg.Parser, logger)

	dedupSources := []services.DedupSource{
		{Name: "leads", Store: leadRepo},
		{Name: "appointments", Store: appointmentRepo},
	}
	resolver := services.NewDeduplicationResolver(dedupSources, logger)

	// Matchers resolve each table against its counterpart.
	leadMatcher := services.NewIdentityMatcher(appointmentRepo, logger)
	appointmentMatcher := services.NewIdentityMatcher(leadRepo, logger)

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSURL:            cfg.Auth.JWKSURL,
		Issuer:             cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(jwksClient, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewLeadHandler(leadRepo, leadMatcher, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAppointmentHandler(appointmentRepo, appointmentMatcher, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewCallHandler(callRepo, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAdSpendHandler(spendRepo, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewPipelineHandler(runner, resolver, parseSources, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting intake-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
