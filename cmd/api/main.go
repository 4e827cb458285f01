package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/lumina-platform/lumina/internal/api"
	"github.com/lumina-platform/lumina/internal/audit"
	"github.com/lumina-platform/lumina/internal/config"
	"github.com/lumina-platform/lumina/internal/database"
	"github.com/lumina-platform/lumina/internal/events"
	"github.com/lumina-platform/lumina/internal/gemini"
	"github.com/lumina-platform/lumina/internal/generations"
	"github.com/lumina-platform/lumina/internal/identity"
	"github.com/lumina-platform/lumina/internal/images"
	"github.com/lumina-platform/lumina/internal/orchestrator"
	"github.com/lumina-platform/lumina/internal/ratelimit"
	iredis "github.com/lumina-platform/lumina/internal/redis"
	"github.com/lumina-platform/lumina/internal/server"
	"github.com/lumina-platform/lumina/internal/storage"
	"github.com/lumina-platform/lumina/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional): without it events are dropped and audit persistence
	// is disabled, but generation still works.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
	}

	// Blob storage
	blobs, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		slog.Error("initializing blob storage", "error", err)
		os.Exit(1)
	}

	// Gemini
	invoker, err := gemini.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		slog.Error("initializing gemini client", "error", err)
		os.Exit(1)
	}

	// Identity
	verifier := identity.NewVerifier(cfg.Identity.JWTSecret, cfg.Identity.Issuer)

	// Services
	userSvc := users.NewService(users.NewRepository(pool))
	recordSvc := generations.NewService(generations.NewRepository(pool))
	imageSvc := images.NewService(images.NewRepository(pool), blobs)
	limiter := ratelimit.New(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Period)

	orch := orchestrator.New(limiter, recordSvc, invoker, blobs, imageSvc, publisher, cfg.Gemini.Timeout)

	// Handlers
	userHandler := users.NewHandler(userSvc)
	imageHandler := images.NewHandler(imageSvc, userSvc)
	generateHandler := orchestrator.NewHandler(orch, userSvc)
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo, userSvc)

	// Audit consumer
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if natsClient != nil {
		consumer := audit.NewConsumer(auditRepo, natsClient.JetStream())
		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Router
	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	}, api.HandlerSet{
		Generate: generateHandler.Generate,
		Limits:   generateHandler.Limits,

		Me: userHandler.Me,

		ListImages:       imageHandler.ListMine,
		ListPublicImages: imageHandler.ListPublic,
		GetImage:         imageHandler.Get,
		ToggleVisibility: imageHandler.ToggleVisibility,
		ToggleFavorite:   imageHandler.ToggleFavorite,
		UpdateTags:       imageHandler.UpdateTags,
		DeleteImage:      imageHandler.Delete,

		ListAuditLogs: auditHandler.List,

		IdentityMiddleware: identity.Middleware(verifier),
		RequireIdentity:    identity.RequireIdentity,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
