package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumina-platform/lumina/internal/database"
	"github.com/lumina-platform/lumina/internal/events"
	mw "github.com/lumina-platform/lumina/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import
// cycles.
type HandlerSet struct {
	// Generation
	Generate http.HandlerFunc
	Limits   http.HandlerFunc

	// Users
	Me http.HandlerFunc

	// Images
	ListImages       http.HandlerFunc
	ListPublicImages http.HandlerFunc
	GetImage         http.HandlerFunc
	ToggleVisibility http.HandlerFunc
	ToggleFavorite   http.HandlerFunc
	UpdateTags       http.HandlerFunc
	DeleteImage      http.HandlerFunc

	// Audit
	ListAuditLogs http.HandlerFunc

	// IdentityMiddleware resolves optional bearer tokens; RequireIdentity
	// rejects anonymous callers on protected routes.
	IdentityMiddleware func(http.Handler) http.Handler
	RequireIdentity    func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(pool *pgxpool.Pool, rdb *redis.Client, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe: checks DB, Redis, NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		// A dead Redis means generation requests fail closed, so it gates
		// readiness.
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.IdentityMiddleware)

		// Generation routes accept anonymous callers; quota falls back to
		// the network origin.
		r.Post("/generate", h.Generate)
		r.Get("/limits", h.Limits)

		// Public gallery and visibility-checked single image
		r.Get("/images/public", h.ListPublicImages)
		r.Get("/images/{id}", h.GetImage)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireIdentity)

			r.Get("/users/me", h.Me)

			r.Route("/images", func(r chi.Router) {
				r.Get("/", h.ListImages)
				r.Post("/{id}/visibility", h.ToggleVisibility)
				r.Post("/{id}/favorite", h.ToggleFavorite)
				r.Put("/{id}/tags", h.UpdateTags)
				r.Delete("/{id}", h.DeleteImage)
			})

			r.Get("/audit", h.ListAuditLogs)
		})
	})

	return r
}
