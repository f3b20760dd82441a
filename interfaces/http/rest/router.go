package rest

import (
	"net/http"

	"atlas-graph/application/commands/bus"
	querybus "atlas-graph/application/queries/bus"
	"atlas-graph/infrastructure/config"
	"atlas-graph/interfaces/http/rest/handlers"
	"atlas-graph/interfaces/http/rest/middleware"
	"atlas-graph/pkg/auth"
	pkgerrors "atlas-graph/pkg/errors"
	"atlas-graph/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router builds the public HTTP API.
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	cfg        *config.Config
	metrics    *observability.Metrics
	limiter    middleware.RateLimiter
	logger     *zap.Logger
}

// NewRouter creates a new router. The limiter may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *config.Config,
	metrics *observability.Metrics,
	limiter middleware.RateLimiter,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		cfg:        cfg,
		metrics:    metrics,
		limiter:    limiter,
		logger:     logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.atlas-graph.dev"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	nodeHandler := handlers.NewNodeHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)
	edgeHandler := handlers.NewEdgeHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)
	snapshotHandler := handlers.NewSnapshotHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)
	auditHandler := handlers.NewAuditHandler(rt.commandBus, rt.queryBus, errHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authenticator().Middleware)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Get("/", nodeHandler.ListNodes)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Put("/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Get("/{nodeID}/connections", nodeHandler.GetNodeConnections)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.CreateEdge)
			r.Get("/", edgeHandler.ListEdges)
			r.Get("/{edgeID}", edgeHandler.GetEdge)
			r.Put("/{edgeID}", edgeHandler.UpdateEdge)
			r.Delete("/{edgeID}", edgeHandler.DeleteEdge)
		})

		r.Route("/graph", func(r chi.Router) {
			r.Post("/traverse", graphHandler.Traverse)
			r.Post("/path", graphHandler.FindPath)
			r.Post("/path/explain", graphHandler.ExplainPath)
			r.Post("/query", graphHandler.Query)
			r.Post("/search", graphHandler.Search)
			r.Get("/stats", graphHandler.Stats)
			r.Get("/metrics", graphHandler.GetMetrics)
			r.Post("/metrics", graphHandler.ComputeMetrics)
			r.With(middleware.RequireRole("admin", "editor")).
				Post("/merge", graphHandler.MergeNodes)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", snapshotHandler.CreateSnapshot)
			r.Get("/", snapshotHandler.ListSnapshots)
			r.Get("/{snapshotID}", snapshotHandler.GetSnapshot)
			r.Post("/{snapshotID}/regenerate", snapshotHandler.RegenerateSnapshot)
		})

		r.Get("/audit", auditHandler.ListAuditLog)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Post("/embeddings/backfill", auditHandler.BackfillEmbeddings)
		})
	})

	return router
}

// authenticator builds the JWT middleware. Development environments that
// never configured a secret get a fixed local one so the API stays usable.
func (rt *Router) authenticator() *middleware.Authenticator {
	secret := rt.cfg.Auth.JWTSecret
	if secret == "" {
		rt.logger.Warn("JWT secret not configured, using local development secret")
		secret = "local-development-secret"
	}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		Secret: secret,
		Issuer: rt.cfg.Auth.JWTIssuer,
	})
	if err != nil {
		// Unreachable with a non-empty secret.
		rt.logger.Fatal("Failed to build JWT validator", zap.Error(err))
	}
	return middleware.NewAuthenticator(validator, rt.limiter, rt.logger)
}

// healthCheck reports process liveness.
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports whether the API can take traffic.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
