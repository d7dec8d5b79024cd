package rest

import (
	"net/http"
	"strings"

	"relmap/application/ports"
	"relmap/interfaces/http/rest/handlers"
	"relmap/interfaces/http/rest/middleware"
	"relmap/pkg/auth"
	pkgerrors "relmap/pkg/errors"
	"relmap/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Options configure the HTTP surface
type Options struct {
	EnableCORS         bool
	AllowedOrigins     []string
	RateLimitPerMinute int

	// MetricsHandler is mounted on /metrics when set
	MetricsHandler http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	sessions     handlers.Sessions
	inbox        handlers.Inbox
	store        handlers.Pinger
	identity     ports.IdentityProvider
	limiter      *auth.RateLimiter
	metrics      ports.Metrics
	tracer       *observability.Tracer
	errorHandler *pkgerrors.ErrorHandler
	options      Options
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	sessions handlers.Sessions,
	inbox handlers.Inbox,
	store handlers.Pinger,
	identity ports.IdentityProvider,
	limiter *auth.RateLimiter,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	errorHandler *pkgerrors.ErrorHandler,
	options Options,
	logger *zap.Logger,
) *Router {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	if limiter == nil {
		limiter = auth.NewRateLimiter(options.RateLimitPerMinute)
	}
	return &Router{
		sessions:     sessions,
		inbox:        inbox,
		store:        store,
		identity:     identity,
		limiter:      limiter,
		metrics:      metrics,
		tracer:       tracer,
		errorHandler: errorHandler,
		options:      options,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger, rt.metrics))
	if rt.tracer != nil && rt.tracer.Enabled() {
		router.Use(rt.tracer.Middleware)
	}
	router.Use(versionMiddleware)

	if rt.options.EnableCORS {
		origins := rt.options.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	health := handlers.NewHealthHandler(rt.store, rt.logger)
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)
	if rt.options.MetricsHandler != nil {
		router.Handle("/metrics", rt.options.MetricsHandler)
	}

	// API v1 routes (legacy - redirects to v2)
	router.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, strings.Replace(req.URL.Path, "/api/v1", "/api/v2", 1), http.StatusPermanentRedirect)
		})
	})

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.identity, rt.errorHandler, rt.logger))
		r.Use(middleware.RateLimit(rt.limiter, rt.options.RateLimitPerMinute, rt.errorHandler))

		persons := handlers.NewPersonHandler(rt.sessions, rt.errorHandler, rt.logger)
		r.Route("/persons", func(r chi.Router) {
			r.Post("/", persons.CreatePerson)
			r.Get("/{personID}", persons.GetPerson)
			r.Put("/{personID}", persons.UpdatePerson)
			r.Delete("/{personID}", persons.DeletePerson)
			r.Put("/{personID}/position", persons.MovePerson)
		})

		relations := handlers.NewRelationHandler(rt.sessions, rt.errorHandler, rt.logger)
		r.Route("/relations", func(r chi.Router) {
			r.Post("/", relations.CreateRelation)
			r.Get("/{relationID}", relations.GetRelation)
			r.Patch("/{relationID}", relations.UpdateRelation)
			r.Delete("/{relationID}", relations.DeleteRelation)
		})

		interaction := handlers.NewInteractionHandler(rt.sessions, rt.errorHandler, rt.logger)
		r.Route("/interaction", func(r chi.Router) {
			r.Get("/", interaction.State)
			r.Post("/connect", interaction.Connect)
			r.Post("/proximity", interaction.ChooseProximity)
			r.Post("/cancel", interaction.Cancel)
			r.Post("/nodes/{personID}/click", interaction.NodeClicked)
			r.Post("/nodes/{personID}/drag", interaction.NodeDragEnded)
			r.Post("/edges/{relationID}/click", interaction.EdgeClicked)
		})

		graph := handlers.NewGraphHandler(rt.sessions, rt.tracer, rt.errorHandler, rt.logger)
		r.Get("/graph", graph.GetGraph)
		r.Post("/graph/reload", graph.Reload)
		r.Get("/export", graph.Export)
		r.Post("/import", graph.Import)
		r.Post("/reset", graph.Reset)

		r.Get("/notifications", handlers.NewNotificationHandler(rt.inbox, rt.errorHandler).List)
	})

	return router
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v2"
		if strings.HasPrefix(r.URL.Path, "/api/v1") {
			version = "v1"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")
		if version == "v1" {
			w.Header().Set("X-API-Deprecated", "true")
		}

		next.ServeHTTP(w, r)
	})
}
