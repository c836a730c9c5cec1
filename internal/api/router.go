package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/blog/internal/api/handlers"
	"github.com/isdelr/blog/internal/auth"
	"github.com/isdelr/blog/internal/flash"
	"github.com/isdelr/blog/internal/metrics"
	"github.com/isdelr/blog/internal/services"
	"github.com/isdelr/blog/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Users          services.UserServiceProvider
	Events         services.EventServiceProvider
	Hasher         auth.Hasher
	Sessions       *session.Manager
	Flashes        *flash.Store
	Renderer       handlers.Renderer
	DB             handlers.Pinger
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	r.Use(deps.Flashes.Middleware)
	// Identity is resolved once per request, before any handler runs.
	r.Use(auth.Preloader(deps.Sessions, deps.Users))

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Events, deps.Hasher, deps.Sessions, deps.Renderer)
	pageHandler := handlers.NewPageHandler(deps.Events, deps.Renderer)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Get(handlers.HomePath, pageHandler.Index)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/register", authHandler.RegisterForm)
		r.Post("/register", authHandler.Register)
		r.Get("/login", authHandler.LoginForm)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
	})

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin)
		r.Get("/account", pageHandler.Account)
	})

	r.Get("/healthz", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// logRequest writes one access log line per request.
func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", size).
		Dur("duration", duration).
		Msg("HTTP request")
}
