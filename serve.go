package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/blog/internal/api"
	"github.com/isdelr/blog/internal/auth"
	"github.com/isdelr/blog/internal/config"
	"github.com/isdelr/blog/internal/database"
	"github.com/isdelr/blog/internal/flash"
	"github.com/isdelr/blog/internal/logger"
	"github.com/isdelr/blog/internal/monitoring"
	"github.com/isdelr/blog/internal/services"
	"github.com/isdelr/blog/internal/session"
	"github.com/isdelr/blog/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFile)

	secret, err := sessionSecret(cfg)
	if err != nil {
		return err
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	store, closeStore, err := newSessionStore(cmd.Context(), cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	// Set up services
	userService := services.NewUserService(db)
	eventService := services.NewEventService(db)

	// Set up and run the expired session sweeper
	sweeper, err := monitoring.NewSweeper(store, cfg.SweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Users:          userService,
		Events:         eventService,
		Hasher:         auth.NewBcryptHasher(cfg.BcryptCost),
		Sessions:       session.NewManager(store, deriveKey(secret, "session"), cfg.SessionTTL, cfg.IsProduction()),
		Flashes:        flash.NewStore(deriveKey(secret, "flash"), cfg.IsProduction()),
		Renderer:       renderer,
		DB:             db,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("session_backend", cfg.SessionBackend).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// sessionSecret returns the configured secret. Outside production a random
// one is generated when none is set, which logs everyone out on restart.
func sessionSecret(cfg *config.Config) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("SESSION_SECRET is required in production")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	log.Warn().Msg("SESSION_SECRET not set, using a random secret for this process")
	return buf, nil
}

// deriveKey gives each cookie its own key so one cannot be replayed as
// the other.
func deriveKey(secret []byte, purpose string) []byte {
	h := sha256.New()
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write(secret)
	return h.Sum(nil)
}

// newSessionStore opens the configured session backend. The returned
// function releases it.
func newSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		store, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure redis session store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store, func() { store.Close() }, nil
	default:
		return session.NewSQLiteStore(db, cfg.SessionTTL), func() {}, nil
	}
}
