package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/isdelr/blog/internal/auth"
	"github.com/isdelr/blog/internal/services"
	"github.com/isdelr/blog/internal/web"
	"github.com/rs/zerolog/log"
)

// recentEventsLimit is how many audit entries the account page shows.
const recentEventsLimit = 20

// PageHandler serves the non-auth pages.
type PageHandler struct {
	events services.EventServiceProvider
	render Renderer
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(events services.EventServiceProvider, render Renderer) *PageHandler {
	return &PageHandler{events: events, render: render}
}

// Index renders the home page.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, web.PageIndex, nil)
}

// Account shows the logged-in user and their recent activity. It must be
// mounted behind auth.RequireLogin.
func (h *PageHandler) Account(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	events, err := h.events.GetRecentEventsForUser(r.Context(), user.ID, recentEventsLimit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to retrieve events")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render.Render(w, r, web.PageAccount, events)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness of the process and its database.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check answers 200 when the database responds and 503 otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
