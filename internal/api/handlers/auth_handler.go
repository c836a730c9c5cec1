package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/isdelr/blog/internal/auth"
	"github.com/isdelr/blog/internal/flash"
	"github.com/isdelr/blog/internal/metrics"
	"github.com/isdelr/blog/internal/models"
	"github.com/isdelr/blog/internal/services"
	"github.com/isdelr/blog/internal/web"
	"github.com/rs/zerolog/log"
)

// Route paths used for redirects.
const (
	HomePath     = "/"
	RegisterPath = "/auth/register"
	LoginPath    = auth.LoginPath
	LogoutPath   = "/auth/logout"
)

// Renderer writes a named page.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, name string, data any)
}

// SessionBinder binds and unbinds the client's session.
type SessionBinder interface {
	SetUser(w http.ResponseWriter, r *http.Request, userID int64) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	users    services.UserServiceProvider
	events   services.EventServiceProvider
	hasher   auth.Hasher
	sessions SessionBinder
	render   Renderer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users services.UserServiceProvider, events services.EventServiceProvider, hasher auth.Hasher, sessions SessionBinder, render Renderer) *AuthHandler {
	return &AuthHandler{
		users:    users,
		events:   events,
		hasher:   hasher,
		sessions: sessions,
		render:   render,
	}
}

// RegisterForm renders the empty registration form.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, web.PageRegister, nil)
}

// Register handles a submitted registration form.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	creds := auth.Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}

	msg := auth.ValidateRegistration(creds)
	if msg != "" {
		metrics.Registrations.WithLabelValues(metrics.ResultInvalid).Inc()
		h.fail(w, r, web.PageRegister, msg)
		return
	}

	hash, err := h.hasher.Hash(creds.Password)
	if err != nil {
		h.internalError(w, err, "Failed to hash password", creds.Username)
		metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return
	}

	id, err := h.users.CreateUser(r.Context(), creds.Username, hash)
	if errors.Is(err, services.ErrDuplicateUsername) {
		metrics.Registrations.WithLabelValues(metrics.ResultDuplicate).Inc()
		h.fail(w, r, web.PageRegister, fmt.Sprintf("User %s is already registered.", creds.Username))
		return
	}
	if err != nil {
		h.internalError(w, err, "Failed to register user", creds.Username)
		metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return
	}

	metrics.Registrations.WithLabelValues(metrics.ResultSuccess).Inc()
	h.record(r, models.EventRegister, models.LevelInfo, "Account registered", &id)
	log.Info().Int64("user_id", id).Str("username", creds.Username).Msg("User registered")
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// LoginForm renders the empty login form.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, web.PageLogin, nil)
}

// Login handles a submitted login form. Unknown usernames and wrong
// passwords get distinct messages.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	user, err := h.users.FindByUsername(r.Context(), username)
	if err != nil {
		h.internalError(w, err, "Failed to look up user", username)
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	if user == nil {
		log.Warn().Str("username", username).Msg("Login with unknown username")
		metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
		h.fail(w, r, web.PageLogin, "Incorrect username")
		return
	}
	if !h.hasher.Verify(user.PasswordHash, password) {
		log.Warn().Int64("user_id", user.ID).Msg("Login with incorrect password")
		metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
		h.record(r, models.EventLoginFail, models.LevelWarn, "Failed login attempt", &user.ID)
		h.fail(w, r, web.PageLogin, "Incorrect password")
		return
	}

	if err := h.sessions.Clear(w, r); err != nil {
		h.internalError(w, err, "Failed to clear session", username)
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return
	}
	if err := h.sessions.SetUser(w, r, user.ID); err != nil {
		h.internalError(w, err, "Failed to start session", username)
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return
	}

	metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
	h.record(r, models.EventLogin, models.LevelInfo, "Logged in", &user.ID)
	http.Redirect(w, r, HomePath, http.StatusFound)
}

// Logout ends the client's session, if any, and redirects home.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(w, r); err != nil {
		log.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	metrics.Logouts.Inc()
	if user, ok := auth.CurrentUser(r.Context()); ok {
		h.record(r, models.EventLogout, models.LevelInfo, "Logged out", &user.ID)
	}
	http.Redirect(w, r, HomePath, http.StatusFound)
}

// fail shows msg once and re-renders the form.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, page, msg string) {
	flash.Add(r.Context(), msg)
	h.render.Render(w, r, page, nil)
}

func (h *AuthHandler) internalError(w http.ResponseWriter, err error, msg, username string) {
	log.Error().Err(err).Str("username", username).Msg(msg)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// record writes to the audit log. A failure here never fails the request.
func (h *AuthHandler) record(r *http.Request, eventType, level, message string, userID *int64) {
	if err := h.events.CreateEvent(r.Context(), eventType, level, message, userID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record auth event")
	}
}
