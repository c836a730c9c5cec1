package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// Manager carries session tokens between a Store and the client. The cookie
// holds an HS256 JWT whose ID claim is the token, so a tampered or expired
// cookie is rejected before the store is consulted.
type Manager struct {
	store  Store
	key    []byte
	ttl    time.Duration
	secure bool
}

// NewManager creates a Manager. secret signs the cookie envelope; secure
// marks the cookie Secure (HTTPS only).
func NewManager(store Store, secret []byte, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, key: secret, ttl: ttl, secure: secure}
}

// SetUser issues a fresh session bound to userID and sends it to the client.
func (m *Manager) SetUser(w http.ResponseWriter, r *http.Request, userID int64) error {
	token, err := m.store.Issue(r.Context(), userID)
	if err != nil {
		return err
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		ID:        token,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return fmt.Errorf("failed to sign session cookie: %w", err)
	}

	m.setCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear revokes the session presented by the request, if any, and tells the
// client to drop its cookie. Calling it without a session is a no-op apart
// from the cookie removal.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	if token, ok := m.token(r); ok {
		if err := m.store.Revoke(r.Context(), token); err != nil {
			return err
		}
	}
	m.setCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// UserID returns the user bound to the request's session. ok is false when
// there is no valid session; err is reserved for store failures.
func (m *Manager) UserID(r *http.Request) (userID int64, ok bool, err error) {
	token, ok := m.token(r)
	if !ok {
		return 0, false, nil
	}
	return m.store.Validate(r.Context(), token)
}

// token extracts the session token from a correctly signed, unexpired cookie.
func (m *Manager) token(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}

// setCookie replaces any session cookie already queued on w, so a Clear
// followed by SetUser in one response sends a single Set-Cookie.
func (m *Manager) setCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, CookieName+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}
