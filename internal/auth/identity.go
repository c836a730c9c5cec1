package auth

import (
	"context"
	"net/http"

	"github.com/isdelr/blog/internal/models"
	"github.com/rs/zerolog/log"
)

// LoginPath is where unauthenticated visitors of protected pages are sent.
const LoginPath = "/auth/login"

type contextKey string

// UserKey is the context key for the request's resolved user.
const UserKey = contextKey("user")

// SessionReader resolves the user id bound to a request's session.
type SessionReader interface {
	UserID(r *http.Request) (int64, bool, error)
}

// UserFinder looks users up by id. A missing user is (nil, nil).
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// WithUser returns a copy of ctx carrying user (which may be nil).
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// CurrentUser returns the user resolved for this request, if any.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user, user != nil
}

// Preloader resolves the acting user once per request, before routing, and
// stores it in the request context. A session pointing at a deleted user
// reads as logged out. Store failures end the request with a 500.
func Preloader(sessions SessionReader, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user *models.User

			userID, ok, err := sessions.UserID(r)
			if err != nil {
				log.Error().Err(err).Msg("Failed to read session")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if ok {
				user, err = users.FindByID(r.Context(), userID)
				if err != nil {
					log.Error().Err(err).Int64("user_id", userID).Msg("Failed to load session user")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireLogin redirects requests without a resolved user to the login
// page; the wrapped handler only runs for logged-in users.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
