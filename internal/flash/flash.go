// Package flash implements one-shot user notices.
//
// Messages queued with Add during a request are either drained by Pop (when
// the page that shows them is rendered in the same response) or persisted in
// a signed cookie and shown on the client's next rendered page.
package flash

import (
	"context"
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieName is the name of the cookie carrying pending messages.
const CookieName = "flash"

type contextKey string

const boxKey = contextKey("flashBox")

type box struct {
	messages []string
	incoming bool // the request carried a flash cookie
}

// Store signs and verifies the flash cookie.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewStore creates a Store. hashKey authenticates the cookie.
func NewStore(hashKey []byte, secure bool) *Store {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(0) // lifetime bounded by the browser session
	return &Store{codec: codec, secure: secure}
}

// Middleware loads pending messages into the request context and writes
// whatever is left back to the client before the response header goes out.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := &box{}
		if c, err := r.Cookie(CookieName); err == nil {
			b.incoming = true
			var msgs []string
			// A forged or stale cookie just yields no messages.
			if err := s.codec.Decode(CookieName, c.Value, &msgs); err == nil {
				b.messages = msgs
			}
		}

		fw := &writer{ResponseWriter: w, store: s, box: b}
		next.ServeHTTP(fw, r.WithContext(context.WithValue(r.Context(), boxKey, b)))
		if !fw.committed {
			fw.commit()
		}
	})
}

// Add queues a message for display.
func Add(ctx context.Context, message string) {
	if b, ok := ctx.Value(boxKey).(*box); ok {
		b.messages = append(b.messages, message)
	}
}

// Pop returns all pending messages and marks them as shown.
func Pop(ctx context.Context) []string {
	b, ok := ctx.Value(boxKey).(*box)
	if !ok {
		return nil
	}
	msgs := b.messages
	b.messages = nil
	return msgs
}

func (s *Store) save(w http.ResponseWriter, b *box) {
	if len(b.messages) > 0 {
		encoded, err := s.codec.Encode(CookieName, b.messages)
		if err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    encoded,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
			return
		}
	}
	if b.incoming {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// writer persists the box the first time the header is written.
type writer struct {
	http.ResponseWriter
	store     *Store
	box       *box
	committed bool
}

func (w *writer) commit() {
	w.committed = true
	w.store.save(w.ResponseWriter, w.box)
}

func (w *writer) WriteHeader(code int) {
	if !w.committed {
		w.commit()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *writer) Write(p []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
