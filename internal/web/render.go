// Package web renders the HTML pages of the blog.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/isdelr/blog/internal/auth"
	"github.com/isdelr/blog/internal/flash"
	"github.com/isdelr/blog/internal/models"
	"github.com/rs/zerolog/log"
)

//go:embed templates
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageIndex    = "index.html"
	PageAccount  = "account.html"
	PageLogin    = "auth/login.html"
	PageRegister = "auth/register.html"
)

var pages = []string{PageIndex, PageAccount, PageLogin, PageRegister}

// PageData is what every template receives.
type PageData struct {
	User    *models.User
	Flashes []string
	Data    any
}

// Renderer holds one parsed template set per page, each layered on the
// shared base layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	rd := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		rd.pages[name] = t
	}
	return rd, nil
}

// Render writes page name with status 200. The current user and pending
// flash messages are filled in from the request context.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, ok := rd.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("Unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	user, _ := auth.CurrentUser(r.Context())
	page := PageData{
		User:    user,
		Flashes: flash.Pop(r.Context()),
		Data:    data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", page); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
