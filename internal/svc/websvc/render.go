package websvc

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/mkrupp/webauth/internal/domain"
)

//go:embed views/*.html
var viewsFS embed.FS

// ViewData is the payload handed to the render boundary: sticky form values,
// a user-facing error message, the resolved account (if any), and a consumed
// flash. Handlers emit this payload, never markup.
type ViewData struct {
	Values map[string]string
	Error  string
	User   *domain.Account
	Flash  *domain.Flash
}

// Renderer executes the embedded HTML views.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded views.
// Returns an error if any view fails to parse.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named view with the given data and writes it with the
// given status code. The view is rendered to a buffer first so a template
// fault never produces a half-written page.
func (rn *Renderer) Render(w http.ResponseWriter, status int, view string, data ViewData) error {
	var buf bytes.Buffer

	if err := rn.tmpl.ExecuteTemplate(&buf, view+".html", data); err != nil {
		return fmt.Errorf("execute view: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write view: %w", err)
	}

	return nil
}
