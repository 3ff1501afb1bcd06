package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
	webembed "github.com/erazemk/manutencao/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"roleName":     model.Role.Label,
		"statusName":   model.Status.Label,
		"priorityName": model.Priority.Label,
		"serviceName":  model.ServiceType.Label,
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(loc).Format("02/01/2006 15:04")
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(loc).Format("2006-01-02")
		},
		"contains": func(set any, v string) bool {
			switch set := set.(type) {
			case []string:
				return containsValue(set, v)
			case []model.Status:
				return containsValue(set, v)
			case []model.Priority:
				return containsValue(set, v)
			case []model.ServiceType:
				return containsValue(set, v)
			}
			return false
		},
	}
}

func containsValue[T ~string](set []T, v string) bool {
	return slices.Contains(set, T(v))
}

// LoadTemplates parses all page templates with the layout. Times are shown in loc.
func LoadTemplates(loc *time.Location) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"operator.html",
		"maintenance.html",
		"request_detail.html",
		"users.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap(loc))
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates. A positive Refresh
// makes the page reload itself every Refresh seconds.
type PageData struct {
	Title   string
	User    *auth.Claims
	Refresh int
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	JWTSecret string
	Events    notify.Publisher
	Location  *time.Location
}
