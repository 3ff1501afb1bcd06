package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
	webembed "github.com/erazemk/manutencao/web"
)

// NewRouter creates the web page router with all page routes registered.
// Dates typed into the filter form are read in loc.
func NewRouter(db *sql.DB, jwtSecret string, events notify.Publisher, loc *time.Location) (http.Handler, error) {
	if loc == nil {
		loc = time.Local
	}
	if events == nil {
		events = notify.Nop{}
	}

	templates, err := LoadTemplates(loc)
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Templates: templates,
		JWTSecret: jwtSecret,
		Events:    events,
		Location:  loc,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)
	operator := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(requireRole(model.RoleOperator)(h))
	}
	supervisor := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(requireRole(model.RoleSupervisor)(h))
	}

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Home)))

	mux.Handle("GET /operador", operator(s.OperatorPage))
	mux.Handle("POST /operador/solicitacoes", operator(s.OperatorSubmit))

	mux.Handle("GET /manutencao", supervisor(s.MaintenancePage))
	mux.Handle("POST /solicitacoes/{id}/status", supervisor(s.StatusSubmit))
	mux.Handle("POST /solicitacoes/{id}/notas", supervisor(s.NotesSubmit))

	mux.Handle("GET /solicitacoes/{id}", cookieAuth(http.HandlerFunc(s.RequestDetailPage)))
	mux.Handle("GET /solicitacoes/{id}/foto", cookieAuth(http.HandlerFunc(s.PhotoGet)))
	mux.Handle("POST /solicitacoes/{id}/foto", cookieAuth(http.HandlerFunc(s.PhotoSubmit)))

	mux.Handle("GET /usuarios", supervisor(s.UsersPage))
	mux.Handle("POST /usuarios", supervisor(s.UserCreateSubmit))
	mux.Handle("POST /usuarios/{id}/senha", supervisor(s.UserResetPasswordSubmit))
	mux.Handle("POST /usuarios/{id}/remover", supervisor(s.UserDeleteSubmit))

	return mux, nil
}
