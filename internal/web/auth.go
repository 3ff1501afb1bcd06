package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/store"
)

type loginPage struct {
	PageData
	Role       model.Role
	Identifier string
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "login.html", &loginPage{
		PageData: PageData{Title: "Entrar"},
		Role:     model.RoleOperator,
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	role, ok := model.ParseRole(r.FormValue("role"))
	identifier := r.FormValue("identifier")
	page := &loginPage{PageData: PageData{Title: "Entrar"}, Role: role, Identifier: identifier}

	if !ok || identifier == "" {
		page.Error = "Informe o perfil e a matrícula."
		s.Templates.Render(w, "login.html", page)
		return
	}

	user, err := auth.Authenticate(r.Context(), s.DB, role, identifier, r.FormValue("secret"))
	if errors.Is(err, model.ErrCredentials) {
		page.Error = "Credenciais inválidas."
		s.Templates.Render(w, "login.html", page)
		return
	}
	if err != nil {
		slog.Error("failed to authenticate", "error", err)
		page.Error = "Erro ao entrar. Tente novamente."
		s.Templates.Render(w, "login.html", page)
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, user)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		page.Error = "Erro ao entrar. Tente novamente."
		s.Templates.Render(w, "login.html", page)
		return
	}

	slog.Info("user logged in", "login", user.Login, "role", user.Role, "via", "web")
	setAuthCookie(w, token)
	http.Redirect(w, r, homeFor(user.Role), http.StatusSeeOther)
}

// Logout handles POST /logout. The token stays revoked until it would have
// expired anyway.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		if claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value); err == nil {
			expiresAt := time.Now().Add(auth.TokenExpiry)
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			if err := store.RevokeToken(r.Context(), s.DB, claims.ID, expiresAt); err != nil {
				slog.Error("failed to revoke token", "error", err)
			}
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Home handles GET / by sending each role to its own dashboard.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, homeFor(api.GetClaims(r.Context()).Role), http.StatusSeeOther)
}

func homeFor(role model.Role) string {
	if role == model.RoleSupervisor {
		return "/manutencao"
	}
	return "/operador"
}
