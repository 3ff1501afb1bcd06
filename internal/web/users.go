package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/store"
)

type usersPage struct {
	PageData
	Users []model.User
}

// UsersPage handles GET /usuarios (supervisor only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, "", userMessage(r.URL.Query().Get("msg")))
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	users, err := store.ListUsers(r.Context(), s.DB, "")
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	s.Templates.Render(w, "users.html", &usersPage{
		PageData: PageData{
			Title:   "Usuários",
			User:    api.GetClaims(r.Context()),
			Error:   errMsg,
			Success: success,
		},
		Users: users,
	})
}

func userMessage(code string) string {
	switch code {
	case "criado":
		return "Usuário criado."
	case "senha":
		return "Senha alterada."
	case "removido":
		return "Usuário removido."
	}
	return ""
}

// UserCreateSubmit handles POST /usuarios.
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	login := strings.TrimSpace(r.FormValue("login"))
	name := strings.TrimSpace(r.FormValue("name"))
	role, ok := model.ParseRole(r.FormValue("role"))
	if login == "" || name == "" || !ok {
		s.renderUsers(w, r, "Informe matrícula, nome e perfil.", "")
		return
	}

	u := model.User{
		Login:   login,
		Name:    name,
		Role:    role,
		Sector:  strings.TrimSpace(r.FormValue("sector")),
		Machine: strings.TrimSpace(r.FormValue("machine")),
	}
	if role.NeedsSecret() {
		password := r.FormValue("password")
		if err := model.ValidatePassword(password); err != nil {
			s.renderUsers(w, r, "A senha do encarregado deve ter pelo menos 8 caracteres.", "")
			return
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			http.Error(w, "failed to hash password", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = hash
	}

	if _, err := store.CreateUser(r.Context(), s.DB, u); err != nil {
		slog.Warn("failed to create user", "login", login, "error", err)
		s.renderUsers(w, r, "Já existe um usuário com esta matrícula.", "")
		return
	}

	slog.Info("user created", "user", api.GetClaims(r.Context()).Login, "new_user", login, "role", role, "via", "web")
	http.Redirect(w, r, "/usuarios?msg=criado", http.StatusSeeOther)
}

// UserResetPasswordSubmit handles POST /usuarios/{id}/senha.
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/usuarios", http.StatusSeeOther)
		return
	}

	password := r.FormValue("new_password")
	if err := model.ValidatePassword(password); err != nil {
		s.renderUsers(w, r, "A senha deve ter pelo menos 8 caracteres.", "")
		return
	}

	target, err := store.GetUser(r.Context(), s.DB, id)
	if err != nil || target == nil || !target.Role.NeedsSecret() {
		s.renderUsers(w, r, "Somente encarregados têm senha.", "")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := store.UpdateUserPassword(r.Context(), s.DB, id, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("user password reset", "user", api.GetClaims(r.Context()).Login, "target_user", target.Login, "via", "web")
	http.Redirect(w, r, "/usuarios?msg=senha", http.StatusSeeOther)
}

// UserDeleteSubmit handles POST /usuarios/{id}/remover.
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/usuarios", http.StatusSeeOther)
		return
	}

	claims := api.GetClaims(r.Context())
	if claims.UserID == id {
		s.renderUsers(w, r, "Você não pode remover a si mesmo.", "")
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, id); err != nil {
		slog.Warn("failed to delete user", "id", id, "error", err)
		s.renderUsers(w, r, "Usuário não encontrado.", "")
		return
	}

	slog.Info("user deleted", "user", claims.Login, "target_id", id, "via", "web")
	http.Redirect(w, r, "/usuarios?msg=removido", http.StatusSeeOther)
}
