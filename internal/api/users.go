package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/manutencao/internal/auth"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/store"
)

// UsersHandler handles user management endpoints (supervisors only).
type UsersHandler struct {
	DB *sql.DB
}

type createUserRequest struct {
	Login    string `json:"login"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
	Sector   string `json:"sector"`
	Machine  string `json:"machine"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users[?role=].
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	var role model.Role
	if q := r.URL.Query().Get("role"); q != "" {
		parsed, ok := model.ParseRole(q)
		if !ok {
			jsonError(w, http.StatusBadRequest, "invalid role")
			return
		}
		role = parsed
	}

	users, err := store.ListUsers(r.Context(), h.DB, role)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users. Supervisors need a password; operators
// sign in with their login alone.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Name == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "login, name, and role required")
		return
	}

	role, ok := model.ParseRole(req.Role)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	u := model.User{Login: req.Login, Name: req.Name, Role: role, Sector: req.Sector, Machine: req.Machine}
	if role.NeedsSecret() {
		if err := model.ValidatePassword(req.Password); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		u.PasswordHash = hash
	}

	user, err := store.CreateUser(r.Context(), h.DB, u)
	if err != nil {
		jsonError(w, http.StatusConflict, "login already exists")
		return
	}

	slog.Info("user created", "user", GetClaims(r.Context()).Login, "new_user", user.Login, "role", user.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if !target.Role.NeedsSecret() {
		jsonError(w, http.StatusBadRequest, "operators have no password")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	slog.Info("user password reset", "user", GetClaims(r.Context()).Login, "target_user", target.Login)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, _ := store.GetUser(r.Context(), h.DB, id)
	targetName := fmt.Sprintf("id:%d", id)
	if target != nil {
		targetName = target.Login
	}

	err = store.DeleteUser(r.Context(), h.DB, id)
	if errors.Is(err, model.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	slog.Info("user deleted", "user", claims.Login, "deleted_user", targetName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
