package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
)

// NewRouter creates the API router with all endpoints registered. A nil
// events publisher drops status events.
func NewRouter(db *sql.DB, jwtSecret string, events notify.Publisher) http.Handler {
	if events == nil {
		events = notify.Nop{}
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	requestsHandler := &RequestsHandler{DB: db, Events: events}
	usersHandler := &UsersHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireSupervisor := RequireRole(model.RoleSupervisor)

	// Public.
	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Session.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(requireSupervisor(http.HandlerFunc(authHandler.ChangePassword))))

	// Requests: read and file (all roles), change and delete (supervisor).
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("GET /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Get)))
	mux.Handle("PUT /api/requests/{id}", authMW(requireSupervisor(http.HandlerFunc(requestsHandler.Update))))
	mux.Handle("DELETE /api/requests/{id}", authMW(requireSupervisor(http.HandlerFunc(requestsHandler.Delete))))
	mux.Handle("PUT /api/requests/{id}/photo", authMW(http.HandlerFunc(requestsHandler.UploadPhoto)))
	mux.Handle("GET /api/requests/{id}/photo", authMW(http.HandlerFunc(requestsHandler.GetPhoto)))

	// Users (supervisor only).
	mux.Handle("GET /api/users", authMW(requireSupervisor(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireSupervisor(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireSupervisor(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireSupervisor(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
