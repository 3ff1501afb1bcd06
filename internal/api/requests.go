package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/manutencao/internal/imaging"
	"github.com/erazemk/manutencao/internal/metrics"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/notify"
	"github.com/erazemk/manutencao/internal/store"
)

// publishTimeout bounds how long a status event may take to leave the server.
const publishTimeout = 5 * time.Second

// RequestsHandler handles maintenance request endpoints.
type RequestsHandler struct {
	DB     *sql.DB
	Events notify.Publisher
}

type createdResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// validationResponse carries the offending field next to the usual error message.
type validationResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func validationError(w http.ResponseWriter, err error) bool {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		jsonResponse(w, http.StatusBadRequest, validationResponse{Error: verr.Message, Field: verr.Field})
		return true
	}
	return false
}

// List handles GET /api/requests. Rows are returned as stored, newest first.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := store.ListRequestRows(r.Context(), h.DB, r.URL.Query().Get("requester"))
	if err != nil {
		slog.Error("failed to list requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	jsonResponse(w, http.StatusOK, wireRows(rows))
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	row, err := store.GetRequestRow(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get request", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get request")
		return
	}
	if row == nil {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	jsonResponse(w, http.StatusOK, wireRow(row))
}

// Create handles POST /api/requests. Operators always file under their own
// identity; supervisors may file on someone's behalf.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if err := decodeJSON(r, &draft); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if claims.Role == model.RoleOperator || draft.RequesterID == "" {
		draft.RequesterID = claims.Login
		draft.RequesterName = claims.Name
	}

	req, err := store.CreateRequest(r.Context(), h.DB, draft)
	if validationError(w, err) {
		return
	}
	if err != nil {
		slog.Error("failed to create request", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	metrics.RequestCreated()
	slog.Info("request created", "user", claims.Login, "request", req.ID,
		"machine", req.Machine, "priority", req.Priority)
	jsonResponse(w, http.StatusCreated, createdResponse{OK: true, ID: req.ID})
}

// Update handles PUT /api/requests/{id}.
func (h *RequestsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch model.Patch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := store.UpdateRequest(r.Context(), h.DB, id, patch)
	if validationError(w, err) {
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		slog.Error("failed to update request", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update request")
		return
	}

	claims := GetClaims(r.Context())
	if patch.Status != nil {
		slog.Info("request status changed", "user", claims.Login, "request", id, "status", *patch.Status)
		StatusChanged(r.Context(), h.DB, h.Events, id)
	}
	if patch.Notes != nil {
		slog.Info("request notes updated", "user", claims.Login, "request", id)
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// StatusChanged records a successful status change and publishes it in the
// background. Publishing failures are logged only.
func StatusChanged(ctx context.Context, db *sql.DB, events notify.Publisher, id string) {
	req, err := store.GetRequest(ctx, db, id)
	if err != nil || req == nil {
		slog.Warn("status changed on vanished request", "request", id, "error", err)
		return
	}
	metrics.StatusChanged(req.Status)

	if events == nil {
		return
	}
	ev := notify.EventFor(*req)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := events.PublishStatus(ctx, ev); err != nil {
			slog.Warn("failed to publish status event", "request", ev.ID, "error", err)
		}
	}()
}

// Delete handles DELETE /api/requests/{id}.
func (h *RequestsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := store.DeleteRequest(r.Context(), h.DB, id)
	if errors.Is(err, model.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete request", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete request")
		return
	}

	slog.Info("request deleted", "user", GetClaims(r.Context()).Login, "request", id)
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// UploadPhoto handles PUT /api/requests/{id}/photo.
func (h *RequestsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = store.SetRequestPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME)
	if errors.Is(err, model.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}
	if err != nil {
		slog.Error("failed to save photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	slog.Info("request photo uploaded", "user", GetClaims(r.Context()).Login, "request", id, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetPhoto handles GET /api/requests/{id}/photo.
func (h *RequestsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetRequestPhoto(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Write(data)
}
