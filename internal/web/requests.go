package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/imaging"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/store"
)

type requestDetailPage struct {
	PageData
	Request  *model.Request
	HasPhoto bool
	Statuses []model.Status
	Back     string
}

// RequestDetailPage handles GET /solicitacoes/{id}. Operators only see their
// own requests.
func (s *Server) RequestDetailPage(w http.ResponseWriter, r *http.Request) {
	claims := api.GetClaims(r.Context())
	req, ok := s.visibleRequest(w, r)
	if !ok {
		return
	}

	photo, _, err := store.GetRequestPhoto(r.Context(), s.DB, req.ID)
	if err != nil {
		slog.Error("failed to get request photo", "request", req.ID, "error", err)
	}

	page := &requestDetailPage{
		PageData: PageData{Title: "Solicitação " + req.Machine, User: claims},
		Request:  req,
		HasPhoto: photo != nil,
		Statuses: model.Statuses,
		Back:     r.URL.RequestURI(),
	}
	switch r.URL.Query().Get("msg") {
	case "notas":
		page.Success = "Observações salvas."
	case "foto":
		page.Success = "Foto enviada."
	case "foto-invalida":
		page.Error = "A foto deve ser JPEG, PNG ou GIF."
	}
	s.Templates.Render(w, "request_detail.html", page)
}

// NotesSubmit handles POST /solicitacoes/{id}/notas (supervisor only).
func (s *Server) NotesSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	notes := r.FormValue("notes")

	err := store.UpdateRequest(r.Context(), s.DB, id, model.Patch{Notes: &notes})
	if errors.Is(err, model.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to update request notes", "request", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("request notes updated", "user", api.GetClaims(r.Context()).Login, "request", id, "via", "web")
	http.Redirect(w, r, "/solicitacoes/"+id+"?msg=notas", http.StatusSeeOther)
}

// PhotoSubmit handles POST /solicitacoes/{id}/foto.
func (s *Server) PhotoSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.visibleRequest(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	file, _, err := r.FormFile("photo")
	if err != nil {
		http.Redirect(w, r, "/solicitacoes/"+req.ID+"?msg=foto-invalida", http.StatusSeeOther)
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file)
	if err != nil {
		slog.Warn("rejected request photo", "request", req.ID, "error", err)
		http.Redirect(w, r, "/solicitacoes/"+req.ID+"?msg=foto-invalida", http.StatusSeeOther)
		return
	}

	if err := store.SetRequestPhoto(r.Context(), s.DB, req.ID, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to store request photo", "request", req.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("request photo uploaded", "user", api.GetClaims(r.Context()).Login, "request", req.ID,
		"width", photo.Width, "height", photo.Height)
	http.Redirect(w, r, "/solicitacoes/"+req.ID+"?msg=foto", http.StatusSeeOther)
}

// PhotoGet handles GET /solicitacoes/{id}/foto.
func (s *Server) PhotoGet(w http.ResponseWriter, r *http.Request) {
	req, ok := s.visibleRequest(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetRequestPhoto(r.Context(), s.DB, req.ID)
	if err != nil {
		slog.Error("failed to get request photo", "request", req.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write photo response", "error", err)
	}
}

// visibleRequest loads the request named in the path, writing 404 when it is
// missing or belongs to another operator.
func (s *Server) visibleRequest(w http.ResponseWriter, r *http.Request) (*model.Request, bool) {
	claims := api.GetClaims(r.Context())
	req, err := store.GetRequest(r.Context(), s.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if req == nil || (claims.Role == model.RoleOperator && req.RequesterID != claims.Login) {
		http.NotFound(w, r)
		return nil, false
	}
	return req, true
}
