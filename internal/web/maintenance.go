package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/filter"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
	"github.com/erazemk/manutencao/internal/store"
)

type statusCount struct {
	Status model.Status
	Count  int
}

type maintenancePage struct {
	PageData
	Requests      []model.Request
	Total         int
	Counts        []statusCount
	Criteria      filter.Criteria
	Options       filter.Options
	ActiveFilters int
	Query         string
	Statuses      []model.Status
	Priorities    []model.Priority
}

// MaintenancePage handles GET /manutencao: every request, narrowed by the
// filter form in the query string. Tallies and option lists always come from
// the unfiltered list.
func (s *Server) MaintenancePage(w http.ResponseWriter, r *http.Request) {
	all, err := store.ListRequests(r.Context(), s.DB, "")
	if err != nil {
		slog.Error("failed to list requests", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	criteria := filter.ParseQuery(r.URL.Query(), s.Location)
	tally := filter.StatusCounts(all)
	counts := make([]statusCount, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		counts = append(counts, statusCount{Status: st, Count: tally[st]})
	}

	page := &maintenancePage{
		PageData: PageData{
			Title:   "Painel de manutenção",
			User:    api.GetClaims(r.Context()),
			Refresh: int(session.SupervisorInterval.Seconds()),
		},
		Requests:      filter.Apply(all, criteria, true),
		Total:         len(all),
		Counts:        counts,
		Criteria:      criteria,
		Options:       filter.OptionsFor(all),
		ActiveFilters: criteria.ActiveCount(true),
		Query:         criteria.Query().Encode(),
		Statuses:      model.Statuses,
		Priorities:    model.Priorities,
	}
	if r.URL.Query().Get("erro") != "" {
		page.Error = "Erro ao atualizar status. Tente novamente."
	}
	s.Templates.Render(w, "maintenance.html", page)
}

// StatusSubmit handles POST /solicitacoes/{id}/status. The form carries the
// dashboard's filter query so the redirect lands on the same view.
func (s *Server) StatusSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	back := backTo(r.FormValue("back"))

	status := model.Status(r.FormValue("status"))
	err := store.UpdateRequest(r.Context(), s.DB, id, model.Patch{Status: &status})
	switch {
	case errors.Is(err, model.ErrValidation):
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	case errors.Is(err, model.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		slog.Error("failed to update request status", "request", id, "error", err)
		http.Redirect(w, r, withParam(back, "erro", "1"), http.StatusSeeOther)
		return
	}

	slog.Info("request status changed", "user", api.GetClaims(r.Context()).Login,
		"request", id, "status", status, "via", "web")
	api.StatusChanged(r.Context(), s.DB, s.Events, id)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// backTo only follows local dashboard paths.
func backTo(target string) string {
	if strings.HasPrefix(target, "/manutencao") || strings.HasPrefix(target, "/solicitacoes/") {
		return target
	}
	return "/manutencao"
}

func withParam(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
