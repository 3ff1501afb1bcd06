package web

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/erazemk/manutencao/internal/api"
	"github.com/erazemk/manutencao/internal/filter"
	"github.com/erazemk/manutencao/internal/metrics"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
	"github.com/erazemk/manutencao/internal/store"
)

type operatorPage struct {
	PageData
	Draft         model.Draft
	Requests      []model.Request
	Total         int
	Completed     []model.Request
	Priorities    []model.Priority
	ServiceTypes  []model.ServiceType
	Criteria      filter.Criteria
	Options       filter.Options
	ActiveFilters int
	StatusChips   []statusChip
}

// statusChip is a one-click status filter on the operator history. Href
// toggles Status in the current query.
type statusChip struct {
	Status model.Status
	Active bool
	Href   string
}

// OperatorPage handles GET /operador: the submission form and the operator's
// own history, newest first, narrowed by the filter form in the query string.
// The history is already one requester's, so there is no requester filter.
func (s *Server) OperatorPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.operatorPage(r)
	if err != nil {
		slog.Error("failed to load operator page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if r.URL.Query().Has("enviado") {
		page.Success = "Solicitação enviada com sucesso!"
	}
	s.Templates.Render(w, "operator.html", page)
}

// OperatorSubmit handles POST /operador/solicitacoes.
func (s *Server) OperatorSubmit(w http.ResponseWriter, r *http.Request) {
	claims := api.GetClaims(r.Context())
	draft := model.Draft{
		RequesterID:    claims.Login,
		RequesterName:  claims.Name,
		Sector:         r.FormValue("sector"),
		Machine:        r.FormValue("machine"),
		Description:    r.FormValue("description"),
		Priority:       model.ParsePriority(r.FormValue("priority")),
		ServiceType:    model.ParseServiceType(r.FormValue("service")),
		CreatedViaScan: r.FormValue("scan") != "",
	}

	req, err := store.CreateRequest(r.Context(), s.DB, draft)
	if errors.Is(err, model.ErrValidation) {
		page, loadErr := s.operatorPage(r)
		if loadErr != nil {
			slog.Error("failed to load operator page", "error", loadErr)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		page.Draft = draft
		page.Error = "Preencha todos os campos obrigatórios."
		s.Templates.Render(w, "operator.html", page)
		return
	}
	if err != nil {
		slog.Error("failed to create request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	metrics.RequestCreated()
	slog.Info("request created", "user", claims.Login, "request", req.ID,
		"machine", req.Machine, "priority", req.Priority, "via", "web")
	http.Redirect(w, r, "/operador?enviado=1", http.StatusSeeOther)
}

func (s *Server) operatorPage(r *http.Request) (*operatorPage, error) {
	claims := api.GetClaims(r.Context())

	viewer := model.User{ID: claims.UserID, Login: claims.Login, Name: claims.Name, Role: claims.Role}
	if u, err := store.GetUser(r.Context(), s.DB, claims.UserID); err != nil {
		return nil, err
	} else if u != nil {
		viewer = *u
	}

	own, err := store.ListRequests(r.Context(), s.DB, claims.Login)
	if err != nil {
		return nil, err
	}

	criteria := filter.ParseQuery(r.URL.Query(), s.Location)
	criteria.Requesters = nil

	return &operatorPage{
		PageData: PageData{
			Title:   "Abrir solicitação",
			User:    claims,
			Refresh: int(session.OperatorInterval.Seconds()),
		},
		Draft:         session.DefaultDraft(viewer),
		Requests:      filter.Apply(own, criteria, false),
		Total:         len(own),
		Completed:     filter.Apply(own, filter.Criteria{Statuses: []model.Status{model.StatusDone}}, false),
		Priorities:    model.Priorities,
		ServiceTypes:  model.ServiceTypes,
		Criteria:      criteria,
		Options:       filter.OptionsFor(own),
		ActiveFilters: criteria.ActiveCount(false),
		StatusChips:   statusChips(criteria),
	}, nil
}

func statusChips(c filter.Criteria) []statusChip {
	chips := make([]statusChip, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		next := c
		next.Statuses = filter.Toggle(c.Statuses, st)
		href := "/operador"
		if q := next.Query().Encode(); q != "" {
			href += "?" + q
		}
		chips = append(chips, statusChip{
			Status: st,
			Active: slices.Contains(c.Statuses, st),
			Href:   href,
		})
	}
	return chips
}
