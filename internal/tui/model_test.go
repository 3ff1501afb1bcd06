package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
)

var start = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

var (
	supervisor = model.User{ID: 1, Login: "enc01", Name: "Marta", Role: model.RoleSupervisor}
	operator   = model.User{ID: 2, Login: "op7", Name: "Rui", Role: model.RoleOperator, Sector: "Estamparia", Machine: "Prensa 3"}
)

// fakeStore keeps requests in memory and records what the dashboard sends.
type fakeStore struct {
	mu        sync.Mutex
	reqs      []model.Request
	drafts    []model.Draft
	updateErr error
}

func (s *fakeStore) List(context.Context) []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reqs)
}

func (s *fakeStore) Create(_ context.Context, d model.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, d)
	id := "new-" + d.Machine
	s.reqs = append([]model.Request{{
		ID: id, RequesterID: d.RequesterID, RequesterName: d.RequesterName, Machine: d.Machine,
		Sector: d.Sector, Description: d.Description, Status: model.StatusPending,
		Priority: d.Priority, ServiceType: d.ServiceType, CreatedAt: start.Add(time.Hour),
	}}, s.reqs...)
	return id, nil
}

func (s *fakeStore) Update(_ context.Context, id string, p model.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.reqs {
		if s.reqs[i].ID == id && p.Status != nil {
			s.reqs[i].Status = *p.Status
		}
	}
	return nil
}

func fixture() []model.Request {
	req := func(id, requester, name, sector, machine string, age time.Duration) model.Request {
		return model.Request{
			ID: id, RequesterID: requester, RequesterName: name, Sector: sector, Machine: machine,
			Description: "falha em " + machine, Status: model.StatusPending,
			Priority: model.PriorityB, ServiceType: model.ServiceMechanical, CreatedAt: start.Add(-age),
		}
	}
	return []model.Request{
		req("r1", "op7", "Rui", "Estamparia", "Prensa 3", time.Hour),
		req("r2", "op8", "Ana", "Pintura", "Cabine 1", 2*time.Hour),
		req("r3", "op7", "Rui", "Estamparia", "Prensa 4", 3*time.Hour),
	}
}

type harness struct {
	t      *testing.T
	store  *fakeStore
	clock  *clockwork.FakeClock
	bridge *Bridge
	sess   *session.Session
	model  Model
}

func newHarness(t *testing.T, viewer model.User) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		store:  &fakeStore{reqs: fixture()},
		clock:  clockwork.NewFakeClockAt(start),
		bridge: NewBridge(),
	}
	h.sess = session.New(h.store, viewer, session.Options{Clock: h.clock, OnEvent: h.bridge.OnEvent})
	t.Cleanup(h.sess.Close)

	h.sess.Refresh(context.Background())
	h.model = New(h.sess, h.bridge)
	h.drain()
	return h
}

func (h *harness) send(msg tea.Msg) {
	next, _ := h.model.Update(msg)
	h.model = next.(Model)
}

// drain delivers every queued session event to the model.
func (h *harness) drain() {
	for {
		ev, ok := h.bridge.next()
		if !ok {
			return
		}
		h.send(sessionEventMsg{event: ev})
	}
}

func (h *harness) settle() {
	h.sess.Wait()
	h.drain()
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (h *harness) status(id string) model.Status {
	for _, r := range h.sess.All() {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

func TestSupervisorSeesEveryRequest(t *testing.T) {
	h := newHarness(t, supervisor)

	assert.Equal(t, []string{"r1", "r2", "r3"}, h.model.ids)
	view := h.model.View()
	assert.Contains(t, view, "Painel de Manutenção")
	assert.Contains(t, view, "Total 3")
	assert.Contains(t, view, "Sem filtros")
}

func TestOperatorSeesOwnRequests(t *testing.T) {
	h := newHarness(t, operator)

	assert.Equal(t, []string{"r1", "r3"}, h.model.ids)
	assert.Contains(t, h.model.View(), "Minhas solicitações")
}

func TestStatusKeyUpdatesSelectedRequest(t *testing.T) {
	h := newHarness(t, supervisor)

	h.send(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "r2", h.model.selectedID())

	h.send(keys("3"))
	assert.Equal(t, model.StatusDone, h.status("r2"), "change is visible before the store answers")

	h.settle()
	assert.Equal(t, model.StatusDone, h.status("r2"))
	assert.Equal(t, model.StatusDone, h.store.List(context.Background())[1].Status)
	assert.Equal(t, "r2", h.model.selectedID(), "cursor stays on the changed request")
}

func TestStatusKeyFailureRollsBackAndNotifies(t *testing.T) {
	h := newHarness(t, supervisor)
	h.store.updateErr = errors.New("database is locked")

	h.send(keys("2"))
	assert.Equal(t, model.StatusInProgress, h.status("r1"))

	h.settle()
	assert.Equal(t, model.StatusPending, h.status("r1"))
	assert.Equal(t, session.LevelError, h.model.notice.Level)
	assert.Contains(t, h.model.View(), h.model.notice.Message)
}

func TestOperatorCannotSetStatus(t *testing.T) {
	h := newHarness(t, operator)

	h.send(keys("3"))
	h.settle()
	assert.Equal(t, model.StatusPending, h.status("r1"))
}

func TestFilterKeysCycleThroughOptions(t *testing.T) {
	h := newHarness(t, supervisor)

	h.send(keys("e"))
	assert.Equal(t, []string{"Estamparia"}, h.sess.Criteria().Sectors)
	assert.Equal(t, []string{"r1", "r3"}, h.model.ids)
	assert.Contains(t, h.model.View(), "Filtros (1)")

	h.send(keys("e"))
	assert.Equal(t, []string{"Pintura"}, h.sess.Criteria().Sectors)
	assert.Equal(t, []string{"r2"}, h.model.ids)

	h.send(keys("e"))
	assert.Empty(t, h.sess.Criteria().Sectors)
	assert.Equal(t, []string{"r1", "r2", "r3"}, h.model.ids)
}

func TestFilterClear(t *testing.T) {
	h := newHarness(t, supervisor)

	h.send(keys("s"))
	h.send(keys("m"))
	assert.Equal(t, 2, h.sess.ActiveFilters())

	h.send(keys("c"))
	assert.Equal(t, 0, h.sess.ActiveFilters())
	assert.Equal(t, []string{"r1", "r2", "r3"}, h.model.ids)
}

func TestOperatorFiltersOwnHistory(t *testing.T) {
	h := newHarness(t, operator)
	assert.Contains(t, h.model.View(), "Sem filtros")

	h.send(keys("m"))
	assert.Equal(t, []string{"Prensa 3"}, h.sess.Criteria().Machines)
	assert.Equal(t, []string{"r1"}, h.model.ids)
	assert.Contains(t, h.model.View(), "Filtros (1)")

	h.send(keys("o"))
	assert.Empty(t, h.sess.Criteria().Requesters, "operators have no requester filter")
	assert.Equal(t, 1, h.sess.ActiveFilters())

	h.send(keys("s"))
	assert.Equal(t, []model.Status{model.StatusPending}, h.sess.Criteria().Statuses)
	assert.Equal(t, 2, h.sess.ActiveFilters())
	assert.Equal(t, []string{"r1"}, h.model.ids)

	h.send(keys("c"))
	assert.Equal(t, 0, h.sess.ActiveFilters())
	assert.Equal(t, []string{"r1", "r3"}, h.model.ids)
}

func TestOperatorSubmitsFromForm(t *testing.T) {
	h := newHarness(t, operator)

	h.send(keys("n"))
	require.NotNil(t, h.model.form)
	assert.Equal(t, "Prensa 3", h.model.form.draft().Machine)
	assert.Equal(t, model.PriorityB, h.model.form.draft().Priority)

	h.send(tea.KeyMsg{Type: tea.KeyTab})
	h.send(tea.KeyMsg{Type: tea.KeyTab})
	h.send(keys("vazamento"))
	h.send(tea.KeyMsg{Type: tea.KeyCtrlP})
	h.send(tea.KeyMsg{Type: tea.KeyEnter})

	h.settle()
	require.Len(t, h.store.drafts, 1)
	d := h.store.drafts[0]
	assert.Equal(t, "op7", d.RequesterID)
	assert.Equal(t, "vazamento", d.Description)
	assert.Equal(t, model.PriorityC, d.Priority)
	assert.True(t, h.model.form.sent)
	assert.Contains(t, h.model.ids, "new-Prensa 3")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(session.AckDelay)
	require.Eventually(t, func() bool {
		h.drain()
		return h.model.form == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIncompleteFormStaysOpen(t *testing.T) {
	h := newHarness(t, operator)

	h.send(keys("n"))
	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	h.settle()

	assert.Empty(t, h.store.drafts)
	require.NotNil(t, h.model.form)
	assert.False(t, h.model.form.sent)
	assert.Equal(t, session.LevelWarning, h.model.notice.Level)

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, h.model.form)
}

func TestNoticeFades(t *testing.T) {
	h := newHarness(t, supervisor)

	h.send(sessionEventMsg{event: session.Event{
		Kind:   session.EventNotice,
		Notice: session.Notice{Level: session.LevelInfo, Message: "primeiro"},
	}})
	first := h.model.noticeSeq
	h.send(sessionEventMsg{event: session.Event{
		Kind:   session.EventNotice,
		Notice: session.Notice{Level: session.LevelInfo, Message: "segundo"},
	}})

	h.send(noticeFadeMsg{seq: first})
	assert.Equal(t, "segundo", h.model.notice.Message, "a stale fade must not clear a newer notice")

	h.send(noticeFadeMsg{seq: h.model.noticeSeq})
	assert.Empty(t, h.model.notice.Message)
	assert.False(t, strings.Contains(h.model.View(), "segundo"))
}

func TestCycle(t *testing.T) {
	opts := []string{"a", "b"}
	assert.Equal(t, []string{"a"}, cycle(nil, opts))
	assert.Equal(t, []string{"b"}, cycle([]string{"a"}, opts))
	assert.Nil(t, cycle([]string{"b"}, opts))
	assert.Nil(t, cycle([]string{"a", "b"}, opts))
	assert.Nil(t, cycle([]string{"x"}, nil))
}
