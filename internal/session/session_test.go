package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/manutencao/internal/filter"
	"github.com/erazemk/manutencao/internal/model"
)

var start = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

var (
	supervisor = model.User{ID: 1, Login: "enc01", Name: "Marta", Role: model.RoleSupervisor}
	operator   = model.User{ID: 2, Login: "op7", Name: "Rui", Role: model.RoleOperator, Sector: "Fundição", Machine: "Forno 1"}
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) List(ctx context.Context) []model.Request {
	args := m.Called(ctx)
	return args.Get(0).([]model.Request)
}

func (m *mockStore) Create(ctx context.Context, d model.Draft) (string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id string, p model.Patch) error {
	args := m.Called(ctx, id, p)
	return args.Error(0)
}

func statusPatch(s model.Status) any {
	return mock.MatchedBy(func(p model.Patch) bool {
		return p.Status != nil && *p.Status == s && p.Notes == nil
	})
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 128)}
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.ch <- ev:
	default:
	}
}

func (r *recorder) notices(level Level) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, ev := range r.events {
		if ev.Kind == EventNotice && ev.Notice.Level == level {
			out = append(out, ev.Notice)
		}
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func requests() []model.Request {
	return []model.Request{
		{ID: "r1", RequesterID: "op7", RequesterName: "Rui", Sector: "Fundição", Machine: "Forno 1",
			Description: "Porta emperrada", Status: model.StatusPending, Priority: model.PriorityA,
			ServiceType: model.ServiceMechanical, CreatedAt: start.Add(-1 * time.Hour)},
		{ID: "r2", RequesterID: "op8", RequesterName: "Ana", Sector: "Laminação", Machine: "Laminador 2",
			Description: "Motor aquecendo", Status: model.StatusInProgress, Priority: model.PriorityB,
			ServiceType: model.ServiceElectrical, CreatedAt: start.Add(-2 * time.Hour)},
		{ID: "r3", RequesterID: "op7", RequesterName: "Rui", Sector: "Fundição", Machine: "Forno 2",
			Description: "Vazamento", Status: model.StatusDone, Priority: model.PriorityC,
			ServiceType: model.ServiceMechanical, CreatedAt: start.Add(-3 * time.Hour)},
	}
}

type fixture struct {
	store   *mockStore
	clock   *clockwork.FakeClock
	events  *recorder
	session *Session
}

func newFixture(t *testing.T, viewer model.User, list []model.Request) *fixture {
	t.Helper()
	f := &fixture{
		store:  &mockStore{},
		clock:  clockwork.NewFakeClockAt(start),
		events: newRecorder(),
	}
	f.store.On("List", mock.Anything).Return(list).Once()
	f.session = New(f.store, viewer, Options{Clock: f.clock, OnEvent: f.events.record})
	require.NoError(t, f.session.Start(context.Background()))
	t.Cleanup(func() {
		f.session.Close()
		f.session.Wait()
	})
	return f
}

func TestSetStatusFailureRestoresList(t *testing.T) {
	f := newFixture(t, supervisor, requests())
	before := f.session.All()

	release := make(chan struct{})
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusDone)).
		Run(func(mock.Arguments) { <-release }).
		Return(errors.New("connection refused"))

	m, err := f.session.SetStatus("r1", model.StatusDone)
	require.NoError(t, err)

	// Visible before the store has answered.
	shown := f.session.Displayed()
	assert.Equal(t, model.StatusDone, shown[0].Status)
	require.NotNil(t, shown[0].UpdatedAt)
	assert.Equal(t, start, *shown[0].UpdatedAt)
	assert.Equal(t, model.StatusDone, f.session.All()[0].Status)

	close(release)
	<-m.Done()
	assert.Error(t, m.Err())

	assert.Equal(t, before, f.session.All())
	assert.Equal(t, before, f.session.Displayed())
	assert.Equal(t, model.StatusPending, f.session.All()[0].Status)
	assert.Len(t, f.events.notices(LevelError), 1)
}

func TestSetStatusSuccessKeepsChange(t *testing.T) {
	f := newFixture(t, supervisor, requests())
	f.store.On("Update", mock.Anything, "r2", statusPatch(model.StatusCancelled)).Return(nil)

	m, err := f.session.SetStatus("r2", model.StatusCancelled)
	require.NoError(t, err)
	<-m.Done()

	require.NoError(t, m.Err())
	assert.Equal(t, model.StatusCancelled, f.session.All()[1].Status)
	assert.Empty(t, f.events.notices(LevelError))
	f.store.AssertExpectations(t)
}

func TestSetStatusRejectsUnknownIDAndStatus(t *testing.T) {
	f := newFixture(t, supervisor, requests())

	_, err := f.session.SetStatus("missing", model.StatusDone)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.session.SetStatus("r1", "archived")
	assert.ErrorIs(t, err, model.ErrValidation)

	f.store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailureOnlyUndoesItsOwnChange(t *testing.T) {
	f := newFixture(t, supervisor, requests())

	release := make(chan struct{})
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusDone)).
		Run(func(mock.Arguments) { <-release }).
		Return(errors.New("timeout"))
	f.store.On("Update", mock.Anything, "r2", statusPatch(model.StatusDone)).Return(nil)

	failing, err := f.session.SetStatus("r1", model.StatusDone)
	require.NoError(t, err)
	ok, err := f.session.SetStatus("r2", model.StatusDone)
	require.NoError(t, err)
	<-ok.Done()

	close(release)
	<-failing.Done()

	all := f.session.All()
	assert.Equal(t, model.StatusPending, all[0].Status)
	assert.Equal(t, model.StatusDone, all[1].Status)
	assert.Len(t, f.events.notices(LevelError), 1)
}

func TestSupersededChangeHandsOverUndoState(t *testing.T) {
	f := newFixture(t, supervisor, requests())
	before := f.session.All()

	first := make(chan struct{})
	second := make(chan struct{})
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusInProgress)).
		Run(func(mock.Arguments) { <-first }).
		Return(errors.New("first failed"))
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusDone)).
		Run(func(mock.Arguments) { <-second }).
		Return(errors.New("second failed"))

	m1, err := f.session.SetStatus("r1", model.StatusInProgress)
	require.NoError(t, err)
	m2, err := f.session.SetStatus("r1", model.StatusDone)
	require.NoError(t, err)

	// The earlier change fails while the later one is pending: the screen
	// keeps showing the later change.
	close(first)
	<-m1.Done()
	assert.Equal(t, model.StatusDone, f.session.Displayed()[0].Status)

	// When the later change fails too, nothing of either survives.
	close(second)
	<-m2.Done()
	assert.Equal(t, before, f.session.All())
	assert.Len(t, f.events.notices(LevelError), 2)
}

func TestChangeStaysVisibleUnderActiveFilter(t *testing.T) {
	f := newFixture(t, supervisor, requests())
	f.session.SetCriteria(filter.Criteria{Statuses: []model.Status{model.StatusPending}})
	require.Len(t, f.session.Displayed(), 1)
	assert.Equal(t, 1, f.session.ActiveFilters())

	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusInProgress)).Return(nil)
	m, err := f.session.SetStatus("r1", model.StatusInProgress)
	require.NoError(t, err)

	shown := f.session.Displayed()
	require.Len(t, shown, 1)
	assert.Equal(t, model.StatusInProgress, shown[0].Status)
	<-m.Done()

	f.session.ClearCriteria()
	assert.Equal(t, f.session.All(), f.session.Displayed())
	assert.Equal(t, 0, f.session.ActiveFilters())
}

func TestRefreshOnInterval(t *testing.T) {
	f := newFixture(t, supervisor, requests())
	f.events.waitFor(t, EventChanged)

	fresh := requests()[:1]
	f.store.On("List", mock.Anything).Return(fresh)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(SupervisorInterval)

	f.events.waitFor(t, EventChanged)
	assert.Equal(t, fresh, f.session.All())
	assert.Equal(t, fresh, f.session.Displayed())
}

func TestRefreshOverwritesPendingChange(t *testing.T) {
	f := newFixture(t, supervisor, requests())

	release := make(chan struct{})
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusDone)).
		Run(func(mock.Arguments) { <-release }).
		Return(nil)
	f.store.On("List", mock.Anything).Return(requests())

	m, err := f.session.SetStatus("r1", model.StatusDone)
	require.NoError(t, err)

	// A refresh landing while the update is in flight replaces the list
	// wholesale: the store's answer wins.
	f.session.Refresh(context.Background())
	assert.Equal(t, model.StatusPending, f.session.All()[0].Status)

	close(release)
	<-m.Done()
	assert.Equal(t, model.StatusPending, f.session.All()[0].Status)
}

func TestCloseDiscardsLateResults(t *testing.T) {
	f := newFixture(t, supervisor, requests())

	release := make(chan struct{})
	f.store.On("Update", mock.Anything, "r1", statusPatch(model.StatusDone)).
		Run(func(mock.Arguments) { <-release }).
		Return(errors.New("late failure"))

	m, err := f.session.SetStatus("r1", model.StatusDone)
	require.NoError(t, err)

	f.session.Close()
	changed := f.events.count(EventChanged)
	close(release)
	<-m.Done()

	assert.Empty(t, f.events.notices(LevelError))
	assert.Equal(t, changed, f.events.count(EventChanged))

	_, err = f.session.SetStatus("r1", model.StatusDone)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOperatorSeesOwnRequestsNewestFirst(t *testing.T) {
	list := requests()
	list[0], list[2] = list[2], list[0]
	f := newFixture(t, operator, list)

	all := f.session.All()
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID)
	assert.Equal(t, "r3", all[1].ID)
	assert.Equal(t, ScopeOwn, f.session.Scope())

	completed := f.session.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, "r3", completed[0].ID)

	assert.Equal(t, map[model.Status]int{
		model.StatusPending:    1,
		model.StatusInProgress: 0,
		model.StatusDone:       1,
		model.StatusCancelled:  0,
	}, f.session.Counts())
}

func TestOperatorRefreshInterval(t *testing.T) {
	f := newFixture(t, operator, requests())
	f.events.waitFor(t, EventChanged)
	f.store.On("List", mock.Anything).Return([]model.Request{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	f.clock.Advance(OperatorInterval)
	f.events.waitFor(t, EventChanged)
	assert.Empty(t, f.session.All())
}

func TestSubmitIncompleteDraft(t *testing.T) {
	f := newFixture(t, operator, requests())

	d := DefaultDraft(operator)
	d.Description = "   "
	err := f.session.Submit(d)

	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Len(t, f.events.notices(LevelWarning), 1)
	assert.Zero(t, f.events.count(EventSubmitted))
	f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitAcknowledgesThenResetsForm(t *testing.T) {
	st := &mockStore{}
	clock := clockwork.NewFakeClockAt(start)
	events := newRecorder()
	s := New(st, operator, Options{Clock: clock, OnEvent: events.record})
	t.Cleanup(s.Close)

	d := DefaultDraft(operator)
	d.Description = "Correia partida"
	assert.Equal(t, model.PriorityB, d.Priority)
	assert.Equal(t, "Forno 1", d.Machine)

	created := model.Request{ID: "new", RequesterID: "op7", Machine: "Forno 1", Status: model.StatusPending, CreatedAt: start}
	st.On("Create", mock.Anything, d).Return("new", nil)
	st.On("List", mock.Anything).Return([]model.Request{created})

	require.NoError(t, s.Submit(d))
	events.waitFor(t, EventSubmitted)
	s.Wait()
	assert.Equal(t, []model.Request{created}, s.All())
	assert.Zero(t, events.count(EventFormReset))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(AckDelay)
	events.waitFor(t, EventFormReset)
	st.AssertExpectations(t)
}

func TestSubmitFailureRaisesNotice(t *testing.T) {
	f := newFixture(t, operator, requests())
	d := DefaultDraft(operator)
	d.Description = "Sensor com defeito"
	f.store.On("Create", mock.Anything, d).Return("", model.ErrTransport)

	require.NoError(t, f.session.Submit(d))
	f.session.Wait()

	assert.Len(t, f.events.notices(LevelError), 1)
	f.store.AssertNumberOfCalls(t, "List", 1)
}
