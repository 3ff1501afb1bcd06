// Package session holds one viewer's live view of the maintenance requests:
// the authoritative list as last fetched, the filtered subset on screen,
// optimistic status changes with per-change rollback, periodic refresh and
// request submission.
//
// A Session is created per dashboard. Start mounts it (first fetch plus the
// refresh ticker) and Close unmounts it; results that arrive after Close are
// discarded. Observers learn about changes through Options.OnEvent, which is
// never called with the session lock held.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/erazemk/manutencao/internal/filter"
	"github.com/erazemk/manutencao/internal/model"
)

// Refresh intervals of the two dashboards.
const (
	SupervisorInterval = 10 * time.Second
	OperatorInterval   = 2 * time.Second
)

// AckDelay is how long a submission acknowledgement stays up before the form resets.
const AckDelay = 3 * time.Second

// DefaultCallTimeout bounds each store call a session makes.
const DefaultCallTimeout = 15 * time.Second

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Store is the request store a session reads from and writes to. List
// degrades to an empty list on failure.
type Store interface {
	List(ctx context.Context) []model.Request
	Create(ctx context.Context, d model.Draft) (string, error)
	Update(ctx context.Context, id string, p model.Patch) error
}

// Scope selects which requests a session keeps.
type Scope int

const (
	// ScopeAll keeps every request. Used by the maintenance dashboard.
	ScopeAll Scope = iota
	// ScopeOwn keeps the viewer's own requests, newest first. Used by the
	// operator dashboard.
	ScopeOwn
)

// ScopeFor returns the scope a user's dashboard uses.
func ScopeFor(role model.Role) Scope {
	if role == model.RoleOperator {
		return ScopeOwn
	}
	return ScopeAll
}

// Interval is the refresh interval of the scope's dashboard.
func (s Scope) Interval() time.Duration {
	if s == ScopeOwn {
		return OperatorInterval
	}
	return SupervisorInterval
}

// Options configures a Session. Zero values pick the defaults.
type Options struct {
	Clock       clockwork.Clock
	Interval    time.Duration
	AckDelay    time.Duration
	CallTimeout time.Duration
	OnEvent     func(Event)
	Logger      *slog.Logger
}

// Session is one viewer's dashboard state.
type Session struct {
	store       Store
	viewer      model.User
	scope       Scope
	clock       clockwork.Clock
	interval    time.Duration
	ackDelay    time.Duration
	callTimeout time.Duration
	onEvent     func(Event)
	logger      *slog.Logger

	mu        sync.Mutex
	all       []model.Request
	displayed []model.Request
	criteria  filter.Criteria
	options   filter.Options
	pending   map[string][]*Mutation
	ackTimer  clockwork.Timer
	started   bool
	closed    bool

	stop      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
}

// New creates a session for viewer. The scope follows the viewer's role.
func New(store Store, viewer model.User, opts Options) *Session {
	scope := ScopeFor(viewer.Role)
	s := &Session{
		store:       store,
		viewer:      viewer,
		scope:       scope,
		clock:       opts.Clock,
		interval:    opts.Interval,
		ackDelay:    opts.AckDelay,
		callTimeout: opts.CallTimeout,
		onEvent:     opts.OnEvent,
		logger:      opts.Logger,
		all:         []model.Request{},
		displayed:   []model.Request{},
		pending:     make(map[string][]*Mutation),
		stop:        make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.interval <= 0 {
		s.interval = scope.Interval()
	}
	if s.ackDelay <= 0 {
		s.ackDelay = AckDelay
	}
	if s.callTimeout <= 0 {
		s.callTimeout = DefaultCallTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Viewer returns the user the session belongs to.
func (s *Session) Viewer() model.User { return s.viewer }

// Scope returns the session's scope.
func (s *Session) Scope() Scope { return s.scope }

// Start fetches the list once and then keeps refreshing it every interval
// until Close or until ctx is done.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.Refresh(ctx)

	ticker := s.clock.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.Chan():
				s.Refresh(ctx)
			}
		}
	}()
	return nil
}

// Close stops the refresh ticker and any pending form reset. Calls still in
// flight finish, but their results are dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.ackTimer != nil {
			s.ackTimer.Stop()
		}
		s.mu.Unlock()
		close(s.stop)
	})
}

// Wait blocks until every store call the session started has returned.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Refresh replaces the authoritative list with a fresh fetch and recomputes
// the displayed subset. It does not merge: an optimistic change still in
// flight is overwritten by whatever the store returns.
func (s *Session) Refresh(ctx context.Context) {
	if s.isClosed() {
		return
	}
	s.inflight.Add(1)
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	reqs := s.store.List(ctx)
	cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.all = s.scoped(reqs)
	s.options = filter.OptionsFor(s.all)
	s.displayed = filter.Apply(s.all, s.criteria, s.includeRequester())
	s.mu.Unlock()

	s.emit(Event{Kind: EventChanged})
}

// scoped applies the session scope to a fetched list.
func (s *Session) scoped(reqs []model.Request) []model.Request {
	if s.scope == ScopeAll {
		return slices.Clone(reqs)
	}
	own := make([]model.Request, 0, len(reqs))
	for _, r := range reqs {
		if r.RequesterID == s.viewer.Login {
			own = append(own, r)
		}
	}
	slices.SortStableFunc(own, func(a, b model.Request) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return own
}

func (s *Session) includeRequester() bool {
	return s.scope == ScopeAll
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// All returns a copy of the authoritative list.
func (s *Session) All() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.all)
}

// Displayed returns a copy of the list on screen.
func (s *Session) Displayed() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.displayed)
}

// Criteria returns the criteria in effect.
func (s *Session) Criteria() filter.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Options returns the filter choices derived from the unfiltered list.
func (s *Session) Options() filter.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// ActiveFilters counts the dimensions currently restricting the display.
func (s *Session) ActiveFilters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria.ActiveCount(s.includeRequester())
}

// Counts tallies the authoritative list by status.
func (s *Session) Counts() map[model.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.StatusCounts(s.all)
}

// Completed returns the viewer's own requests that are done. The operator
// dashboard shows them as notifications.
func (s *Session) Completed() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Request
	for _, r := range s.all {
		if r.RequesterID == s.viewer.Login && r.Status == model.StatusDone {
			out = append(out, r)
		}
	}
	return out
}

// SetCriteria filters the display by c.
func (s *Session) SetCriteria(c filter.Criteria) {
	s.mu.Lock()
	s.criteria = c
	s.displayed = filter.Apply(s.all, c, s.includeRequester())
	s.mu.Unlock()

	s.emit(Event{Kind: EventChanged})
}

// ClearCriteria drops every filter. The display becomes the authoritative
// list in its original order.
func (s *Session) ClearCriteria() {
	s.mu.Lock()
	s.criteria = filter.Criteria{}
	s.displayed = slices.Clone(s.all)
	s.mu.Unlock()

	s.emit(Event{Kind: EventChanged})
}

func (s *Session) emit(events ...Event) {
	if s.onEvent == nil {
		return
	}
	for _, ev := range events {
		s.onEvent(ev)
	}
}

// callContext is the context for a store call that outlives its caller.
func (s *Session) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.callTimeout)
}
