package session

import (
	"fmt"
	"slices"

	"github.com/erazemk/manutencao/internal/model"
)

// Mutation is one optimistic status change. It holds the entry as it was
// before the change so a failure can undo exactly this change.
type Mutation struct {
	ID     string
	Status model.Status

	prior model.Request
	done  chan struct{}
	err   error
}

// Done is closed once the store has answered.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Err is the store's answer. Only valid after Done is closed.
func (m *Mutation) Err() error { return m.err }

// SetStatus changes a request's status. The change is applied to both the
// authoritative and the displayed list before this returns, with UpdatedAt
// set to now; the store is updated in the background.
//
// If the store rejects the change, the entry is put back the way it was
// before this change and one error notice is emitted. Other changes, in
// flight or settled, are unaffected: when a later change to the same request
// is still pending, it inherits this change's undo state instead.
func (s *Session) SetStatus(id string, status model.Status) (*Mutation, error) {
	if !status.Valid() {
		return nil, &model.ValidationError{Field: "status", Message: "invalid status"}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	i := slices.IndexFunc(s.all, func(r model.Request) bool { return r.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("request %s: %w", id, model.ErrNotFound)
	}

	m := &Mutation{ID: id, Status: status, prior: s.all[i], done: make(chan struct{})}
	next := s.all[i]
	next.Status = status
	now := s.clock.Now()
	next.UpdatedAt = &now
	s.put(next)
	s.pending[id] = append(s.pending[id], m)
	s.inflight.Add(1)
	s.mu.Unlock()

	s.emit(Event{Kind: EventChanged})

	go func() {
		defer s.inflight.Done()
		ctx, cancel := s.callContext()
		err := s.store.Update(ctx, id, model.Patch{Status: &status})
		cancel()
		s.settle(m, err)
	}()
	return m, nil
}

// put replaces the entry with r's id in both lists, in place.
func (s *Session) put(r model.Request) {
	for _, list := range [][]model.Request{s.all, s.displayed} {
		if i := slices.IndexFunc(list, func(x model.Request) bool { return x.ID == r.ID }); i >= 0 {
			list[i] = r
		}
	}
}

func (s *Session) settle(m *Mutation, err error) {
	defer close(m.done)
	m.err = err

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	queue := s.pending[m.ID]
	i := slices.Index(queue, m)
	if i >= 0 {
		queue = slices.Delete(queue, i, i+1)
	}
	if len(queue) == 0 {
		delete(s.pending, m.ID)
	} else {
		s.pending[m.ID] = queue
	}

	if err == nil {
		s.mu.Unlock()
		return
	}

	var events []Event
	if i >= 0 && i < len(queue) {
		// A later change is still pending and owns what is on screen.
		queue[i].prior = m.prior
	} else {
		s.put(m.prior)
		events = append(events, Event{Kind: EventChanged})
	}
	s.mu.Unlock()

	s.logger.Warn("status update failed", "request", m.ID, "status", m.Status, "error", err)
	s.emit(append(events, notice(LevelError, msgUpdateFailed))...)
}
