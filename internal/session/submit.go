package session

import (
	"github.com/erazemk/manutencao/internal/model"
)

// DefaultDraft is a blank submission form for viewer: their own machine and
// sector, medium priority, mechanical service.
func DefaultDraft(viewer model.User) model.Draft {
	return model.Draft{
		RequesterID:   viewer.Login,
		RequesterName: viewer.Name,
		Sector:        viewer.Sector,
		Machine:       viewer.Machine,
		Priority:      model.PriorityB,
		ServiceType:   model.ServiceMechanical,
	}
}

// Submit files d. An incomplete draft is rejected with a warning notice and
// never reaches the store. Otherwise the submission is acknowledged at once
// with EventSubmitted, the store is called in the background, and
// EventFormReset follows after the acknowledgement delay. A store failure is
// reported as an error notice; success triggers a refresh.
func (s *Session) Submit(d model.Draft) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := d.Validate(); err != nil {
		s.emit(notice(LevelWarning, msgMissingFields))
		return err
	}

	s.mu.Lock()
	if s.ackTimer != nil {
		s.ackTimer.Stop()
	}
	s.ackTimer = s.clock.AfterFunc(s.ackDelay, func() {
		if !s.isClosed() {
			s.emit(Event{Kind: EventFormReset})
		}
	})
	s.inflight.Add(1)
	s.mu.Unlock()

	s.emit(Event{Kind: EventSubmitted}, notice(LevelInfo, msgSubmitted))

	go func() {
		defer s.inflight.Done()
		ctx, cancel := s.callContext()
		id, err := s.store.Create(ctx, d)
		cancel()

		if s.isClosed() {
			return
		}
		if err != nil {
			s.logger.Warn("submitting request failed", "machine", d.Machine, "error", err)
			s.emit(notice(LevelError, msgSubmitFailed))
			return
		}
		s.logger.Info("request submitted", "request", id, "machine", d.Machine)

		ctx, cancel = s.callContext()
		defer cancel()
		s.Refresh(ctx)
	}()
	return nil
}
