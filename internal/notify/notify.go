// Package notify fans out request status changes to listeners on the shop
// floor, such as andon boards and operator terminals.
package notify

import (
	"context"
	"time"

	"github.com/erazemk/manutencao/internal/model"
)

// StatusEvent is published after a request's status changes.
type StatusEvent struct {
	ID          string       `json:"id"`
	Status      model.Status `json:"status"`
	Machine     string       `json:"machine"`
	Sector      string       `json:"sector"`
	RequesterID string       `json:"requesterId"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// EventFor builds the event describing r's current status.
func EventFor(r model.Request) StatusEvent {
	ev := StatusEvent{
		ID:          r.ID,
		Status:      r.Status,
		Machine:     r.Machine,
		Sector:      r.Sector,
		RequesterID: r.RequesterID,
		UpdatedAt:   r.CreatedAt,
	}
	if r.UpdatedAt != nil {
		ev.UpdatedAt = *r.UpdatedAt
	}
	return ev
}

// Publisher delivers status events.
type Publisher interface {
	PublishStatus(ctx context.Context, ev StatusEvent) error
	Close()
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishStatus(context.Context, StatusEvent) error { return nil }
func (Nop) Close() {}
