package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/erazemk/manutencao/internal/session"
)

// Bridge carries session events into the bubbletea message loop. Pass
// OnEvent as session.Options.OnEvent.
//
// The session may emit from inside Model.Update (SetStatus, Submit), which
// runs on the program's own goroutine, so OnEvent never blocks. Events are
// delivered in the order they were emitted. A run of EventChanged collapses
// into one, since the model re-reads the session on each.
type Bridge struct {
	mu    sync.Mutex
	queue []session.Event

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// OnEvent queues ev for the model.
func (b *Bridge) OnEvent(ev session.Event) {
	b.mu.Lock()
	n := len(b.queue)
	if ev.Kind != session.EventChanged || n == 0 || b.queue[n-1].Kind != session.EventChanged {
		b.queue = append(b.queue, ev)
	}
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Close releases a pending listen. Call it once the program has exited.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// next pops the oldest queued event.
func (b *Bridge) next() (session.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return session.Event{}, false
	}
	ev := b.queue[0]
	b.queue[0] = session.Event{}
	b.queue = b.queue[1:]
	return ev, true
}

// sessionEventMsg wraps a session event for delivery through Update.
type sessionEventMsg struct {
	event session.Event
}

// listen returns a command that blocks until the next session event, or
// returns nil once the bridge is closed.
func (b *Bridge) listen() tea.Cmd {
	return func() tea.Msg {
		for {
			if ev, ok := b.next(); ok {
				return sessionEventMsg{event: ev}
			}
			select {
			case <-b.ready:
			case <-b.done:
				return nil
			}
		}
	}
}
