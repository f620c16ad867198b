package audit

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher hands events to the background worker over a buffered channel.
// Emitting never blocks a registry operation: when the buffer is full the
// event is dropped and the drop is logged, because audit delivery must not
// turn a successful registration into a failure.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Emit stamps the event and enqueues it for the worker.
func (p *Publisher) Emit(event Event) {
	if p == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit inbox full, dropping event",
				"action", event.Action,
				"actor", event.Actor,
			)
		}
	}
}
