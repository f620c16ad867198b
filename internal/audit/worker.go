package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and persists them. It keeps
// background processing testable without wiring queue implementations into
// domain code. The optional Kafka sink receives every event the store does.
type Worker struct {
	store  Store
	sink   *KafkaSink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, sink *KafkaSink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
			if w.sink != nil {
				if err := w.sink.Publish(ctx, event); err != nil && w.logger != nil {
					// The local store already has the event; a broker
					// hiccup is not worth stopping the worker for.
					w.logger.Error("kafka audit publish failed",
						"error", err,
						"action", event.Action,
					)
				}
			}
		}
	}
}
