package workers

import (
	"context"
	"log/slog"
	"time"

	"convosync/contract"
	"convosync/domain/event"
)

const defaultSinkTimeout = 2 * time.Second

// EventFanout drains the engine's event channel and delivers each
// event to every registered sink. Delivery is best effort and bounded
// per sink: a slow cache or renderer times out instead of stalling
// the stream for the others. This is in-process plumbing, not a
// message broker.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.ConversationEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.ConversationEvent, sinkTimeout time.Duration) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = defaultSinkTimeout
	}
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// fanout delivers one event to each sink in turn. Sink failures are
// logged and isolated.
func (w *EventFanout) fanout(ctx context.Context, evt event.ConversationEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Event sink failed",
				slog.String("sink", contract.GetSinkName(sink)),
				slog.String("error", err.Error()))
		}
		cancel()
	}
}
