package sink

import (
	"context"
	"log/slog"

	"convosync/domain/event"
	"convosync/search"
)

// IndexSink keeps the local full-text index in step with engine state.
type IndexSink struct {
	index search.IMessageIndex
	log   *slog.Logger
}

func NewIndexSink(index search.IMessageIndex, log *slog.Logger) IndexSink {
	return IndexSink{index: index, log: log}
}

func (s IndexSink) Consume(_ context.Context, e event.ConversationEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		return s.index.Index(evt.Message)
	case event.MessageReplaced:
		return s.index.Index(evt.Message)
	case event.MessageDeleted:
		return s.index.Delete(evt.MessageID)
	case event.HistoryLoaded:
		for _, msg := range evt.Messages {
			if err := s.index.Index(msg); err != nil {
				s.log.Warn("Indexing history message failed",
					slog.String("message", msg.ID),
					slog.String("error", err.Error()))
			}
		}
		return nil
	default:
		return nil
	}
}
