// Package sink contains the engine's event consumers: disk cache,
// search index, keyword notifier, and the presentation render sink.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"convosync/domain/event"
	"convosync/repositories"
)

// CacheSink mirrors confirmed messages into the BadgerDB cache so a
// cold start can paint history before the network answers.
type CacheSink struct {
	cache repositories.IMessageCache
	log   *slog.Logger
}

func NewCacheSink(cache repositories.IMessageCache, log *slog.Logger) CacheSink {
	return CacheSink{cache: cache, log: log}
}

func (s CacheSink) Consume(_ context.Context, e event.ConversationEvent) error {
	switch evt := e.(type) {
	case event.MessageReceived:
		return s.cache.Store(evt.Message)
	case event.MessageReplaced:
		if err := s.cache.Delete(evt.Conversation, evt.TempID); err != nil {
			return err
		}
		return s.cache.Store(evt.Message)
	case event.MessageDeleted:
		return s.cache.Delete(evt.Conversation, evt.MessageID)
	case event.HistoryLoaded:
		for _, msg := range evt.Messages {
			if err := s.cache.Store(msg); err != nil {
				return err
			}
		}
		return nil
	default:
		s.log.Debug(fmt.Sprintf("Cache sink ignoring event : %T", evt))
		return nil
	}
}
