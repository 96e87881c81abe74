package sink

import (
	"context"
	"log/slog"

	"convosync/domain/event"
	"convosync/notify"
)

// Emitter is the slice of the engine the keyword sink needs: a way to
// publish the hit back into the event stream.
type Emitter interface {
	Emit(e event.ConversationEvent)
	SelfID() string
}

// KeywordSink scans incoming message bodies against the user's watch
// terms and publishes a KeywordHit for the presentation layer to
// highlight. Own messages never trigger a hit.
type KeywordSink struct {
	matcher *notify.Matcher
	emitter Emitter
	log     *slog.Logger
}

func NewKeywordSink(matcher *notify.Matcher, emitter Emitter, log *slog.Logger) KeywordSink {
	return KeywordSink{matcher: matcher, emitter: emitter, log: log}
}

func (s KeywordSink) Consume(_ context.Context, e event.ConversationEvent) error {
	evt, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	if evt.Message.SenderID == s.emitter.SelfID() || evt.Message.Body == "" {
		return nil
	}

	terms := s.matcher.Match(evt.Message.Body)
	if len(terms) == 0 {
		return nil
	}

	s.log.Debug("Keyword watch hit",
		slog.String("conversation", evt.Conversation),
		slog.Int("terms", len(terms)))
	s.emitter.Emit(event.KeywordHit{
		Conversation: evt.Conversation,
		MessageID:    evt.Message.ID,
		Terms:        terms,
	})
	return nil
}
