//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/realtime"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// GetSinkName mirrors GetWorkerName for event sinks.
func GetSinkName(s EventSink) string {
	if s == nil {
		return "NilSink"
	}
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes domain events fanned out by the engine.
// Presentation adapters, caches, and notifiers all implement this.
type EventSink interface {
	Consume(ctx context.Context, e event.ConversationEvent) error
}

// Directory is the conversation-list surface the router feeds:
// recency bumps, unread counters, and conversation lifecycle pushes.
type Directory interface {
	Touch(conversationID string, last domain.LastMessage)
	IncrementUnread(conversationID string)
	ResetUnread(conversationID string)
	Upsert(conversation domain.Conversation)
	ApplyMembers(conversationID string, members []domain.Member)
}

// Transport is the realtime channel capability injected into the
// engine. Abstracting it keeps the router testable and keeps the
// socket handle out of ambient state.
type Transport interface {
	// Events delivers decoded server-push envelopes, including the
	// synthetic "connected" envelope on every (re)connect.
	Events() <-chan realtime.Envelope
	JoinRoom(ctx context.Context, conversationID string) error
	LeaveRoom(ctx context.Context, conversationID string) error
	StartTyping(ctx context.Context, conversationID string) error
	StopTyping(ctx context.Context, conversationID string) error
}
