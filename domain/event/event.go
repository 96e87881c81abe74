// Package event defines the domain events published by the engine to
// its sinks (presentation adapters, caches, notifiers). Events are
// emitted after normalization and after engine state has been updated.
package event

import (
	"convosync/domain"
)

// ConversationEvent is implemented by every event scoped to a single
// conversation. Global events (toasts) return an empty id.
type ConversationEvent interface {
	ConversationID() string
}

type MessageReceived struct {
	Conversation string
	Message      domain.Message
}

func (e MessageReceived) ConversationID() string { return e.Conversation }

type MessageReplaced struct {
	Conversation string
	TempID       string
	Message      domain.Message
}

func (e MessageReplaced) ConversationID() string { return e.Conversation }

type MessageDeleted struct {
	Conversation string
	MessageID    string
}

func (e MessageDeleted) ConversationID() string { return e.Conversation }

type ReactionsChanged struct {
	Conversation string
	MessageID    string
	Reactions    domain.Reactions
}

func (e ReactionsChanged) ConversationID() string { return e.Conversation }

type PinChanged struct {
	Conversation string
	MessageID    string
	Pinned       bool
}

func (e PinChanged) ConversationID() string { return e.Conversation }

type TypingStarted struct {
	Conversation string
	UserID       string
	UserName     string
}

func (e TypingStarted) ConversationID() string { return e.Conversation }

type TypingStopped struct {
	Conversation string
	UserID       string
}

func (e TypingStopped) ConversationID() string { return e.Conversation }

// ConversationRead signals that the counterpart has read the
// conversation; delivered flags flip on the local copy.
type ConversationRead struct {
	Conversation string
}

func (e ConversationRead) ConversationID() string { return e.Conversation }

// HistoryLoaded signals that a conversation's message list was
// (re)seeded from cache or from an authoritative fetch. It carries
// the seeded messages so cache and index sinks can absorb them.
type HistoryLoaded struct {
	Conversation string
	Messages     []domain.Message
}

func (e HistoryLoaded) ConversationID() string { return e.Conversation }

type UnreadChanged struct {
	Conversation string
	Unread       int
}

func (e UnreadChanged) ConversationID() string { return e.Conversation }

type ConversationCreated struct {
	Conversation domain.Conversation
}

func (e ConversationCreated) ConversationID() string { return e.Conversation.ID }

type MembersUpdated struct {
	Conversation string
	Members      []domain.Member
}

func (e MembersUpdated) ConversationID() string { return e.Conversation }

// MutationTransition reports an optimistic mutation moving through its
// lifecycle: pending-local once the local delta is applied, then
// confirmed or reverted when the server answers.
type MutationTransition struct {
	Conversation string
	MessageID    string
	MutationID   string
	Kind         string
	State        string
}

func (e MutationTransition) ConversationID() string { return e.Conversation }

// KeywordHit flags an incoming message matching the user's watch terms.
type KeywordHit struct {
	Conversation string
	MessageID    string
	Terms        []string
}

func (e KeywordHit) ConversationID() string { return e.Conversation }

type ToastLevel string

const (
	ToastInfo  ToastLevel = "info"
	ToastError ToastLevel = "error"
)

// Toast is a user-visible, dismissable notification. Every recoverable
// failure in the engine degrades to one of these, never to a fatal state.
type Toast struct {
	Level ToastLevel
	Text  string
}

func (e Toast) ConversationID() string { return "" }
