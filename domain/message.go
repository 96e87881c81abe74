// Package domain contains core concepts of the conversation engine.
// This file defines Message entities and the reaction invariants.
// No transport, storage, or UI logic should be added here.
package domain

import (
	"time"
)

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindGif    MessageKind = "gif"
	KindSystem MessageKind = "system"
)

// QuotedRef is a snapshot of a quoted message, not a live link.
// The snippet is frozen at quote time and never updated afterwards.
type QuotedRef struct {
	MessageID string
	SenderID  string
	Snippet   string
}

// CalendarRef attaches a calendar event to a message.
type CalendarRef struct {
	EventID  string
	Title    string
	StartsAt time.Time
}

// TaskRef attaches a task to a message.
type TaskRef struct {
	TaskID string
	Title  string
}

// Message is the canonical in-memory message shape. Every source
// (initial fetch, send confirmation, socket push) is normalized into
// this structure before it reaches engine state.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Body           string // empty for attachment or GIF only messages
	Kind           MessageKind
	Attachments    []Attachment
	CalendarRefs   []CalendarRef
	TaskRefs       []TaskRef
	Mentions       []string
	Quoted         *QuotedRef
	Reactions      Reactions
	CreatedAt      time.Time
	Read           bool
	Pending        bool // local optimistic instance carrying a temporary id
}

// Snippet returns a short preview of the message body for the
// conversation list. Attachment-only messages fall back to a label.
func (m Message) Snippet(max int) string {
	body := m.Body
	if body == "" {
		switch {
		case m.Kind == KindGif:
			body = "GIF"
		case len(m.Attachments) > 0:
			body = m.Attachments[0].Label()
		}
	}
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}
