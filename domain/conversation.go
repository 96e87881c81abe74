package domain

import (
	"time"

	"github.com/samber/lo"
)

type ConversationKind string

const (
	Direct ConversationKind = "direct"
	Group  ConversationKind = "group"
	Topic  ConversationKind = "topic"
)

// Member is a conversation participant with its role.
type Member struct {
	UserID      string
	DisplayName string
	Role        string
}

// LastMessage is the summary shown in the conversation list.
type LastMessage struct {
	ID       string
	Snippet  string
	SenderID string
	At       time.Time
}

// Conversation is an addressable message container (thread).
// Conversations are never deleted client side, only hidden.
type Conversation struct {
	ID          string
	Kind        ConversationKind
	Name        string
	Members     []Member
	LastMessage *LastMessage
	Unread      int
	UpdatedAt   time.Time
	Hidden      bool
}

// DisplayName resolves the list title. Direct conversations without an
// explicit name borrow the counterpart's display name.
func (c Conversation) DisplayName(selfID string) string {
	if c.Name != "" || c.Kind != Direct {
		return c.Name
	}
	other, ok := lo.Find(c.Members, func(m Member) bool { return m.UserID != selfID })
	if !ok {
		return c.Name
	}
	return other.DisplayName
}

// LastActivity is the recency key used for directory ordering: the max
// of the last message time and the conversation update time.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage != nil && c.LastMessage.At.After(c.UpdatedAt) {
		return c.LastMessage.At
	}
	return c.UpdatedAt
}
