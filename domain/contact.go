package domain

import "time"

// Contact is read-mostly supporting data merged into conversation
// metadata. Immutable until refetched.
type Contact struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// Story is a read-mostly record shown alongside the conversation list.
type Story struct {
	ID        string
	AuthorID  string
	MediaURL  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// QuickReply is a canned response owned by the current user.
type QuickReply struct {
	ID   string
	Text string
}
