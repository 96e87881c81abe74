// Package realtime implements the websocket channel carrying
// server-pushed conversation events and client-emitted room/typing
// commands.
package realtime

import (
	"encoding/json"

	"convosync/normalize"
)

// Server-push event types, one constant per wire name.
const (
	EventNewMessage          = "new_message"
	EventReaction            = "message:reaction"
	EventPin                 = "message:pin"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventRead                = "message:read"
	EventConversationCreated = "conversation:created"
	EventMembersUpdated      = "members_updated"

	// EventConnected is synthetic: the transport injects it after every
	// successful (re)connect so the router can re-join its rooms.
	EventConnected = "connected"
	// EventDisconnected is synthetic as well.
	EventDisconnected = "disconnected"
)

// Client-emitted command types.
const (
	CommandJoinRoom    = "join-room"
	CommandLeaveRoom   = "leave-room"
	CommandTypingStart = EventTypingStart
	CommandTypingStop  = EventTypingStop
)

// Envelope is the wire format for all realtime traffic.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Command is a client-to-server message.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type NewMessagePayload struct {
	ConversationID normalize.ID         `json:"conversationId"`
	Message        normalize.RawMessage `json:"message"`
}

type ReactionPayload struct {
	ConversationID normalize.ID    `json:"conversationId"`
	MessageID      normalize.ID    `json:"messageId"`
	Reactions      json.RawMessage `json:"reactions"`
}

type PinPayload struct {
	ConversationID normalize.ID         `json:"conversationId"`
	Message        normalize.RawMessage `json:"message"`
	IsPinned       bool                 `json:"isPinned"`
}

type TypingPayload struct {
	ConversationID normalize.ID `json:"conversationId"`
	UserID         normalize.ID `json:"userId"`
	UserName       string       `json:"userName,omitempty"`
}

type ReadPayload struct {
	ConversationID normalize.ID `json:"conversationId"`
}

type ConversationCreatedPayload struct {
	Conversation normalize.RawThread `json:"conversation"`
}

type MembersUpdatedPayload struct {
	ConversationID normalize.ID          `json:"conversationId"`
	Members        []normalize.RawMember `json:"members"`
}

type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}
