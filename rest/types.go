package rest

import (
	"fmt"
	"time"

	"convosync/domain"
	"convosync/normalize"
)

// APIError is the error body returned by the server on non-2xx
// responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// SendRequest is the outgoing message payload. Attachment descriptors
// come from the upload pipeline and are attached by reference.
type SendRequest struct {
	ConversationID string              `json:"conversation_id" validate:"required"`
	Body           string              `json:"body,omitempty" validate:"max=4000"`
	Kind           domain.MessageKind  `json:"kind,omitempty"`
	Attachments    []domain.Attachment `json:"attachments,omitempty" validate:"max=5"`
	Quoted         *QuotedPayload      `json:"quoted,omitempty"`
	CalendarRef    *CalendarRefPayload `json:"calendar_ref,omitempty"`
	GifURL         string              `json:"gif_url,omitempty"`
}

type QuotedPayload struct {
	MessageID string `json:"message_id" validate:"required"`
	SenderID  string `json:"sender_id"`
	Snippet   string `json:"snippet"`
}

type CalendarRefPayload struct {
	EventID  string    `json:"event_id" validate:"required"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
}

type CreateThreadRequest struct {
	Kind      domain.ConversationKind `json:"kind" validate:"required,oneof=direct group topic"`
	Name      string                  `json:"name,omitempty"`
	MemberIDs []string                `json:"member_ids" validate:"min=1"`
}

// SearchRequest mirrors the server-side message search surface.
type SearchRequest struct {
	Query          string    `json:"query"`
	SenderID       string    `json:"sender_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	After          time.Time `json:"after,omitempty"`
	Before         time.Time `json:"before,omitempty"`
	Limit          int       `json:"limit,omitempty"`
}

// UploadRequest carries one file through the attachment endpoint.
// Data is fully buffered: attachment payloads are small and voice
// notes are captured into a single blob anyway.
type UploadRequest struct {
	FileName       string
	ContentType    string
	Context        string
	ConversationID string
	Data           []byte
}

type rawContact struct {
	UserID      normalize.ID `json:"user_id"`
	DisplayName string       `json:"display_name"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
}

type rawStory struct {
	ID        normalize.ID `json:"id"`
	AuthorID  normalize.ID `json:"author_id"`
	MediaURL  string       `json:"media_url"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type rawQuickReply struct {
	ID   normalize.ID `json:"id"`
	Text string       `json:"text"`
}

type rawAttachmentResponse struct {
	ID       normalize.ID `json:"id"`
	Type     string       `json:"type"`
	URL      string       `json:"url"`
	Name     string       `json:"name,omitempty"`
	Duration float64      `json:"duration,omitempty"`
}
