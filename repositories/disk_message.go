package repositories

import (
	"time"

	"github.com/samber/lo"

	"convosync/domain"
)

// diskMessage is the on-disk JSON shape. It flattens the domain type
// into stable field names so cached databases survive refactors of
// the in-memory struct.
type diskMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	SenderID       string           `json:"sender_id"`
	SenderName     string           `json:"sender_name,omitempty"`
	Body           string           `json:"body,omitempty"`
	Kind           string           `json:"kind,omitempty"`
	Attachments    []diskAttachment `json:"attachments,omitempty"`
	Mentions       []string         `json:"mentions,omitempty"`
	Quoted         *diskQuoted      `json:"quoted,omitempty"`
	Reactions      domain.Reactions `json:"reactions,omitempty"`
	At             int64            `json:"at"`
	Read           bool             `json:"read,omitempty"`
}

type diskAttachment struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind"`
	URL        string `json:"url"`
	Name       string `json:"name,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

type diskQuoted struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

func toDiskMessage(m domain.Message) diskMessage {
	disk := diskMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Body:           m.Body,
		Kind:           string(m.Kind),
		Mentions:       m.Mentions,
		Reactions:      m.Reactions,
		At:             m.CreatedAt.UnixNano(),
		Read:           m.Read,
		Attachments: lo.Map(m.Attachments, func(a domain.Attachment, _ int) diskAttachment {
			return diskAttachment{
				ID:         a.ID,
				Kind:       string(a.Kind),
				URL:        a.URL,
				Name:       a.Name,
				DurationMs: a.Duration.Milliseconds(),
			}
		}),
	}
	if m.Quoted != nil {
		disk.Quoted = &diskQuoted{MessageID: m.Quoted.MessageID, SenderID: m.Quoted.SenderID, Snippet: m.Quoted.Snippet}
	}
	return disk
}

func fromDiskMessage(disk diskMessage) domain.Message {
	msg := domain.Message{
		ID:             disk.ID,
		ConversationID: disk.ConversationID,
		SenderID:       disk.SenderID,
		SenderName:     disk.SenderName,
		Body:           disk.Body,
		Kind:           domain.MessageKind(disk.Kind),
		Mentions:       disk.Mentions,
		Reactions:      disk.Reactions,
		CreatedAt:      time.Unix(0, disk.At).UTC(),
		Read:           disk.Read,
		Attachments: lo.Map(disk.Attachments, func(a diskAttachment, _ int) domain.Attachment {
			return domain.Attachment{
				ID:       a.ID,
				Kind:     domain.AttachmentKind(a.Kind),
				URL:      a.URL,
				Name:     a.Name,
				Duration: time.Duration(a.DurationMs) * time.Millisecond,
			}
		}),
	}
	if disk.Quoted != nil {
		msg.Quoted = &domain.QuotedRef{MessageID: disk.Quoted.MessageID, SenderID: disk.Quoted.SenderID, Snippet: disk.Quoted.Snippet}
	}
	if msg.Kind == "" {
		msg.Kind = domain.KindText
	}
	return msg
}
