// Package normalize turns heterogeneous wire payloads into the one
// canonical in-memory shape the engine works with. Every function here
// is pure and total: malformed JSON in an optional field degrades to an
// empty default, it never fails the caller.
package normalize

import (
	"encoding/json"

	"convosync/domain"

	"github.com/samber/lo"
)

// Message canonicalizes a raw message record from any source.
func Message(raw RawMessage) domain.Message {
	body := ""
	if raw.Body != nil {
		body = *raw.Body
	}

	kind := domain.MessageKind(raw.Kind)
	switch kind {
	case domain.KindText, domain.KindGif, domain.KindSystem:
	default:
		kind = domain.KindText
	}

	msg := domain.Message{
		ID:             raw.ID.String(),
		ConversationID: raw.ConversationID.String(),
		SenderID:       raw.SenderID.String(),
		SenderName:     raw.SenderName,
		Body:           body,
		Kind:           kind,
		Attachments:    Attachments(raw.Attachments),
		CalendarRefs:   CalendarRefs(raw.CalendarRefs),
		TaskRefs:       TaskRefs(raw.TaskRefs),
		Mentions:       Mentions(raw.Mentions),
		Reactions:      Reactions(raw.Reactions),
		CreatedAt:      raw.CreatedAt,
		Read:           raw.Read,
	}
	if raw.Quoted != nil {
		msg.Quoted = &domain.QuotedRef{
			MessageID: raw.Quoted.MessageID.String(),
			SenderID:  raw.Quoted.SenderID.String(),
			Snippet:   raw.Quoted.Snippet,
		}
	}
	return msg
}

// Thread canonicalizes a raw conversation record. The last-message
// summary goes through the same tolerant message normalization.
func Thread(raw RawThread) domain.Conversation {
	kind := domain.ConversationKind(raw.Kind)
	switch kind {
	case domain.Direct, domain.Group, domain.Topic:
	default:
		kind = domain.Direct
	}

	conv := domain.Conversation{
		ID:   raw.ID.String(),
		Kind: kind,
		Name: raw.Name,
		Members: lo.Map(raw.Members, func(m RawMember, _ int) domain.Member {
			return domain.Member{UserID: m.UserID.String(), DisplayName: m.DisplayName, Role: m.Role}
		}),
		Unread:    max(raw.Unread, 0),
		UpdatedAt: raw.UpdatedAt,
		Hidden:    raw.Hidden,
	}

	if len(raw.LastMessage) > 0 {
		var rawMsg RawMessage
		if err := json.Unmarshal(raw.LastMessage, &rawMsg); err == nil && rawMsg.ID != "" {
			last := Message(rawMsg)
			conv.LastMessage = &domain.LastMessage{
				ID:       last.ID,
				Snippet:  last.Snippet(80),
				SenderID: last.SenderID,
				At:       last.CreatedAt,
			}
		}
	}
	return conv
}

// listField decodes an optional wire field that may be an array, a
// JSON-encoded string holding an array, or absent. Any parse failure
// yields an empty list.
func listField[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		if items == nil {
			items = []T{}
		}
		return items
	}

	// Second chance: the field is a string containing JSON.
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &items); err == nil && items != nil {
			return items
		}
	}
	return []T{}
}

func Attachments(raw json.RawMessage) []domain.Attachment {
	return lo.Map(listField[RawAttachment](raw), func(a RawAttachment, _ int) domain.Attachment {
		kind := domain.AttachmentKind(a.Type)
		switch kind {
		case domain.AttachmentImage, domain.AttachmentAudio, domain.AttachmentFile:
		default:
			kind = domain.AttachmentFile
		}
		return domain.Attachment{
			ID:       a.ID.String(),
			Kind:     kind,
			URL:      a.URL,
			Name:     a.Name,
			Duration: formatDuration(a.Duration),
		}
	})
}

func CalendarRefs(raw json.RawMessage) []domain.CalendarRef {
	return lo.Map(listField[RawCalendarRef](raw), func(r RawCalendarRef, _ int) domain.CalendarRef {
		return domain.CalendarRef{EventID: r.EventID.String(), Title: r.Title, StartsAt: r.StartsAt}
	})
}

func TaskRefs(raw json.RawMessage) []domain.TaskRef {
	return lo.Map(listField[RawTaskRef](raw), func(r RawTaskRef, _ int) domain.TaskRef {
		return domain.TaskRef{TaskID: r.TaskID.String(), Title: r.Title}
	})
}

func Mentions(raw json.RawMessage) []string {
	return lo.Map(listField[ID](raw), func(id ID, _ int) string { return id.String() })
}

// Reactions unifies the two reaction shapes the server emits: a list of
// {emoji, count, users} records, or an already-normalized mapping from
// emoji to user ids. Output is always the mapping form with duplicate
// user ids dropped.
func Reactions(raw json.RawMessage) domain.Reactions {
	if len(raw) == 0 {
		return domain.Reactions{}
	}

	var mapped map[string][]ID
	if err := json.Unmarshal(raw, &mapped); err == nil {
		out := domain.Reactions{}
		for emoji, users := range mapped {
			ids := lo.Uniq(lo.Map(users, func(id ID, _ int) string { return id.String() }))
			if len(ids) > 0 {
				out[emoji] = ids
			}
		}
		return out
	}

	var records []rawReactionRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		out := domain.Reactions{}
		for _, rec := range records {
			ids := lo.Uniq(lo.Map(rec.Users, func(u rawReactionUser, _ int) string { return u.UserID.String() }))
			if len(ids) > 0 {
				out[rec.Emoji] = ids
			}
		}
		return out
	}
	return domain.Reactions{}
}

// ToRaw renders a canonical message back into wire form. Normalizing
// the result yields the original message unchanged (idempotence).
func ToRaw(m domain.Message) RawMessage {
	raw := RawMessage{
		ID:             ID(m.ID),
		ConversationID: ID(m.ConversationID),
		SenderID:       ID(m.SenderID),
		SenderName:     m.SenderName,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
	}
	if m.Body != "" {
		raw.Body = lo.ToPtr(m.Body)
	}
	if m.Quoted != nil {
		raw.Quoted = &RawQuoted{
			MessageID: ID(m.Quoted.MessageID),
			SenderID:  ID(m.Quoted.SenderID),
			Snippet:   m.Quoted.Snippet,
		}
	}

	raw.Attachments = mustMarshal(lo.Map(m.Attachments, func(a domain.Attachment, _ int) RawAttachment {
		return RawAttachment{
			ID:       ID(a.ID),
			Type:     string(a.Kind),
			URL:      a.URL,
			Name:     a.Name,
			Duration: a.Duration.Seconds(),
		}
	}))
	raw.CalendarRefs = mustMarshal(lo.Map(m.CalendarRefs, func(r domain.CalendarRef, _ int) RawCalendarRef {
		return RawCalendarRef{EventID: ID(r.EventID), Title: r.Title, StartsAt: r.StartsAt}
	}))
	raw.TaskRefs = mustMarshal(lo.Map(m.TaskRefs, func(r domain.TaskRef, _ int) RawTaskRef {
		return RawTaskRef{TaskID: ID(r.TaskID), Title: r.Title}
	}))
	raw.Mentions = mustMarshal(m.Mentions)
	raw.Reactions = mustMarshal(m.Reactions)
	return raw
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
