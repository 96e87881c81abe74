package normalize

import (
	"encoding/json"
	"time"
)

// ID tolerates servers that serialize identifiers as JSON numbers as
// well as strings. It always normalizes to the string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
		return nil
	}
	// Unknown shape degrades to empty, never to an error.
	*id = ""
	return nil
}

func (id ID) String() string { return string(id) }

// RawMessage is the wire shape of a message as any source delivers it:
// initial fetch, socket push, or send response. The optional list
// fields are kept raw because each of them may independently arrive
// already structured, as a JSON-encoded string, or not at all.
type RawMessage struct {
	ID             ID              `json:"id"`
	ConversationID ID              `json:"conversation_id"`
	SenderID       ID              `json:"sender_id"`
	SenderName     string          `json:"sender_name,omitempty"`
	Body           *string         `json:"body,omitempty"`
	Kind           string          `json:"kind,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Attachments    json.RawMessage `json:"attachments,omitempty"`
	CalendarRefs   json.RawMessage `json:"calendar_refs,omitempty"`
	TaskRefs       json.RawMessage `json:"task_refs,omitempty"`
	Mentions       json.RawMessage `json:"mentions,omitempty"`
	Reactions      json.RawMessage `json:"reactions,omitempty"`
	Quoted         *RawQuoted      `json:"quoted,omitempty"`
	Read           bool            `json:"read,omitempty"`
}

type RawQuoted struct {
	MessageID ID     `json:"message_id"`
	SenderID  ID     `json:"sender_id"`
	Snippet   string `json:"snippet"`
}

type RawAttachment struct {
	ID       ID      `json:"id"`
	Type     string  `json:"type"`
	URL      string  `json:"url"`
	Name     string  `json:"name,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds
}

type RawCalendarRef struct {
	EventID  ID        `json:"event_id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
}

type RawTaskRef struct {
	TaskID ID     `json:"task_id"`
	Title  string `json:"title"`
}

type rawReactionUser struct {
	UserID ID `json:"user_id"`
}

type rawReactionRecord struct {
	Emoji string            `json:"emoji"`
	Count int               `json:"count"`
	Users []rawReactionUser `json:"users"`
}

// RawThread is the wire shape of a conversation record.
type RawThread struct {
	ID          ID              `json:"id"`
	Kind        string          `json:"kind"`
	Name        string          `json:"name,omitempty"`
	Members     []RawMember     `json:"members,omitempty"`
	LastMessage json.RawMessage `json:"last_message,omitempty"`
	Unread      int             `json:"unread_count"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Hidden      bool            `json:"hidden,omitempty"`
}

type RawMember struct {
	UserID      ID     `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func formatDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
