// Package adapter builds presentation view models from engine and
// directory snapshots. A view model is plain data: the desktop shell
// renders list and thread side by side, the mobile shell renders one
// screen at a time, and both consume the same structures.
package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"convosync/domain"
)

const snippetLength = 64

// ConversationRow is one line of the conversation list.
type ConversationRow struct {
	ID       string
	Title    string
	Snippet  string
	At       time.Time
	Unread   int
	Kind     domain.ConversationKind
	Selected bool
}

// MessageView is one rendered message.
type MessageView struct {
	ID          string
	SenderName  string
	Body        string
	Kind        domain.MessageKind
	Attachments []string
	Quoted      string
	Reactions   map[string]int
	Pinned      bool
	Own         bool
	Pending     bool
	Read        bool
	At          time.Time
}

// ThreadView is the open conversation surface.
type ThreadView struct {
	ConversationID string
	Title          string
	Messages       []MessageView
	Pinned         []MessageView
	TypingLine     string
}

// StateSource is the engine surface the adapters read.
type StateSource interface {
	SelfID() string
	Selected() string
	Messages(conversationID string) []domain.Message
	Pinned(conversationID string) []domain.Message
	Typing(conversationID string) []domain.TypingEntry
}

// DirectorySource is the directory surface the adapters read.
type DirectorySource interface {
	Ordered() []domain.Conversation
	Conversation(id string) (domain.Conversation, bool)
}

// Presenter derives view models on demand. It holds no state of its
// own; every call reads fresh snapshots.
type Presenter struct {
	engine    StateSource
	directory DirectorySource
}

func NewPresenter(engine StateSource, directory DirectorySource) *Presenter {
	return &Presenter{engine: engine, directory: directory}
}

// Rows builds the conversation list in directory order.
func (p *Presenter) Rows() []ConversationRow {
	selfID := p.engine.SelfID()
	selected := p.engine.Selected()
	return lo.Map(p.directory.Ordered(), func(c domain.Conversation, _ int) ConversationRow {
		row := ConversationRow{
			ID:       c.ID,
			Title:    c.DisplayName(selfID),
			At:       c.LastActivity(),
			Unread:   c.Unread,
			Kind:     c.Kind,
			Selected: c.ID == selected,
		}
		if row.Title == "" {
			row.Title = c.ID
		}
		if c.LastMessage != nil {
			row.Snippet = truncate(c.LastMessage.Snippet, snippetLength)
		}
		return row
	})
}

// Thread builds the open-conversation view for the selected (or any)
// conversation.
func (p *Presenter) Thread(conversationID string) ThreadView {
	selfID := p.engine.SelfID()
	pinnedSet := lo.SliceToMap(p.engine.Pinned(conversationID), func(m domain.Message) (string, struct{}) {
		return m.ID, struct{}{}
	})

	view := ThreadView{
		ConversationID: conversationID,
		TypingLine:     typingLine(p.engine.Typing(conversationID)),
	}
	if conv, ok := p.directory.Conversation(conversationID); ok {
		view.Title = conv.DisplayName(selfID)
	}

	view.Messages = lo.Map(p.engine.Messages(conversationID), func(m domain.Message, _ int) MessageView {
		_, pinned := pinnedSet[m.ID]
		return toMessageView(m, selfID, pinned)
	})
	view.Pinned = lo.Filter(view.Messages, func(v MessageView, _ int) bool { return v.Pinned })
	return view
}

func toMessageView(m domain.Message, selfID string, pinned bool) MessageView {
	view := MessageView{
		ID:         m.ID,
		SenderName: m.SenderName,
		Body:       m.Body,
		Kind:       m.Kind,
		Pinned:     pinned,
		Own:        m.SenderID == selfID,
		Pending:    m.Pending,
		Read:       m.Read,
		At:         m.CreatedAt,
		Attachments: lo.Map(m.Attachments, func(a domain.Attachment, _ int) string {
			return a.Label()
		}),
		Reactions: lo.MapValues(map[string][]string(m.Reactions), func(users []string, _ string) int {
			return len(users)
		}),
	}
	if view.SenderName == "" {
		view.SenderName = m.SenderID
	}
	if m.Quoted != nil {
		view.Quoted = m.Quoted.Snippet
	}
	return view
}

// typingLine formats the indicator under the composer. Three names is
// the most anyone wants to read.
func typingLine(entries []domain.TypingEntry) string {
	if len(entries) == 0 {
		return ""
	}
	names := lo.Map(entries, func(e domain.TypingEntry, _ int) string {
		if e.DisplayName != "" {
			return e.DisplayName
		}
		return e.UserID
	})
	switch len(names) {
	case 1:
		return names[0] + " is typing…"
	case 2, 3:
		return strings.Join(names, ", ") + " are typing…"
	default:
		return fmt.Sprintf("%d people are typing…", len(names))
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
