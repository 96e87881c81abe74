// Package projection builds the conversation directory: the ordered,
// unread-annotated list of conversations plus the contact, story, and
// quick-reply side surfaces. It owns unread bookkeeping and the open
// flow; message state belongs to the runtime engine.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/errors"
	"convosync/repositories"
	"convosync/rest"
	"convosync/runtime"
)

// Directory is the conversation-list projection. All reads hand out
// copies; all writes are serialized behind the mutex.
type Directory struct {
	log    *slog.Logger
	api    rest.IConversationAPI
	engine *runtime.Engine
	router *runtime.Router
	cache  repositories.IMessageCache

	mu            sync.Mutex
	conversations map[string]domain.Conversation
	contacts      map[string]domain.Contact
	stories       []domain.Story
	quickReplies  []domain.QuickReply
}

func NewDirectory(log *slog.Logger, api rest.IConversationAPI, engine *runtime.Engine, router *runtime.Router, cache repositories.IMessageCache) *Directory {
	return &Directory{
		log:           log,
		api:           api,
		engine:        engine,
		router:        router,
		cache:         cache,
		conversations: make(map[string]domain.Conversation),
		contacts:      make(map[string]domain.Contact),
	}
}

// Load fetches threads, contacts, stories, and quick replies. The four
// fetches run concurrently and fail independently: a dead stories
// endpoint degrades to an empty rail and a toast, it never blocks the
// conversation list.
func (d *Directory) Load(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		threads, err := d.api.ListThreads(ctx)
		if err != nil {
			d.degrade("conversations", err)
			return
		}
		d.mu.Lock()
		for _, t := range threads {
			d.conversations[t.ID] = t
		}
		d.mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		contacts, err := d.api.ListContacts(ctx)
		if err != nil {
			d.degrade("contacts", err)
			return
		}
		d.mu.Lock()
		for _, c := range contacts {
			d.contacts[c.UserID] = c
		}
		d.mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		stories, err := d.api.ListStories(ctx)
		if err != nil {
			d.degrade("stories", err)
			return
		}
		d.mu.Lock()
		d.stories = stories
		d.mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		replies, err := d.api.ListQuickReplies(ctx)
		if err != nil {
			d.degrade("quick replies", err)
			return
		}
		d.mu.Lock()
		d.quickReplies = replies
		d.mu.Unlock()
	}()

	wg.Wait()
}

func (d *Directory) degrade(surface string, err error) {
	d.log.Warn("Directory surface unavailable",
		slog.String("surface", surface),
		slog.String("error", err.Error()))
	d.engine.Emit(event.Toast{Level: event.ToastError, Text: "Could not load " + surface})
}

// Ordered returns visible conversations by recency, newest activity
// first. The sort is stable so equal-activity conversations keep
// their relative order between renders.
func (d *Directory) Ordered() []domain.Conversation {
	d.mu.Lock()
	list := lo.Filter(lo.Values(d.conversations), func(c domain.Conversation, _ int) bool {
		return !c.Hidden
	})
	d.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastActivity().After(list[j].LastActivity())
	})
	return list
}

func (d *Directory) Conversation(id string) (domain.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[id]
	return c, ok
}

func (d *Directory) Contacts() []domain.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Values(d.contacts)
}

func (d *Directory) Stories() []domain.Story {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Story(nil), d.stories...)
}

func (d *Directory) QuickReplies() []domain.QuickReply {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.QuickReply(nil), d.quickReplies...)
}

// Touch bumps a conversation's recency with its new last message.
// Unknown conversations get a placeholder entry so a push for a
// thread created elsewhere still shows up in the list.
func (d *Directory) Touch(conversationID string, last domain.LastMessage) {
	d.mu.Lock()
	conv, ok := d.conversations[conversationID]
	if !ok {
		conv = domain.Conversation{ID: conversationID, Kind: domain.Group}
	}
	conv.LastMessage = &last
	if last.At.After(conv.UpdatedAt) {
		conv.UpdatedAt = last.At
	}
	d.conversations[conversationID] = conv
	d.mu.Unlock()
}

func (d *Directory) IncrementUnread(conversationID string) {
	d.mu.Lock()
	conv, ok := d.conversations[conversationID]
	if !ok {
		d.mu.Unlock()
		return
	}
	conv.Unread++
	unread := conv.Unread
	d.conversations[conversationID] = conv
	d.mu.Unlock()

	d.engine.Emit(event.UnreadChanged{Conversation: conversationID, Unread: unread})
}

// ResetUnread zeroes the unread counter. The zeroing is final: if the
// server-side mark-read fails the counter is not restored, because
// the user did look at the conversation.
func (d *Directory) ResetUnread(conversationID string) {
	d.mu.Lock()
	conv, ok := d.conversations[conversationID]
	if !ok || conv.Unread == 0 {
		d.mu.Unlock()
		return
	}
	conv.Unread = 0
	d.conversations[conversationID] = conv
	d.mu.Unlock()

	d.engine.Emit(event.UnreadChanged{Conversation: conversationID, Unread: 0})
}

func (d *Directory) Upsert(conversation domain.Conversation) {
	d.mu.Lock()
	d.conversations[conversation.ID] = conversation
	d.mu.Unlock()

	d.engine.Emit(event.ConversationCreated{Conversation: conversation})
}

func (d *Directory) ApplyMembers(conversationID string, members []domain.Member) {
	d.mu.Lock()
	conv, ok := d.conversations[conversationID]
	if !ok {
		d.mu.Unlock()
		return
	}
	conv.Members = members
	d.conversations[conversationID] = conv
	d.mu.Unlock()

	d.engine.Emit(event.MembersUpdated{Conversation: conversationID, Members: members})
}

// Hide removes a conversation from the visible list without deleting
// any local state. A new message for it makes it visible again.
func (d *Directory) Hide(conversationID string) {
	d.mu.Lock()
	if conv, ok := d.conversations[conversationID]; ok {
		conv.Hidden = true
		d.conversations[conversationID] = conv
	}
	d.mu.Unlock()
}

// Open selects a conversation: join its realtime room, paint cached
// history immediately, fetch the authoritative history, and clear the
// unread counter. The unread zeroing happens up front and is never
// rolled back; the server-side mark-read runs in the background and
// only raises a toast on failure.
func (d *Directory) Open(ctx context.Context, conversationID string) error {
	if _, ok := d.Conversation(conversationID); !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConversation, conversationID)
	}

	d.engine.Select(conversationID)
	d.ResetUnread(conversationID)

	if err := d.router.Join(ctx, conversationID); err != nil {
		d.log.Warn("Room join failed, relying on reconnect",
			slog.String("conversation", conversationID),
			slog.String("error", err.Error()))
	}

	// Cached history paints first. The cache returns newest-first.
	if d.cache != nil {
		if cached, _, err := d.cache.Recent(conversationID, nil); err == nil && len(cached) > 0 {
			d.engine.SeedMessages(conversationID, lo.Reverse(cached))
		}
	}

	go func() {
		if err := d.api.MarkRead(context.WithoutCancel(ctx), conversationID); err != nil {
			d.log.Warn("Mark read failed",
				slog.String("conversation", conversationID),
				slog.String("error", err.Error()))
			d.engine.Emit(event.Toast{Level: event.ToastError, Text: "Could not sync read state"})
		}
	}()

	messages, err := d.api.GetMessages(ctx, conversationID)
	if err != nil {
		d.engine.Emit(event.Toast{Level: event.ToastError, Text: "Could not load messages"})
		return err
	}
	d.engine.SeedMessages(conversationID, messages)
	return nil
}

// Close deselects the current conversation but keeps its room joined
// so background messages still bump recency and unread counts.
func (d *Directory) Close() {
	d.engine.Deselect()
}

// StartDirect finds or creates the direct conversation with a contact
// and opens it.
func (d *Directory) StartDirect(ctx context.Context, contactID string) (domain.Conversation, error) {
	d.mu.Lock()
	existing, found := lo.Find(lo.Values(d.conversations), func(c domain.Conversation) bool {
		if c.Kind != domain.Direct {
			return false
		}
		return lo.SomeBy(c.Members, func(m domain.Member) bool { return m.UserID == contactID })
	})
	d.mu.Unlock()

	if found {
		return existing, d.Open(ctx, existing.ID)
	}

	created, err := d.api.CreateThread(ctx, rest.CreateThreadRequest{
		Kind:      domain.Direct,
		MemberIDs: []string{contactID},
	})
	if err != nil {
		d.engine.Emit(event.Toast{Level: event.ToastError, Text: "Could not start conversation"})
		return domain.Conversation{}, err
	}
	d.Upsert(created)
	return created, d.Open(ctx, created.ID)
}
