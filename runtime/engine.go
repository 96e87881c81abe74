// Package runtime holds the conversation synchronization engine: the
// serialized local state, the realtime event router, and the optimistic
// mutation coordinator. It contains no rendering and no wire decoding.
package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/errors"
)

const (
	DefaultTypingTTL  = 3 * time.Second
	DefaultBufferSize = 256
)

type typingRecord struct {
	entry domain.TypingEntry
	gen   uint64
	timer *time.Timer
}

// Engine is the single holder of synchronized conversation state:
// per-conversation message lists, pinned sets, typing maps, and the
// current selection. All mutations are serialized behind one mutex and
// always compute their delta from current state, so two optimistic
// toggles issued back to back compose instead of double counting.
//
// The engine publishes a domain event after every accepted mutation;
// the fanout worker delivers those to presentation adapters and other
// sinks.
type Engine struct {
	mu        sync.Mutex
	log       *slog.Logger
	selfID    string
	typingTTL time.Duration

	messages map[string][]domain.Message
	pinned   map[string]map[string]struct{}
	typing   map[string]map[string]*typingRecord
	selected string

	events  chan event.ConversationEvent
	dropped atomic.Uint64
}

func NewEngine(log *slog.Logger, selfID string, typingTTL time.Duration, bufferSize int) *Engine {
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Engine{
		log:       log,
		selfID:    selfID,
		typingTTL: typingTTL,
		messages:  make(map[string][]domain.Message),
		pinned:    make(map[string]map[string]struct{}),
		typing:    make(map[string]map[string]*typingRecord),
		events:    make(chan event.ConversationEvent, bufferSize),
	}
}

func (e *Engine) SelfID() string { return e.selfID }

// Events exposes the engine's event stream to the fanout worker.
func (e *Engine) Events() <-chan event.ConversationEvent { return e.events }

// Dropped reports events lost because no consumer kept up.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Emit publishes an event on behalf of a collaborator (directory,
// coordinator). Non-blocking like every internal emit.
func (e *Engine) Emit(evt event.ConversationEvent) { e.emit(evt) }

func (e *Engine) emit(evt event.ConversationEvent) {
	select {
	case e.events <- evt:
	default:
		e.dropped.Add(1)
		e.log.Warn("Engine event dropped, sink too slow")
	}
}

// Select marks a conversation as the one currently on screen. Events
// for other conversations still update state, they just do not count
// as "seen".
func (e *Engine) Select(conversationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = conversationID
}

func (e *Engine) Deselect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = ""
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// AppendMessage adds a normalized message to its conversation list.
// Append order is acceptance order; a message whose id is already
// present is a no-op, which makes REST confirmations and socket echoes
// race benignly.
func (e *Engine) AppendMessage(msg domain.Message) bool {
	e.mu.Lock()
	list := e.messages[msg.ConversationID]
	if lo.SomeBy(list, func(m domain.Message) bool { return m.ID == msg.ID }) {
		e.mu.Unlock()
		return false
	}
	e.messages[msg.ConversationID] = append(list, msg)
	e.mu.Unlock()

	e.emit(event.MessageReceived{Conversation: msg.ConversationID, Message: msg})
	return true
}

// ReplaceMessage swaps a local optimistic instance (temporary id) for
// the server-confirmed one, in place. If the confirmed message already
// arrived via socket echo, the temporary instance is simply dropped.
func (e *Engine) ReplaceMessage(conversationID, tempID string, msg domain.Message) {
	e.mu.Lock()
	list := e.messages[conversationID]
	confirmedIdx := lo.IndexOf(lo.Map(list, func(m domain.Message, _ int) string { return m.ID }), msg.ID)
	out := make([]domain.Message, 0, len(list))
	for _, m := range list {
		switch {
		case m.ID == tempID && confirmedIdx >= 0:
			// echo landed first, drop the temp instance
		case m.ID == tempID:
			out = append(out, msg)
		default:
			out = append(out, m)
		}
	}
	e.messages[conversationID] = out
	e.mu.Unlock()

	e.emit(event.MessageReplaced{Conversation: conversationID, TempID: tempID, Message: msg})
}

// SeedMessages replaces a conversation's list with a deduplicated
// authoritative (or cached) history.
func (e *Engine) SeedMessages(conversationID string, msgs []domain.Message) {
	deduped := lo.UniqBy(msgs, func(m domain.Message) string { return m.ID })

	e.mu.Lock()
	e.messages[conversationID] = deduped
	e.mu.Unlock()

	e.emit(event.HistoryLoaded{Conversation: conversationID, Messages: deduped})
}

func (e *Engine) Messages(conversationID string) []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Message(nil), e.messages[conversationID]...)
}

func (e *Engine) Message(conversationID, messageID string) (domain.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Find(e.messages[conversationID], func(m domain.Message) bool { return m.ID == messageID })
}

// ToggleReactionLocal flips the acting user's reaction on a message
// and returns the pre-mutation mapping as the rollback snapshot. The
// delta is computed from current state under the engine lock.
func (e *Engine) ToggleReactionLocal(conversationID, messageID, emoji, userID string) (domain.Reactions, error) {
	e.mu.Lock()
	list := e.messages[conversationID]
	idx := lo.IndexOf(lo.Map(list, func(m domain.Message, _ int) string { return m.ID }), messageID)
	if idx < 0 {
		e.mu.Unlock()
		return nil, errors.ErrUnknownMessage
	}
	prev := list[idx].Reactions.Clone()
	next := prev.Toggle(emoji, userID)
	list[idx].Reactions = next
	e.mu.Unlock()

	e.emit(event.ReactionsChanged{Conversation: conversationID, MessageID: messageID, Reactions: next})
	return prev, nil
}

// SetReactions applies an authoritative (or rollback) mapping.
func (e *Engine) SetReactions(conversationID, messageID string, reactions domain.Reactions) {
	e.mu.Lock()
	list := e.messages[conversationID]
	idx := lo.IndexOf(lo.Map(list, func(m domain.Message, _ int) string { return m.ID }), messageID)
	if idx < 0 {
		e.mu.Unlock()
		return
	}
	list[idx].Reactions = reactions.Clone()
	e.mu.Unlock()

	e.emit(event.ReactionsChanged{Conversation: conversationID, MessageID: messageID, Reactions: reactions.Clone()})
}

// TogglePinLocal flips pinned-set membership and returns the previous
// membership for rollback. Pins only apply to known messages: the
// pinned set stays a subset of the conversation's message list.
func (e *Engine) TogglePinLocal(conversationID, messageID string) (bool, error) {
	e.mu.Lock()
	if _, found := lo.Find(e.messages[conversationID], func(m domain.Message) bool { return m.ID == messageID }); !found {
		e.mu.Unlock()
		return false, errors.ErrUnknownMessage
	}
	set := e.pinned[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		e.pinned[conversationID] = set
	}
	_, wasPinned := set[messageID]
	if wasPinned {
		delete(set, messageID)
	} else {
		set[messageID] = struct{}{}
	}
	e.mu.Unlock()

	e.emit(event.PinChanged{Conversation: conversationID, MessageID: messageID, Pinned: !wasPinned})
	return wasPinned, nil
}

// SetPin applies an authoritative (or rollback) pinned state.
func (e *Engine) SetPin(conversationID, messageID string, pinned bool) {
	e.mu.Lock()
	if _, found := lo.Find(e.messages[conversationID], func(m domain.Message) bool { return m.ID == messageID }); !found {
		e.mu.Unlock()
		return
	}
	set := e.pinned[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		e.pinned[conversationID] = set
	}
	if pinned {
		set[messageID] = struct{}{}
	} else {
		delete(set, messageID)
	}
	e.mu.Unlock()

	e.emit(event.PinChanged{Conversation: conversationID, MessageID: messageID, Pinned: pinned})
}

// Pinned returns the pinned messages in message-list order.
func (e *Engine) Pinned(conversationID string) []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := e.pinned[conversationID]
	return lo.Filter(e.messages[conversationID], func(m domain.Message, _ int) bool {
		_, ok := set[m.ID]
		return ok
	})
}

// RemoveMessage deletes a message from local state, including its
// pinned-set entry so the subset invariant holds.
func (e *Engine) RemoveMessage(conversationID, messageID string) {
	e.mu.Lock()
	e.messages[conversationID] = lo.Reject(e.messages[conversationID], func(m domain.Message, _ int) bool {
		return m.ID == messageID
	})
	if set := e.pinned[conversationID]; set != nil {
		delete(set, messageID)
	}
	e.mu.Unlock()

	e.emit(event.MessageDeleted{Conversation: conversationID, MessageID: messageID})
}

// MarkRead flips the delivered/read flag on every message of the
// conversation (counterpart read receipt).
func (e *Engine) MarkRead(conversationID string) {
	e.mu.Lock()
	list := e.messages[conversationID]
	for i := range list {
		list[i].Read = true
	}
	e.mu.Unlock()

	e.emit(event.ConversationRead{Conversation: conversationID})
}

// TypingStart records a typing signal and arms (or re-arms) the
// per-entry expiry timer. A signal from the local user is ignored.
func (e *Engine) TypingStart(conversationID, userID, displayName string) {
	if userID == e.selfID || userID == "" {
		return
	}

	e.mu.Lock()
	perConv := e.typing[conversationID]
	if perConv == nil {
		perConv = make(map[string]*typingRecord)
		e.typing[conversationID] = perConv
	}
	rec := perConv[userID]
	if rec == nil {
		rec = &typingRecord{}
		perConv[userID] = rec
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.entry = domain.TypingEntry{UserID: userID, DisplayName: displayName, LastSignal: time.Now()}
	rec.gen++
	gen := rec.gen
	rec.timer = time.AfterFunc(e.typingTTL, func() {
		e.expireTyping(conversationID, userID, gen)
	})
	e.mu.Unlock()

	e.emit(event.TypingStarted{Conversation: conversationID, UserID: userID, UserName: displayName})
}

// TypingStop removes a typing entry ahead of its expiry.
func (e *Engine) TypingStop(conversationID, userID string) {
	e.mu.Lock()
	perConv := e.typing[conversationID]
	rec := perConv[userID]
	if rec == nil {
		e.mu.Unlock()
		return
	}
	if rec.timer != nil {
		rec.timer.Stop()
	}
	delete(perConv, userID)
	e.mu.Unlock()

	e.emit(event.TypingStopped{Conversation: conversationID, UserID: userID})
}

// expireTyping fires from the per-entry timer. The generation check
// discards a stale timer whose entry was refreshed in the meantime.
func (e *Engine) expireTyping(conversationID, userID string, gen uint64) {
	e.mu.Lock()
	rec := e.typing[conversationID][userID]
	if rec == nil || rec.gen != gen {
		e.mu.Unlock()
		return
	}
	delete(e.typing[conversationID], userID)
	e.mu.Unlock()

	e.emit(event.TypingStopped{Conversation: conversationID, UserID: userID})
}

func (e *Engine) Typing(conversationID string) []domain.TypingEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := lo.Map(lo.Values(e.typing[conversationID]), func(r *typingRecord, _ int) domain.TypingEntry {
		return r.entry
	})
	return entries
}

// Counts reports tracked conversations and cached message totals for
// the stats view.
func (e *Engine) Counts() (conversations, messages int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, list := range e.messages {
		messages += len(list)
	}
	return len(e.messages), messages
}
