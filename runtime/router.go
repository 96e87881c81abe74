package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"convosync/contract"
	"convosync/domain"
	"convosync/normalize"
	"convosync/realtime"
)

// Router is the supervised worker consuming the realtime channel. It
// decodes envelopes, normalizes payloads, and applies them to engine
// and directory state. Room membership lives here: the router tracks
// which conversations it joined so it can re-join them after every
// reconnect, because server-side room membership does not survive a
// new socket.
type Router struct {
	log       *slog.Logger
	engine    *Engine
	directory contract.Directory
	transport contract.Transport

	mu    sync.Mutex
	rooms map[string]struct{}
}

func NewRouter(log *slog.Logger, engine *Engine, transport contract.Transport) *Router {
	return &Router{
		log:       log,
		engine:    engine,
		transport: transport,
		rooms:     make(map[string]struct{}),
	}
}

// SetDirectory wires the directory after construction. The directory
// needs the router for room joins, so one of the two is attached late.
func (r *Router) SetDirectory(directory contract.Directory) {
	r.directory = directory
}

// Join subscribes a conversation to live updates. Joining is sticky:
// the room is re-entered on every reconnect until Leave is called.
func (r *Router) Join(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	r.rooms[conversationID] = struct{}{}
	r.mu.Unlock()
	return r.transport.JoinRoom(ctx, conversationID)
}

func (r *Router) Leave(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	delete(r.rooms, conversationID)
	r.mu.Unlock()
	return r.transport.LeaveRoom(ctx, conversationID)
}

func (r *Router) joinedRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.rooms)
}

// Run consumes envelopes until the context ends or the transport
// closes its channel. A malformed payload is logged and skipped; one
// bad event never takes the loop down.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-r.transport.Events():
			if !ok {
				return nil
			}
			r.dispatch(ctx, env)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, env realtime.Envelope) {
	switch env.Type {
	case realtime.EventConnected:
		r.rejoin(ctx)
	case realtime.EventDisconnected:
		r.log.Info("Realtime channel lost, transport is reconnecting")
	case realtime.EventNewMessage:
		r.onNewMessage(env.Payload)
	case realtime.EventReaction:
		r.onReaction(env.Payload)
	case realtime.EventPin:
		r.onPin(env.Payload)
	case realtime.EventTypingStart:
		r.onTyping(env.Payload, true)
	case realtime.EventTypingStop:
		r.onTyping(env.Payload, false)
	case realtime.EventRead:
		r.onRead(env.Payload)
	case realtime.EventConversationCreated:
		r.onConversationCreated(env.Payload)
	case realtime.EventMembersUpdated:
		r.onMembersUpdated(env.Payload)
	default:
		r.log.Debug("Ignoring unknown realtime event", slog.String("type", env.Type))
	}
}

func (r *Router) rejoin(ctx context.Context) {
	rooms := r.joinedRooms()
	r.log.Info("Realtime channel up, rejoining rooms", slog.Int("rooms", len(rooms)))
	for _, room := range rooms {
		if err := r.transport.JoinRoom(ctx, room); err != nil {
			r.log.Warn("Room rejoin failed",
				slog.String("conversation", room),
				slog.String("error", err.Error()))
		}
	}
}

func (r *Router) onNewMessage(payload json.RawMessage) {
	var p realtime.NewMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed new_message payload", slog.String("error", err.Error()))
		return
	}

	msg := normalize.Message(p.Message)
	if msg.ConversationID == "" {
		msg.ConversationID = p.ConversationID.String()
	}
	if msg.ID == "" || msg.ConversationID == "" {
		r.log.Warn("Dropping message without identity")
		return
	}

	if !r.engine.AppendMessage(msg) {
		// duplicate delivery or our own REST confirmation landed first
		return
	}

	r.directory.Touch(msg.ConversationID, domain.LastMessage{
		ID:       msg.ID,
		Snippet:  msg.Snippet(80),
		SenderID: msg.SenderID,
		At:       msg.CreatedAt,
	})
	if msg.SenderID != r.engine.SelfID() && r.engine.Selected() != msg.ConversationID {
		r.directory.IncrementUnread(msg.ConversationID)
	}
}

func (r *Router) onReaction(payload json.RawMessage) {
	var p realtime.ReactionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed reaction payload", slog.String("error", err.Error()))
		return
	}
	// Server reaction events are authoritative full mappings, applied
	// over whatever optimistic state is present.
	r.engine.SetReactions(p.ConversationID.String(), p.MessageID.String(), normalize.Reactions(p.Reactions))
}

func (r *Router) onPin(payload json.RawMessage) {
	var p realtime.PinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed pin payload", slog.String("error", err.Error()))
		return
	}
	msg := normalize.Message(p.Message)
	conversationID := p.ConversationID.String()
	if conversationID == "" {
		conversationID = msg.ConversationID
	}
	// The pin event carries the full message; append keeps the pinned
	// set a subset of known messages even when history missed it.
	r.engine.AppendMessage(msg)
	r.engine.SetPin(conversationID, msg.ID, p.IsPinned)
}

func (r *Router) onTyping(payload json.RawMessage, started bool) {
	var p realtime.TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed typing payload", slog.String("error", err.Error()))
		return
	}
	if started {
		r.engine.TypingStart(p.ConversationID.String(), p.UserID.String(), p.UserName)
		return
	}
	r.engine.TypingStop(p.ConversationID.String(), p.UserID.String())
}

func (r *Router) onRead(payload json.RawMessage) {
	var p realtime.ReadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed read payload", slog.String("error", err.Error()))
		return
	}
	r.engine.MarkRead(p.ConversationID.String())
}

func (r *Router) onConversationCreated(payload json.RawMessage) {
	var p realtime.ConversationCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed conversation payload", slog.String("error", err.Error()))
		return
	}
	r.directory.Upsert(normalize.Thread(p.Conversation))
}

func (r *Router) onMembersUpdated(payload json.RawMessage) {
	var p realtime.MembersUpdatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Malformed members payload", slog.String("error", err.Error()))
		return
	}
	members := lo.Map(p.Members, func(m normalize.RawMember, _ int) domain.Member {
		return domain.Member{UserID: m.UserID.String(), DisplayName: m.DisplayName, Role: m.Role}
	})
	r.directory.ApplyMembers(p.ConversationID.String(), members)
}
