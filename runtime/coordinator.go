package runtime

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/errors"
	"convosync/rest"
)

// Coordinator runs optimistic mutations: apply locally first, then
// confirm against the server, and revert the local state from the
// pre-mutation snapshot when the request fails. Every mutation moves
// through an explicit pending-local → confirmed | reverted lifecycle,
// published as MutationTransition events. Reverts are paired with an
// error toast so the user learns the action did not stick.
type Coordinator struct {
	log    *slog.Logger
	engine *Engine
	api    rest.IConversationAPI
	ledger mutationLedger
}

func NewCoordinator(log *slog.Logger, engine *Engine, api rest.IConversationAPI) *Coordinator {
	return &Coordinator{log: log, engine: engine, api: api}
}

// InFlight reports how many optimistic mutations are still waiting
// for the server's answer.
func (c *Coordinator) InFlight() int {
	return c.ledger.count()
}

// begin registers a pending-local mutation after its delta has been
// applied to engine state.
func (c *Coordinator) begin(kind MutationKind, conversationID, messageID string) *Mutation {
	m := newMutation(kind, conversationID, messageID)
	c.ledger.add(m)
	c.publish(m)
	return m
}

// settle moves a mutation to its terminal state.
func (c *Coordinator) settle(m *Mutation, state MutationState) {
	m.State = state
	c.ledger.remove(m.ID)
	c.publish(m)
}

func (c *Coordinator) publish(m *Mutation) {
	c.engine.emit(event.MutationTransition{
		Conversation: m.ConversationID,
		MessageID:    m.MessageID,
		MutationID:   m.ID,
		Kind:         string(m.Kind),
		State:        string(m.State),
	})
}

// ToggleReaction flips the local user's reaction on a message. The
// delta is computed from current local state, so a rapid double toggle
// issues two independent mutations that cancel out instead of
// colliding.
func (c *Coordinator) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	prev, err := c.engine.ToggleReactionLocal(conversationID, messageID, emoji, c.engine.SelfID())
	if err != nil {
		return err
	}
	m := c.begin(MutationReaction, conversationID, messageID)

	if err := c.api.React(ctx, conversationID, messageID, emoji); err != nil {
		c.log.Warn("Reaction toggle rejected, reverting",
			slog.String("conversation", conversationID),
			slog.String("message", messageID),
			slog.String("error", err.Error()))
		c.engine.SetReactions(conversationID, messageID, prev)
		c.settle(m, MutationReverted)
		c.engine.emit(event.Toast{Level: event.ToastError, Text: "Could not update reaction"})
		return err
	}
	c.settle(m, MutationConfirmed)
	return nil
}

// TogglePin flips a message's pinned state optimistically and confirms
// it with the server.
func (c *Coordinator) TogglePin(ctx context.Context, conversationID, messageID string) error {
	wasPinned, err := c.engine.TogglePinLocal(conversationID, messageID)
	if err != nil {
		return err
	}
	m := c.begin(MutationPin, conversationID, messageID)

	if err := c.api.Pin(ctx, conversationID, messageID, !wasPinned); err != nil {
		c.log.Warn("Pin toggle rejected, reverting",
			slog.String("conversation", conversationID),
			slog.String("message", messageID),
			slog.String("error", err.Error()))
		c.engine.SetPin(conversationID, messageID, wasPinned)
		c.settle(m, MutationReverted)
		c.engine.emit(event.Toast{Level: event.ToastError, Text: "Could not update pin"})
		return err
	}
	c.settle(m, MutationConfirmed)
	return nil
}

// DeleteMessage removes a message locally and confirms the deletion.
// On rejection the snapshot is restored, pinned flag included; the
// restore appends, the next history load repairs exact ordering.
func (c *Coordinator) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	snapshot, ok := c.engine.Message(conversationID, messageID)
	if !ok {
		return errors.ErrUnknownMessage
	}
	wasPinned := lo.SomeBy(c.engine.Pinned(conversationID), func(m domain.Message) bool {
		return m.ID == messageID
	})

	c.engine.RemoveMessage(conversationID, messageID)
	m := c.begin(MutationDelete, conversationID, messageID)

	if err := c.api.DeleteMessage(ctx, conversationID, messageID); err != nil {
		c.log.Warn("Message delete rejected, restoring",
			slog.String("conversation", conversationID),
			slog.String("message", messageID),
			slog.String("error", err.Error()))
		c.engine.AppendMessage(snapshot)
		if wasPinned {
			c.engine.SetPin(conversationID, messageID, true)
		}
		c.settle(m, MutationReverted)
		c.engine.emit(event.Toast{Level: event.ToastError, Text: "Could not delete message"})
		return err
	}
	c.settle(m, MutationConfirmed)
	return nil
}
