package runtime

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/errors"
)

func newTestEngine(t *testing.T, ttl time.Duration) *Engine {
	t.Helper()
	return NewEngine(slog.Default(), "self", ttl, 64)
}

func msg(id, conv, sender, body string) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       sender,
		Body:           body,
		Kind:           domain.KindText,
		CreatedAt:      time.Now(),
	}
}

func drain(e *Engine) []event.ConversationEvent {
	var events []event.ConversationEvent
	for {
		select {
		case evt := <-e.Events():
			events = append(events, evt)
		default:
			return events
		}
	}
}

func TestEngine_AppendMessage_Deduplicates_By_ID(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	// Given a message accepted once
	req.True(engine.AppendMessage(msg("m1", "c1", "u2", "hello")))

	// When the same id arrives again (socket echo after REST confirm)
	req.False(engine.AppendMessage(msg("m1", "c1", "u2", "hello")))

	// Then the list holds a single instance and one event was emitted
	req.Len(engine.Messages("c1"), 1)
	req.Len(drain(engine), 1)
}

func TestEngine_ReplaceMessage_Swaps_Temp_For_Confirmed(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	engine.AppendMessage(msg("tmp-1", "c1", "self", "draft"))
	engine.AppendMessage(msg("m2", "c1", "u2", "other"))

	engine.ReplaceMessage("c1", "tmp-1", msg("m9", "c1", "self", "draft"))

	messages := engine.Messages("c1")
	req.Len(messages, 2)
	// The confirmed message keeps the temp instance's position
	req.Equal("m9", messages[0].ID)
	req.Equal("m2", messages[1].ID)
}

func TestEngine_ReplaceMessage_Drops_Temp_When_Echo_Landed_First(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	engine.AppendMessage(msg("tmp-1", "c1", "self", "draft"))
	// Socket echo of the confirmed message arrives before the REST response
	engine.AppendMessage(msg("m9", "c1", "self", "draft"))

	engine.ReplaceMessage("c1", "tmp-1", msg("m9", "c1", "self", "draft"))

	messages := engine.Messages("c1")
	req.Len(messages, 1)
	req.Equal("m9", messages[0].ID)
}

func TestEngine_SeedMessages_Deduplicates(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	engine.SeedMessages("c1", []domain.Message{
		msg("m1", "c1", "u2", "a"),
		msg("m2", "c1", "u2", "b"),
		msg("m1", "c1", "u2", "a"),
	})

	req.Len(engine.Messages("c1"), 2)
}

func TestEngine_ToggleReactionLocal_Computes_Delta_From_State(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	engine.AppendMessage(msg("m1", "c1", "u2", "hello"))

	// When toggling twice in a row
	prev1, err := engine.ToggleReactionLocal("c1", "m1", "👍", "self")
	req.NoError(err)
	prev2, err := engine.ToggleReactionLocal("c1", "m1", "👍", "self")
	req.NoError(err)

	// Then each snapshot reflects the state its mutation saw
	req.False(prev1.Has("👍", "self"))
	req.True(prev2.Has("👍", "self"))

	// And the two toggles cancel out
	current, ok := engine.Message("c1", "m1")
	req.True(ok)
	req.False(current.Reactions.Has("👍", "self"))
}

func TestEngine_ToggleReactionLocal_Unknown_Message(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	_, err := engine.ToggleReactionLocal("c1", "missing", "👍", "self")
	req.ErrorIs(err, errors.ErrUnknownMessage)
}

func TestEngine_Pin_Stays_Subset_Of_Messages(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	engine.AppendMessage(msg("m1", "c1", "u2", "hello"))

	// Pinning an unknown message is rejected
	_, err := engine.TogglePinLocal("c1", "missing")
	req.ErrorIs(err, errors.ErrUnknownMessage)

	wasPinned, err := engine.TogglePinLocal("c1", "m1")
	req.NoError(err)
	req.False(wasPinned)
	req.Len(engine.Pinned("c1"), 1)

	// Removing the message removes it from the pinned set too
	engine.RemoveMessage("c1", "m1")
	req.Empty(engine.Pinned("c1"))
}

func TestEngine_MarkRead_Flips_All_Flags(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	engine.AppendMessage(msg("m1", "c1", "self", "a"))
	engine.AppendMessage(msg("m2", "c1", "self", "b"))

	engine.MarkRead("c1")

	for _, m := range engine.Messages("c1") {
		req.True(m.Read)
	}
}

func TestEngine_Typing_Expires_After_TTL(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 30*time.Millisecond)

	engine.TypingStart("c1", "u2", "Ana")
	req.Len(engine.Typing("c1"), 1)

	req.Eventually(func() bool {
		return len(engine.Typing("c1")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_Typing_Refresh_Extends_Expiry(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 60*time.Millisecond)

	engine.TypingStart("c1", "u2", "Ana")
	time.Sleep(40 * time.Millisecond)
	// A refresh before expiry re-arms the timer
	engine.TypingStart("c1", "u2", "Ana")
	time.Sleep(40 * time.Millisecond)

	req.Len(engine.Typing("c1"), 1, "refreshed entry must survive the first deadline")
}

func TestEngine_Typing_Ignores_Self(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)

	engine.TypingStart("c1", "self", "Me")
	req.Empty(engine.Typing("c1"))
}

func TestEngine_TypingStop_Removes_Entry(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, time.Minute)

	engine.TypingStart("c1", "u2", "Ana")
	engine.TypingStop("c1", "u2")
	req.Empty(engine.Typing("c1"))
}
