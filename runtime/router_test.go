package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convosync/domain"
	"convosync/realtime"
)

type fakeTransport struct {
	mu     sync.Mutex
	events chan realtime.Envelope
	joined []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan realtime.Envelope, 16)}
}

func (f *fakeTransport) Events() <-chan realtime.Envelope { return f.events }

func (f *fakeTransport) JoinRoom(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, conversationID)
	return nil
}

func (f *fakeTransport) LeaveRoom(_ context.Context, _ string) error  { return nil }
func (f *fakeTransport) StartTyping(_ context.Context, _ string) error { return nil }
func (f *fakeTransport) StopTyping(_ context.Context, _ string) error  { return nil }

func (f *fakeTransport) joinedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined...)
}

type fakeDirectory struct {
	mu      sync.Mutex
	touched []string
	unread  map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{unread: make(map[string]int)}
}

func (f *fakeDirectory) Touch(conversationID string, _ domain.LastMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, conversationID)
}

func (f *fakeDirectory) IncrementUnread(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unread[conversationID]++
}

func (f *fakeDirectory) ResetUnread(string)                        {}
func (f *fakeDirectory) Upsert(domain.Conversation)                {}
func (f *fakeDirectory) ApplyMembers(string, []domain.Member)      {}

func (f *fakeDirectory) unreadFor(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread[conversationID]
}

func envelope(t *testing.T, eventType string, payload any) realtime.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return realtime.Envelope{Type: eventType, Payload: data}
}

func startRouter(t *testing.T, engine *Engine) (*Router, *fakeTransport, *fakeDirectory, context.CancelFunc) {
	t.Helper()
	transport := newFakeTransport()
	directory := newFakeDirectory()
	router := NewRouter(slog.Default(), engine, transport)
	router.SetDirectory(directory)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = router.Run(ctx) }()
	return router, transport, directory, cancel
}

func TestRouter_NewMessage_Appends_And_Counts_Unread(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	_, transport, directory, cancel := startRouter(t, engine)
	defer cancel()

	transport.events <- envelope(t, realtime.EventNewMessage, map[string]any{
		"conversationId": 42,
		"message": map[string]any{
			"id": "m1", "sender_id": "u2", "body": "hi",
		},
	})

	req.Eventually(func() bool {
		return len(engine.Messages("42")) == 1
	}, time.Second, 5*time.Millisecond)
	req.Equal(1, directory.unreadFor("42"))
	req.Equal([]string{"42"}, directory.touched)
}

func TestRouter_NewMessage_Selected_Conversation_Not_Unread(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	engine.Select("c1")
	_, transport, directory, cancel := startRouter(t, engine)
	defer cancel()

	transport.events <- envelope(t, realtime.EventNewMessage, map[string]any{
		"conversationId": "c1",
		"message":        map[string]any{"id": "m1", "sender_id": "u2", "body": "hi"},
	})

	req.Eventually(func() bool {
		return len(engine.Messages("c1")) == 1
	}, time.Second, 5*time.Millisecond)
	req.Zero(directory.unreadFor("c1"))
}

func TestRouter_Duplicate_Message_Ignored(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	_, transport, directory, cancel := startRouter(t, engine)
	defer cancel()

	payload := map[string]any{
		"conversationId": "c1",
		"message":        map[string]any{"id": "m1", "sender_id": "u2", "body": "hi"},
	}
	transport.events <- envelope(t, realtime.EventNewMessage, payload)
	transport.events <- envelope(t, realtime.EventNewMessage, payload)

	req.Eventually(func() bool {
		return len(directory.touched) >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	req.Len(engine.Messages("c1"), 1)
	req.Equal(1, directory.unreadFor("c1"))
}

func TestRouter_Malformed_Payload_Does_Not_Stop_The_Loop(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	_, transport, _, cancel := startRouter(t, engine)
	defer cancel()

	transport.events <- realtime.Envelope{Type: realtime.EventNewMessage, Payload: []byte("{broken")}
	transport.events <- envelope(t, realtime.EventNewMessage, map[string]any{
		"conversationId": "c1",
		"message":        map[string]any{"id": "m1", "sender_id": "u2", "body": "still alive"},
	})

	req.Eventually(func() bool {
		return len(engine.Messages("c1")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRouter_Rejoins_Rooms_On_Reconnect(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	router, transport, _, cancel := startRouter(t, engine)
	defer cancel()

	req.NoError(router.Join(context.Background(), "c1"))
	req.NoError(router.Join(context.Background(), "c2"))

	// When the transport signals a fresh connection
	transport.events <- realtime.Envelope{Type: realtime.EventConnected}

	req.Eventually(func() bool {
		// two explicit joins plus two rejoins
		return len(transport.joinedRooms()) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestRouter_Typing_Events_Flow_Into_Engine(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, time.Minute)
	_, transport, _, cancel := startRouter(t, engine)
	defer cancel()

	transport.events <- envelope(t, realtime.EventTypingStart, map[string]any{
		"conversationId": "c1", "userId": "u2", "userName": "Ana",
	})

	req.Eventually(func() bool {
		return len(engine.Typing("c1")) == 1
	}, time.Second, 5*time.Millisecond)

	transport.events <- envelope(t, realtime.EventTypingStop, map[string]any{
		"conversationId": "c1", "userId": "u2",
	})

	req.Eventually(func() bool {
		return len(engine.Typing("c1")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRouter_Pin_Event_Applies_Server_State(t *testing.T) {
	req := require.New(t)
	engine := newTestEngine(t, 0)
	_, transport, _, cancel := startRouter(t, engine)
	defer cancel()

	// The pin event carries the full message, unknown locally until now
	transport.events <- envelope(t, realtime.EventPin, map[string]any{
		"conversationId": "c1",
		"isPinned":       true,
		"message": map[string]any{
			"id": "m1", "conversation_id": "c1", "sender_id": "u2", "body": "pin me",
		},
	})

	req.Eventually(func() bool {
		return len(engine.Pinned("c1")) == 1
	}, time.Second, 5*time.Millisecond)
}
