package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convosync/domain/event"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.ConversationEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.ConversationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEventFanout_Delivers_To_All_Sinks(t *testing.T) {
	req := require.New(t)
	events := make(chan event.ConversationEvent, 4)
	first, second := &recordingSink{}, &recordingSink{}

	fanout := NewEventFanout(slog.Default(), events, time.Second).Add(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	events <- event.ConversationRead{Conversation: "c1"}
	events <- event.Toast{Level: event.ToastInfo, Text: "hello"}

	req.Eventually(func() bool {
		return first.count() == 2 && second.count() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestEventFanout_Sink_Failure_Is_Isolated(t *testing.T) {
	req := require.New(t)
	events := make(chan event.ConversationEvent, 4)
	failing := &recordingSink{err: fmt.Errorf("disk full")}
	healthy := &recordingSink{}

	fanout := NewEventFanout(slog.Default(), events, time.Second).Add(failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	events <- event.ConversationRead{Conversation: "c1"}

	req.Eventually(func() bool {
		return healthy.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEventFanout_Stops_On_Context_Cancel(t *testing.T) {
	req := require.New(t)
	events := make(chan event.ConversationEvent)
	fanout := NewEventFanout(slog.Default(), events, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = fanout.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("fanout should exit when the context is canceled")
	}
}
