package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnector_Backoff_Grows_And_Caps(t *testing.T) {
	req := require.New(t)
	recon := newReconnector(&Config{
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    10 * time.Second,
		MaxReconnectAttempts: 5,
	})

	var delays []time.Duration
	for recon.shouldReconnect() {
		delays = append(delays, recon.nextDelay())
	}

	req.Len(delays, 5)
	for i, delay := range delays {
		// Exponential lower bound, jittered upper bound, hard cap.
		expected := time.Duration(float64(time.Second) * float64(int(1)<<i))
		if expected > 10*time.Second {
			expected = 10 * time.Second
		}
		req.GreaterOrEqual(delay, min(expected, 10*time.Second))
		req.LessOrEqual(delay, 10*time.Second)
	}
	req.Equal(10*time.Second, delays[4])
}

func TestReconnector_Resets_After_Stable_Connection(t *testing.T) {
	req := require.New(t)
	recon := newReconnector(&Config{
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
	})

	// Given several failed attempts
	recon.nextDelay()
	recon.nextDelay()
	recon.nextDelay()

	// When the connection stayed up for over a minute
	recon.connectedAt = time.Now().Add(-2 * time.Minute)

	// Then the schedule restarts from the base delay
	delay := recon.nextDelay()
	req.Less(delay, 2*time.Second)
}

func TestClient_Failed_Initial_Connect_Enters_Reconnect_Loop(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), &Config{
		URL:                  "http://127.0.0.1:1", // nothing listens here
		AutoReconnect:        true,
		ReconnectBaseDelay:   100 * time.Millisecond,
		ReconnectMaxDelay:    time.Second,
		MaxReconnectAttempts: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Given the server is down at startup, the first dial fails
	req.Error(client.Connect(ctx))

	// Then the backoff loop takes over instead of giving up
	req.Eventually(func() bool {
		return client.State() == StateReconnecting
	}, time.Second, 5*time.Millisecond, "a failed initial dial must schedule reconnect attempts")

	req.NoError(client.Disconnect())
}

func TestClient_Failed_Connect_Without_AutoReconnect_Stays_Disconnected(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), &Config{
		URL:                "http://127.0.0.1:1",
		ReconnectBaseDelay: 10 * time.Millisecond,
	})

	req.Error(client.Connect(context.Background()))
	req.Equal(StateDisconnected, client.State())

	time.Sleep(50 * time.Millisecond)
	req.Equal(StateDisconnected, client.State(), "no reconnect without AutoReconnect")
}

func TestEnvelope_Payload_Decoding(t *testing.T) {
	req := require.New(t)

	data := []byte(`{"type":"new_message","payload":{"conversationId":42,"message":{"id":"m1","sender_id":7,"body":"hi"}}}`)

	var env Envelope
	req.NoError(json.Unmarshal(data, &env))
	req.Equal(EventNewMessage, env.Type)

	var payload NewMessagePayload
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal("42", payload.ConversationID.String(), "numeric ids normalize to strings")
	req.Equal("m1", payload.Message.ID.String())
	req.Equal("hi", *payload.Message.Body)
}
