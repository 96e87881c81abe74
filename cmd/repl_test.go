package main

import (
	"context"
	"io"
	"log/slog"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRepl_Stdin_Reader_Stops_After_Shutdown(t *testing.T) {
	req := require.New(t)
	baseline := goruntime.NumGoroutine()

	pr, pw := io.Pipe()
	r := newRepl(slog.Default(), pr, io.Discard, replDeps{stop: func() {}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("repl did not stop on cancel")
	}

	// A line arriving after shutdown must not leave the reader stuck
	// handing it to a consumer that is gone.
	go func() { _, _ = io.WriteString(pw, "late line\n") }()

	// Poll inline: require.Eventually runs the condition in its own
	// goroutine, which would inflate NumGoroutine above baseline forever.
	deadline := time.Now().Add(time.Second)
	for goruntime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			req.Fail("stdin reader goroutine must exit after shutdown")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
