package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gookit/color"

	"convosync/contract"
	"convosync/observability"
	"convosync/projection"
	"convosync/runtime"
	"convosync/search"
	"convosync/upload"
)

type replDeps struct {
	engine      *runtime.Engine
	directory   *projection.Directory
	coordinator *runtime.Coordinator
	sender      *runtime.Sender
	transport   contract.Transport
	index       search.IMessageIndex
	monitor     *observability.Monitor
	stop        context.CancelFunc
}

// repl is the interactive command surface of the reference shell. It
// runs as a supervised worker reading slash commands from stdin; plain
// lines are sent to the open conversation.
type repl struct {
	log  *slog.Logger
	in   io.Reader
	out  io.Writer
	deps replDeps
}

func newRepl(log *slog.Logger, in io.Reader, out io.Writer, deps replDeps) *repl {
	return &repl{log: log, in: in, out: out, deps: deps}
}

func (r *repl) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	lines := make(chan string)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := r.handle(ctx, strings.TrimSpace(line)); err != nil {
				fmt.Fprintln(r.out, color.Red.Sprint(err.Error()))
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line, nil)
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	switch cmd {
	case "open":
		return r.deps.directory.Open(ctx, rest)
	case "close":
		r.deps.directory.Close()
		return nil
	case "dm":
		_, err := r.deps.directory.StartDirect(ctx, rest)
		return err
	case "attach":
		parts := strings.Fields(rest)
		if len(parts) < 2 {
			return fmt.Errorf("usage: /attach <file>... <text>")
		}
		return r.send(ctx, parts[len(parts)-1], parts[:len(parts)-1])
	case "react":
		parts := strings.Fields(rest)
		if len(parts) != 2 {
			return fmt.Errorf("usage: /react <message-id> <emoji>")
		}
		return r.deps.coordinator.ToggleReaction(ctx, r.openConversation(), parts[0], parts[1])
	case "pin":
		return r.deps.coordinator.TogglePin(ctx, r.openConversation(), rest)
	case "del":
		return r.deps.coordinator.DeleteMessage(ctx, r.openConversation(), rest)
	case "typing":
		if rest == "stop" {
			return r.deps.transport.StopTyping(ctx, r.openConversation())
		}
		return r.deps.transport.StartTyping(ctx, r.openConversation())
	case "find":
		return r.find(ctx, rest)
	case "stats":
		snap := r.deps.monitor.Latest()
		fmt.Fprintf(r.out, "conversations=%d messages=%d dropped=%d mem=%dMB cpu=%.1f%%\n",
			snap.Conversations, snap.Messages, snap.DroppedEvents, snap.AllocMemMb, snap.CPUPercent)
		return nil
	case "quit":
		r.deps.stop()
		return nil
	default:
		return fmt.Errorf("unknown command: /%s", cmd)
	}
}

func (r *repl) openConversation() string {
	return r.deps.engine.Selected()
}

func (r *repl) send(ctx context.Context, body string, paths []string) error {
	conversationID := r.openConversation()
	if conversationID == "" {
		return fmt.Errorf("no open conversation, use /open <id> first")
	}

	var files []upload.File
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, upload.File{Name: path, Data: data})
	}

	_, err := r.deps.sender.Send(ctx, runtime.Outgoing{
		ConversationID: conversationID,
		Body:           body,
		Files:          files,
	})
	return err
}

func (r *repl) find(ctx context.Context, raw string) error {
	hits, err := r.deps.index.Search(ctx, search.ParseQuery(raw))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(r.out, "no results")
		return nil
	}
	for _, hit := range hits {
		fmt.Fprintf(r.out, "[%s] %s (%.2f)\n", hit.ConversationID, hit.Body, hit.Score)
	}
	return nil
}
