package adapter

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"convosync/domain/event"
)

// TerminalRenderer is the reference presentation shell: an event sink
// that repaints the conversation list and the open thread into a
// writer on every relevant event. GUI shells consume the same
// Presenter and subscribe the same way.
type TerminalRenderer struct {
	mu        sync.Mutex
	out       io.Writer
	presenter *Presenter
}

func NewTerminalRenderer(out io.Writer, presenter *Presenter) *TerminalRenderer {
	return &TerminalRenderer{out: out, presenter: presenter}
}

func (r *TerminalRenderer) Consume(_ context.Context, e event.ConversationEvent) error {
	switch evt := e.(type) {
	case event.Toast:
		r.toast(evt)
		return nil
	case event.KeywordHit:
		r.mu.Lock()
		fmt.Fprintln(r.out, color.Yellow.Sprintf("🔔 watched terms %v mentioned", evt.Terms))
		r.mu.Unlock()
		return nil
	case event.TypingStarted, event.TypingStopped:
		// typing only touches the composer line
		r.renderThread(e.ConversationID())
		return nil
	default:
		r.render()
		return nil
	}
}

func (r *TerminalRenderer) toast(t event.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch t.Level {
	case event.ToastError:
		fmt.Fprintln(r.out, color.Red.Sprint("✗ "+t.Text))
	default:
		fmt.Fprintln(r.out, color.Green.Sprint("✓ "+t.Text))
	}
}

// render repaints both surfaces.
func (r *TerminalRenderer) render() {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"", "Conversation", "Last message", "Unread"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range r.presenter.Rows() {
		marker := " "
		if row.Selected {
			marker = ">"
		}
		unread := ""
		if row.Unread > 0 {
			unread = color.Bold.Sprintf("%d", row.Unread)
		}
		table.Append([]string{marker, row.Title, row.Snippet, unread})
	}
	table.Render()
}

func (r *TerminalRenderer) renderThread(conversationID string) {
	if conversationID == "" || conversationID != r.presenter.engine.Selected() {
		return
	}
	thread := r.presenter.Thread(conversationID)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range thread.Messages {
		prefix := msg.SenderName
		if msg.Own {
			prefix = color.Cyan.Sprint(prefix)
		}
		suffix := ""
		if msg.Pending {
			suffix = color.Gray.Sprint(" (sending…)")
		}
		if msg.Pinned {
			suffix += " 📌"
		}
		fmt.Fprintf(r.out, "%s [%s] %s%s\n", msg.At.Format("15:04"), prefix, msg.Body, suffix)
	}
	if thread.TypingLine != "" {
		fmt.Fprintln(r.out, color.Gray.Sprint(thread.TypingLine))
	}
}
