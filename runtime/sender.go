package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"convosync/domain"
	"convosync/domain/event"
	"convosync/rest"
	"convosync/upload"
)

// Outgoing is a message the user asked to send, before uploads and
// before the server assigned an id.
type Outgoing struct {
	ConversationID string
	Body           string
	Kind           domain.MessageKind
	Files          []upload.File
	Quoted         *domain.QuotedRef
	CalendarRef    *domain.CalendarRef
	GifURL         string
}

// Sender runs the full optimistic send flow: immediate local append
// under a temporary id, attachment uploads, the REST send, and the
// temp-to-confirmed swap. A failed send removes the local instance and
// raises a toast; a failed upload drops that attachment but lets the
// text go out.
type Sender struct {
	log      *slog.Logger
	engine   *Engine
	api      rest.IConversationAPI
	pipeline *upload.Pipeline

	selfName string
}

func NewSender(log *slog.Logger, engine *Engine, api rest.IConversationAPI, pipeline *upload.Pipeline, selfName string) *Sender {
	return &Sender{log: log, engine: engine, api: api, pipeline: pipeline, selfName: selfName}
}

// Send dispatches one outgoing message. It returns the confirmed
// message on success.
func (s *Sender) Send(ctx context.Context, out Outgoing) (domain.Message, error) {
	tempID := "tmp-" + uuid.NewString()

	local := domain.Message{
		ID:             tempID,
		ConversationID: out.ConversationID,
		SenderID:       s.engine.SelfID(),
		SenderName:     s.selfName,
		Body:           out.Body,
		Kind:           out.Kind,
		Quoted:         out.Quoted,
		CreatedAt:      time.Now(),
		Pending:        true,
	}
	if out.CalendarRef != nil {
		local.CalendarRefs = []domain.CalendarRef{*out.CalendarRef}
	}
	s.engine.AppendMessage(local)

	attachments, dropped := s.uploadAll(ctx, out)
	if dropped > 0 && strings.TrimSpace(out.Body) == "" && len(attachments) == 0 && out.GifURL == "" {
		// nothing left to send
		s.engine.RemoveMessage(out.ConversationID, tempID)
		s.engine.emit(event.Toast{Level: event.ToastError, Text: "Message not sent: all attachments failed"})
		return domain.Message{}, fmt.Errorf("all %d attachments failed to upload", dropped)
	}

	req := rest.SendRequest{
		ConversationID: out.ConversationID,
		Body:           out.Body,
		Kind:           out.Kind,
		Attachments:    attachments,
		GifURL:         out.GifURL,
	}
	if out.Quoted != nil {
		req.Quoted = &rest.QuotedPayload{
			MessageID: out.Quoted.MessageID,
			SenderID:  out.Quoted.SenderID,
			Snippet:   out.Quoted.Snippet,
		}
	}
	if out.CalendarRef != nil {
		req.CalendarRef = &rest.CalendarRefPayload{
			EventID:  out.CalendarRef.EventID,
			Title:    out.CalendarRef.Title,
			StartsAt: out.CalendarRef.StartsAt,
		}
	}

	confirmed, err := s.api.SendMessage(ctx, req)
	if err != nil {
		s.log.Warn("Send rejected, removing local instance",
			slog.String("conversation", out.ConversationID),
			slog.String("error", err.Error()))
		s.engine.RemoveMessage(out.ConversationID, tempID)
		s.engine.emit(event.Toast{Level: event.ToastError, Text: "Message could not be sent"})
		return domain.Message{}, err
	}

	s.engine.ReplaceMessage(out.ConversationID, tempID, confirmed)
	return confirmed, nil
}

// uploadAll pushes the outgoing files through the pipeline and keeps
// only the successful descriptors. Each failure gets its own toast.
func (s *Sender) uploadAll(ctx context.Context, out Outgoing) ([]domain.Attachment, int) {
	if len(out.Files) == 0 {
		return nil, 0
	}

	results, err := s.pipeline.Run(ctx, out.ConversationID, out.Files)
	if err != nil {
		s.engine.emit(event.Toast{Level: event.ToastError, Text: err.Error()})
		return nil, len(out.Files)
	}

	failed := lo.Filter(results, func(r upload.Result, _ int) bool { return r.Err != nil })
	for _, r := range failed {
		s.engine.emit(event.Toast{
			Level: event.ToastError,
			Text:  fmt.Sprintf("Could not attach %s", r.File.Name),
		})
	}

	ok := lo.FilterMap(results, func(r upload.Result, _ int) (domain.Attachment, bool) {
		return r.Attachment, r.Err == nil
	})
	return ok, len(failed)
}
