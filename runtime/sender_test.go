package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convosync/domain"
	"convosync/rest"
	"convosync/upload"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type senderAPI struct {
	rest.IConversationAPI
	sendErr   error
	uploadErr map[string]error
	sent      []rest.SendRequest
}

func (f *senderAPI) SendMessage(_ context.Context, req rest.SendRequest) (domain.Message, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return domain.Message{}, f.sendErr
	}
	return domain.Message{
		ID:             "srv-1",
		ConversationID: req.ConversationID,
		SenderID:       "self",
		Body:           req.Body,
		Attachments:    req.Attachments,
		CreatedAt:      time.Now(),
	}, nil
}

func (f *senderAPI) Upload(_ context.Context, req rest.UploadRequest) (domain.Attachment, error) {
	if err := f.uploadErr[req.FileName]; err != nil {
		return domain.Attachment{}, err
	}
	return domain.Attachment{ID: "att-" + req.FileName, Kind: domain.AttachmentImage, URL: "u", Name: req.FileName}, nil
}

func newTestSender(t *testing.T, api *senderAPI) (*Sender, *Engine) {
	t.Helper()
	engine := newTestEngine(t, 0)
	pipeline := upload.NewPipeline(slog.Default(), api, 5, 0)
	return NewSender(slog.Default(), engine, api, pipeline, "Me"), engine
}

func TestSender_Optimistic_Append_Then_Confirmed_Swap(t *testing.T) {
	req := require.New(t)
	api := &senderAPI{}
	sender, engine := newTestSender(t, api)

	confirmed, err := sender.Send(context.Background(), Outgoing{ConversationID: "c1", Body: "hello"})
	req.NoError(err)
	req.Equal("srv-1", confirmed.ID)

	messages := engine.Messages("c1")
	req.Len(messages, 1)
	req.Equal("srv-1", messages[0].ID)
	req.False(messages[0].Pending)
}

func TestSender_Failed_Send_Removes_Local_Instance(t *testing.T) {
	req := require.New(t)
	api := &senderAPI{sendErr: fmt.Errorf("rejected")}
	sender, engine := newTestSender(t, api)

	_, err := sender.Send(context.Background(), Outgoing{ConversationID: "c1", Body: "hello"})
	req.Error(err)
	req.Empty(engine.Messages("c1"))
	req.True(hasToast(drain(engine)))
}

func TestSender_Failed_Upload_Drops_Attachment_Sends_Text(t *testing.T) {
	req := require.New(t)
	api := &senderAPI{uploadErr: map[string]error{"bad.png": fmt.Errorf("storage error")}}
	sender, engine := newTestSender(t, api)

	confirmed, err := sender.Send(context.Background(), Outgoing{
		ConversationID: "c1",
		Body:           "see attached",
		Files: []upload.File{
			{Name: "good.png", Data: pngHeader},
			{Name: "bad.png", Data: pngHeader},
		},
	})
	req.NoError(err)

	// The text still went out with only the successful attachment
	req.Len(api.sent, 1)
	req.Len(api.sent[0].Attachments, 1)
	req.Equal("att-good.png", api.sent[0].Attachments[0].ID)
	req.Equal("see attached", confirmed.Body)

	// The dropped attachment raised a toast
	req.True(hasToast(drain(engine)))
}

func TestSender_All_Uploads_Failed_No_Text_Aborts(t *testing.T) {
	req := require.New(t)
	api := &senderAPI{uploadErr: map[string]error{"bad.png": fmt.Errorf("storage error")}}
	sender, engine := newTestSender(t, api)

	_, err := sender.Send(context.Background(), Outgoing{
		ConversationID: "c1",
		Body:           "   ",
		Files:          []upload.File{{Name: "bad.png", Data: pngHeader}},
	})
	req.Error(err)
	req.Empty(api.sent, "nothing left to send")
	req.Empty(engine.Messages("c1"))
}

func TestSender_Temp_ID_Is_Marked_Pending(t *testing.T) {
	req := require.New(t)
	api := &senderAPI{sendErr: fmt.Errorf("keep the temp visible")}
	engine := newTestEngine(t, 0)
	pipeline := upload.NewPipeline(slog.Default(), api, 5, 0)
	sender := NewSender(slog.Default(), engine, api, pipeline, "Me")

	var sawPending bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sender.Send(context.Background(), Outgoing{ConversationID: "c1", Body: "hi"})
	}()

	// The optimistic instance is observable while the send is in flight;
	// with a failing API it is removed again afterwards.
	deadline := time.After(time.Second)
	for !sawPending {
		select {
		case <-done:
			// too fast to observe, fall through to the postcondition
			sawPending = true
		case <-deadline:
			t.Fatal("send never completed")
		default:
			for _, m := range engine.Messages("c1") {
				if m.Pending && strings.HasPrefix(m.ID, "tmp-") {
					sawPending = true
				}
			}
		}
	}
	<-done
	req.Empty(engine.Messages("c1"))
}
