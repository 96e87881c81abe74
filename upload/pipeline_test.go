package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"convosync/domain"
	"convosync/errors"
	"convosync/rest"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type fakeAPI struct {
	rest.IConversationAPI
	mu      sync.Mutex
	calls   int
	failFor map[string]error
}

func (f *fakeAPI) Upload(_ context.Context, req rest.UploadRequest) (domain.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failFor[req.FileName]; err != nil {
		return domain.Attachment{}, err
	}
	return domain.Attachment{
		ID:   "att-" + req.FileName,
		Kind: domain.AttachmentImage,
		URL:  "https://cdn.example/" + req.FileName,
		Name: req.FileName,
	}, nil
}

func TestPipeline_Uploads_All_Files(t *testing.T) {
	req := require.New(t)
	api := &fakeAPI{}
	pipeline := NewPipeline(slog.Default(), api, 5, 0)

	results, err := pipeline.Run(context.Background(), "c1", []File{
		{Name: "a.png", Data: pngHeader},
		{Name: "b.png", Data: pngHeader},
	})
	req.NoError(err)
	req.Len(results, 2)
	for _, r := range results {
		req.NoError(r.Err)
		req.NotEmpty(r.Attachment.ID)
	}
	req.Equal(2, api.calls)
}

func TestPipeline_One_Failure_Does_Not_Block_Siblings(t *testing.T) {
	req := require.New(t)
	api := &fakeAPI{failFor: map[string]error{"bad.png": fmt.Errorf("storage full")}}
	pipeline := NewPipeline(slog.Default(), api, 5, 0)

	results, err := pipeline.Run(context.Background(), "c1", []File{
		{Name: "good.png", Data: pngHeader},
		{Name: "bad.png", Data: pngHeader},
	})
	req.NoError(err)

	// Results keep input order
	req.NoError(results[0].Err)
	req.Error(results[1].Err)
	req.Equal("att-good.png", results[0].Attachment.ID)
}

func TestPipeline_Rejects_Batch_Over_File_Cap(t *testing.T) {
	req := require.New(t)
	pipeline := NewPipeline(slog.Default(), &fakeAPI{}, 2, 0)

	files := []File{
		{Name: "1.png", Data: pngHeader},
		{Name: "2.png", Data: pngHeader},
		{Name: "3.png", Data: pngHeader},
	}
	_, err := pipeline.Run(context.Background(), "c1", files)
	req.ErrorIs(err, errors.ErrTooManyAttachments)
}

func TestPipeline_Validates_Before_Upload(t *testing.T) {
	req := require.New(t)
	api := &fakeAPI{}
	pipeline := NewPipeline(slog.Default(), api, 5, 16)

	results, err := pipeline.Run(context.Background(), "c1", []File{
		{Name: "huge.png", Data: append(pngHeader, make([]byte, 64)...)},
		{Name: "empty.bin", Data: nil},
	})
	req.NoError(err)

	req.ErrorIs(results[0].Err, errors.ErrAttachmentTooLarge)
	req.ErrorIs(results[1].Err, errors.ErrUnsupportedFile)
	req.Zero(api.calls, "rejected files never reach the endpoint")
}

func TestVoiceRecorder_Buffers_Frames(t *testing.T) {
	req := require.New(t)
	recorder := NewVoiceRecorder()

	recorder.Write([]byte{1, 2})
	recorder.Write([]byte{3})

	file := recorder.Stop()
	req.Equal([]byte{1, 2, 3}, file.Data)
	req.Contains(file.Name, "voice-")
}
