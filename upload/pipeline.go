// Package upload runs the attachment pipeline: validate local files,
// push them through the REST upload endpoint concurrently, and hand
// back server descriptors ready to attach to an outgoing message.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"convosync/domain"
	"convosync/errors"
	"convosync/rest"
)

const (
	DefaultMaxFiles = 5
	DefaultMaxBytes = 25 << 20
)

// File is a locally selected payload, fully buffered.
type File struct {
	Name string
	Data []byte
}

// Result pairs one input file with its upload outcome. A failed file
// never blocks its siblings.
type Result struct {
	File       File
	Attachment domain.Attachment
	Err        error
}

type Pipeline struct {
	log      *slog.Logger
	api      rest.IConversationAPI
	maxFiles int
	maxBytes int
}

func NewPipeline(log *slog.Logger, api rest.IConversationAPI, maxFiles, maxBytes int) *Pipeline {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Pipeline{log: log, api: api, maxFiles: maxFiles, maxBytes: maxBytes}
}

// allowed MIME prefixes and exact types. Sniffed from content, never
// trusted from the file name.
var allowedTypes = []string{
	"image/",
	"audio/",
	"video/",
	"application/pdf",
	"application/zip",
	"text/plain",
	"application/vnd.openxmlformats-officedocument",
}

func (p *Pipeline) validate(f File) (string, error) {
	if len(f.Data) == 0 {
		return "", fmt.Errorf("%s: %w", f.Name, errors.ErrUnsupportedFile)
	}
	if len(f.Data) > p.maxBytes {
		return "", fmt.Errorf("%s: %w", f.Name, errors.ErrAttachmentTooLarge)
	}
	detected := mimetype.Detect(f.Data)
	ok := lo.SomeBy(allowedTypes, func(prefix string) bool {
		return strings.HasPrefix(detected.String(), prefix)
	})
	if !ok {
		return "", fmt.Errorf("%s (%s): %w", f.Name, detected.String(), errors.ErrUnsupportedFile)
	}
	return detected.String(), nil
}

// Run uploads every file concurrently and returns one result per
// input, in input order. It only fails outright when the batch itself
// is invalid; individual upload failures are carried in the results.
func (p *Pipeline) Run(ctx context.Context, conversationID string, files []File) ([]Result, error) {
	if len(files) > p.maxFiles {
		return nil, errors.ErrTooManyAttachments
	}

	results := make([]Result, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			results[i] = p.uploadOne(ctx, conversationID, f)
		}(i, f)
	}
	wg.Wait()
	return results, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, conversationID string, f File) Result {
	contentType, err := p.validate(f)
	if err != nil {
		p.log.Warn("Attachment rejected before upload",
			slog.String("file", f.Name),
			slog.String("error", err.Error()))
		return Result{File: f, Err: err}
	}

	attachment, err := p.api.Upload(ctx, rest.UploadRequest{
		FileName:       f.Name,
		ContentType:    contentType,
		Context:        "message",
		ConversationID: conversationID,
		Data:           f.Data,
	})
	if err != nil {
		p.log.Warn("Attachment upload failed",
			slog.String("file", f.Name),
			slog.String("error", err.Error()))
		return Result{File: f, Err: err}
	}
	return Result{File: f, Attachment: attachment}
}

// VoiceRecorder accumulates captured audio frames into one blob and
// packages them as a pipeline file when the recording stops.
type VoiceRecorder struct {
	mu      sync.Mutex
	started time.Time
	buf     []byte
}

func NewVoiceRecorder() *VoiceRecorder {
	return &VoiceRecorder{started: time.Now()}
}

func (r *VoiceRecorder) Write(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, frame...)
}

// Stop finalizes the recording into an upload file named by its
// start timestamp.
func (r *VoiceRecorder) Stop() File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return File{
		Name: fmt.Sprintf("voice-%d.ogg", r.started.Unix()),
		Data: r.buf,
	}
}
