package domain

import "time"

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is an out-of-band uploaded payload referenced by a message.
// It exists before its owning message does: the upload pipeline creates
// the descriptor, the send call attaches it by reference.
type Attachment struct {
	ID       string
	Kind     AttachmentKind
	URL      string
	Name     string
	Duration time.Duration // audio only
}

func (a Attachment) Label() string {
	if a.Name != "" {
		return a.Name
	}
	switch a.Kind {
	case AttachmentImage:
		return "Image"
	case AttachmentAudio:
		return "Voice note"
	default:
		return "File"
	}
}
