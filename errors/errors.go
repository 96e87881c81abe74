package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrNotConnected        = fmt.Errorf("realtime transport is not connected")
	ErrUnknownMessage      = fmt.Errorf("message is not present in local state")
	ErrUnknownConversation = fmt.Errorf("conversation is not present in local state")
	ErrTooManyAttachments  = fmt.Errorf("too many attachments for a single message")
	ErrAttachmentTooLarge  = fmt.Errorf("attachment exceeds the size limit")
	ErrUnsupportedFile     = fmt.Errorf("unsupported attachment file type")
	ErrTokenExpired        = fmt.Errorf("access token expired")
	ErrEmptyWatchTerms     = fmt.Errorf("no keyword watch terms have been configured")
)
