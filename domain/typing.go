package domain

import "time"

// TypingEntry records one user typing in one conversation. Entries are
// ephemeral: without a refresh they expire a few seconds after the last
// signal, whether or not an explicit stop event ever arrives.
type TypingEntry struct {
	UserID      string
	DisplayName string
	LastSignal  time.Time
}
