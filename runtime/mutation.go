package runtime

import (
	"sync"

	"github.com/google/uuid"
)

// MutationKind identifies which optimistic mutation is in flight.
type MutationKind string

const (
	MutationReaction MutationKind = "reaction"
	MutationPin      MutationKind = "pin"
	MutationDelete   MutationKind = "delete"
)

// MutationState is the lifecycle of an optimistic mutation. Every
// mutation starts pending-local the moment its delta is applied to
// engine state, then settles as confirmed or reverted once the server
// has answered. There are no other transitions.
type MutationState string

const (
	MutationPendingLocal MutationState = "pending-local"
	MutationConfirmed    MutationState = "confirmed"
	MutationReverted     MutationState = "reverted"
)

// Mutation is one tracked optimistic change.
type Mutation struct {
	ID             string
	Kind           MutationKind
	ConversationID string
	MessageID      string
	State          MutationState
}

func newMutation(kind MutationKind, conversationID, messageID string) *Mutation {
	return &Mutation{
		ID:             uuid.NewString(),
		Kind:           kind,
		ConversationID: conversationID,
		MessageID:      messageID,
		State:          MutationPendingLocal,
	}
}

// mutationLedger holds the mutations still waiting for the server.
type mutationLedger struct {
	mu       sync.Mutex
	inFlight map[string]*Mutation
}

func (l *mutationLedger) add(m *Mutation) {
	l.mu.Lock()
	if l.inFlight == nil {
		l.inFlight = make(map[string]*Mutation)
	}
	l.inFlight[m.ID] = m
	l.mu.Unlock()
}

func (l *mutationLedger) remove(id string) {
	l.mu.Lock()
	delete(l.inFlight, id)
	l.mu.Unlock()
}

func (l *mutationLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}
