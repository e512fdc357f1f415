package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session under an ID that is already taken.
var ErrSessionExists = errors.New("session already exists")

// ErrConversationClosed is returned when a turn targets an escalated or finished conversation.
var ErrConversationClosed = errors.New("conversation is closed")

// InvariantError reports an internal inconsistency in conversation state.
// The engine refuses the turn instead of persisting corrupted state.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}
