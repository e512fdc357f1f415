package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter        EventType = "node_enter"
	EventTurnComplete     EventType = "turn_complete"
	EventEscalation       EventType = "escalation"
	EventValidation       EventType = "validation"
	EventCollaboratorCall EventType = "collaborator_call"
	EventConversationOpen EventType = "conversation_open"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent is fired when the state machine enters a node.
type NodeEvent struct {
	EventBase
	NodeID string `json:"node_id"`
}

// TurnEvent is fired once per processed message.
type TurnEvent struct {
	EventBase
	Path     []string      `json:"path"`
	Kind     string        `json:"kind"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// EscalationEvent is fired when a conversation is handed off.
type EscalationEvent struct {
	EventBase
	PolicyID   string `json:"policy_id"`
	PolicyType string `json:"policy_type"`
	Reason     string `json:"reason"`
}

// ValidationEvent is fired after a value is checked against its field.
type ValidationEvent struct {
	EventBase
	Field     string    `json:"field"`
	FieldType FieldType `json:"field_type"`
	Valid     bool      `json:"valid"`
}

// CollaboratorEvent is fired after every call to an external capability.
type CollaboratorEvent struct {
	EventBase
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// ConversationEvent is fired when a conversation is created.
type ConversationEvent struct {
	EventBase
	ConfigName string `json:"config_name,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnConversationOpen func(context.Context, *ConversationEvent)
	OnNodeEnter        func(context.Context, *NodeEvent)
	OnTurnComplete     func(context.Context, *TurnEvent)
	OnEscalation       func(context.Context, *EscalationEvent)
	OnValidation       func(context.Context, *ValidationEvent)
	OnCollaboratorCall func(context.Context, *CollaboratorEvent)
}

// Merge returns hooks that invoke h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnConversationOpen: chain(h.OnConversationOpen, other.OnConversationOpen),
		OnNodeEnter:        chain(h.OnNodeEnter, other.OnNodeEnter),
		OnTurnComplete:     chain(h.OnTurnComplete, other.OnTurnComplete),
		OnEscalation:       chain(h.OnEscalation, other.OnEscalation),
		OnValidation:       chain(h.OnValidation, other.OnValidation),
		OnCollaboratorCall: chain(h.OnCollaboratorCall, other.OnCollaboratorCall),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
