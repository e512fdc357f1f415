package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusEscalated Status = "escalated"
	StatusFailed    Status = "failed"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Message is one entry of the append-only conversation log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FieldValue is the collected value record of a single field.
// It exists only after the first extraction attempt for that field.
type FieldValue struct {
	Value         string    `json:"value,omitempty"`
	Validated     bool      `json:"validated"`
	Skipped       bool      `json:"skipped,omitempty"`
	Confidence    float64   `json:"confidence"`
	Attempts      int       `json:"attempts"`
	History       []string  `json:"history,omitempty"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// Escalation records the handoff to a human operator.
type Escalation struct {
	Escalated  bool       `json:"escalated"`
	Reason     string     `json:"reason,omitempty"`
	PolicyID   string     `json:"policy_id,omitempty"`
	PolicyType string     `json:"policy_type,omitempty"`
	At         *time.Time `json:"at,omitempty"`
}

// Conversation is the persisted state of one session.
type Conversation struct {
	SessionID     string                 `json:"session_id"`
	ConfigName    string                 `json:"config_name,omitempty"`
	// ConfigVersion is the digest of the configuration the conversation started with.
	ConfigVersion string                 `json:"config_version,omitempty"`
	Status        Status                 `json:"status"`
	Messages      []Message              `json:"messages"`
	Fields        map[string]*FieldValue `json:"fields"`
	Pointer       int                    `json:"pointer"`
	Escalation    Escalation             `json:"escalation"`
	Metadata      map[string]any         `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	EndedAt       *time.Time             `json:"ended_at,omitempty"`
}

// NewConversation creates an empty active conversation.
func NewConversation(sessionID string, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		Status:    StatusActive,
		Messages:  []Message{},
		Fields:    make(map[string]*FieldValue),
		Metadata:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Conversation) touch(now time.Time) {
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// AddMessage appends an entry to the log.
func (c *Conversation) AddMessage(role Role, content string, now time.Time) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	c.Messages = append(c.Messages, msg)
	c.touch(now)
	return msg
}

// UserMessages returns the content of user messages in log order.
func (c *Conversation) UserMessages() []string {
	var out []string
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

// Attempt registers one extraction attempt for the field, creating its record if needed.
func (c *Conversation) Attempt(field string, now time.Time) *FieldValue {
	fv, ok := c.Fields[field]
	if !ok {
		fv = &FieldValue{}
		c.Fields[field] = fv
	}
	fv.Attempts++
	fv.LastAttemptAt = now
	c.touch(now)
	return fv
}

// Commit stores a validated value. A differing previous value is appended to the history.
// Commit returns false when no record exists for the field.
func (c *Conversation) Commit(field, value string, confidence float64, now time.Time) bool {
	fv, ok := c.Fields[field]
	if !ok {
		return false
	}
	if fv.Validated && fv.Value != value {
		fv.History = append(fv.History, fv.Value)
	}
	fv.Value = value
	fv.Validated = true
	fv.Skipped = false
	fv.Confidence = confidence
	c.touch(now)
	return true
}

// Skip marks an optional field as deliberately left empty.
func (c *Conversation) Skip(field string, now time.Time) bool {
	fv, ok := c.Fields[field]
	if !ok {
		return false
	}
	fv.Skipped = true
	c.touch(now)
	return true
}

// Escalate marks the conversation as handed off. It returns false if it already was.
func (c *Conversation) Escalate(reason, policyID, policyType string, now time.Time) bool {
	if c.Escalation.Escalated {
		return false
	}
	at := now
	c.Escalation = Escalation{
		Escalated:  true,
		Reason:     reason,
		PolicyID:   policyID,
		PolicyType: policyType,
		At:         &at,
	}
	c.finish(StatusEscalated, now)
	return true
}

// Complete marks the conversation as finished with all required data collected.
func (c *Conversation) Complete(now time.Time) {
	c.finish(StatusCompleted, now)
}

// Fail marks the conversation as aborted by an internal error.
func (c *Conversation) Fail(now time.Time) {
	c.finish(StatusFailed, now)
}

func (c *Conversation) finish(status Status, now time.Time) {
	if c.Status != StatusActive {
		return
	}
	c.Status = status
	ended := now
	c.EndedAt = &ended
	c.touch(now)
}

// Closed reports whether the conversation no longer accepts turns.
func (c *Conversation) Closed() bool {
	return c.Status != StatusActive || c.Escalation.Escalated
}

// Validated reports whether the field has a validated value.
func (c *Conversation) Validated(field string) bool {
	fv, ok := c.Fields[field]
	return ok && fv.Validated
}

// CollectedData returns the validated values keyed by field name.
func (c *Conversation) CollectedData() map[string]string {
	out := make(map[string]string)
	for name, fv := range c.Fields {
		if fv.Validated {
			out[name] = fv.Value
		}
	}
	return out
}

// Counter reads a small integer counter from the metadata map.
// JSON round trips turn numbers into float64, so both forms are accepted.
func (c *Conversation) Counter(key string) int {
	switch v := c.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Incr increments a metadata counter and returns the new value.
func (c *Conversation) Incr(key string, now time.Time) int {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	n := c.Counter(key) + 1
	c.Metadata[key] = n
	c.touch(now)
	return n
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = slices.Clone(c.Messages)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	out.Fields = make(map[string]*FieldValue, len(c.Fields))
	for k, v := range c.Fields {
		fv := *v
		fv.History = slices.Clone(v.History)
		out.Fields[k] = &fv
	}
	out.Metadata = maps.Clone(c.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	if c.Escalation.At != nil {
		at := *c.Escalation.At
		out.Escalation.At = &at
	}
	if c.EndedAt != nil {
		ended := *c.EndedAt
		out.EndedAt = &ended
	}
	return &out
}
