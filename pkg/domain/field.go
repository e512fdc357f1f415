package domain

import "strings"

// FieldType is the declared type of a collected field.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldEmail  FieldType = "email"
	FieldPhone  FieldType = "phone"
	FieldURL    FieldType = "url"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
)

// FieldTypes lists every supported field type in declaration order.
var FieldTypes = []FieldType{FieldText, FieldEmail, FieldPhone, FieldURL, FieldNumber, FieldDate}

// Valid reports whether t is a supported field type.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// FieldDefinition describes one piece of information the conversation collects.
// Definitions are owned by configuration and never mutated by the engine.
type FieldDefinition struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"field_type"`
	Required   bool      `json:"required"`
	Pattern    string    `json:"validation_pattern,omitempty"`
	PromptHint string    `json:"prompt_hint,omitempty"`
}

// Label is the human readable name used in prompts.
func (f FieldDefinition) Label() string {
	return strings.ReplaceAll(f.Name, "_", " ")
}

// Personality shapes response phrasing. It never influences routing.
type Personality struct {
	Tone      string   `json:"tone"`
	Style     string   `json:"style"`
	Formality string   `json:"formality"`
	Emoji     bool     `json:"emoji_usage"`
	EmojiList []string `json:"emoji_list,omitempty"`
}

// Tones and formalities understood by the response composer.
const (
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
	ToneCasual       = "casual"
	ToneEmpathetic   = "empathetic"

	FormalityFormal   = "formal"
	FormalityNeutral  = "neutral"
	FormalityInformal = "informal"
)

// PolicySpec is the configured form of an escalation policy.
// Config is decoded into a typed structure by the escalation package.
type PolicySpec struct {
	Type    string         `json:"policy_type"`
	Reason  string         `json:"reason"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}
