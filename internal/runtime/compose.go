package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
)

// Fixed texts used regardless of personality.
const (
	EscalationText = "I understand you'd like to speak with a human agent. I'm connecting you now. Thank you for your patience."
	CompletionText = "Thank you! We have all the information we need."
	redirectFormat = "I appreciate that! Could you please provide your %s?"
)

var acknowledgements = map[string]string{
	domain.ToneFriendly:     "Great!",
	domain.ToneProfessional: "Thank you.",
	domain.ToneCasual:       "Cool!",
	domain.ToneEmpathetic:   "Thanks for sharing that.",
}

var guidance = map[domain.FieldType]string{
	domain.FieldEmail:  "Please use a format like name@example.com.",
	domain.FieldPhone:  "Please include at least 7 digits, for example +1 555 123 4567.",
	domain.FieldURL:    "Please include the full address, starting with http:// or https://.",
	domain.FieldNumber: "Please enter a number, for example 42 or 3.5.",
	domain.FieldDate:   "Please use a date such as 2024-01-31.",
}

// Composer renders the outbound messages of a conversation.
// Personality shapes the wording only; it never affects routing.
type Composer struct {
	personality domain.Personality
}

// NewComposer creates a Composer for the given personality.
func NewComposer(p domain.Personality) *Composer {
	return &Composer{personality: p}
}

// Greeting opens a conversation and asks for the first field.
func (c *Composer) Greeting(greeting string, first *domain.FieldDefinition) string {
	text := c.decorate(greeting, 0)
	if first == nil {
		return text
	}
	return text + " " + c.Ask(*first)
}

// Ask requests a field.
func (c *Composer) Ask(f domain.FieldDefinition) string {
	var q string
	switch c.personality.Formality {
	case domain.FormalityFormal:
		q = fmt.Sprintf("May I please have your %s?", f.Label())
	case domain.FormalityInformal:
		q = fmt.Sprintf("What's your %s?", f.Label())
	default:
		q = fmt.Sprintf("Could you please provide your %s?", f.Label())
	}
	if f.PromptHint != "" {
		q += " (" + f.PromptHint + ")"
	}
	if !f.Required {
		q += " You can say \"skip\" if you'd rather not share it."
	}
	return q
}

// Next acknowledges an accepted answer and asks for the following field.
func (c *Composer) Next(f domain.FieldDefinition) string {
	ack, ok := acknowledgements[c.personality.Tone]
	if !ok {
		ack = acknowledgements[domain.ToneProfessional]
	}
	return ack + " " + c.Ask(f)
}

// Updated confirms a correction and asks for the field still pending.
func (c *Composer) Updated(corrected, pending domain.FieldDefinition) string {
	return fmt.Sprintf("Got it, I've updated your %s. %s", corrected.Label(), c.Ask(pending))
}

// Retry explains the expected format of a rejected answer and asks again.
// When the rejected answer targeted another field than the pending one, both are mentioned.
func (c *Composer) Retry(rejected, pending domain.FieldDefinition) string {
	text := fmt.Sprintf("That doesn't look like a valid %s. %s", rejected.Label(), Guidance(rejected))
	if rejected.Name != pending.Name {
		return text + " Your " + rejected.Label() + " was left unchanged. " + c.Ask(pending)
	}
	return text + " " + c.Ask(pending)
}

// Redirect steers an off-topic reply back to the pending field.
func (c *Composer) Redirect(f domain.FieldDefinition) string {
	return fmt.Sprintf(redirectFormat, f.Label())
}

// Completion thanks the user once everything is collected.
func (c *Composer) Completion() string {
	return c.decorate(CompletionText, 1)
}

// Escalation announces the handoff to a human.
func (c *Composer) Escalation() string {
	return EscalationText
}

// Guidance describes the expected format of a field.
func Guidance(f domain.FieldDefinition) string {
	if f.PromptHint != "" {
		return "Expected: " + f.PromptHint + "."
	}
	if g, ok := guidance[f.Type]; ok {
		return g
	}
	if f.Pattern != "" {
		return "Please check the format and try again."
	}
	return "Please provide a value."
}

// decorate appends the emoji at index i of the personality's list, if emoji are enabled.
func (c *Composer) decorate(text string, i int) string {
	p := c.personality
	if !p.Emoji || len(p.EmojiList) == 0 {
		return text
	}
	if i >= len(p.EmojiList) {
		i = 0
	}
	return strings.TrimSpace(text) + " " + p.EmojiList[i]
}
