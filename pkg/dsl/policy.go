package dsl

import (
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
)

// PolicyBuilder provides a fluent API for configuring an escalation policy.
type PolicyBuilder struct {
	spec domain.PolicySpec
}

// Keywords fires when a message contains one of the keywords.
func (p *PolicyBuilder) Keywords(keywords ...string) *PolicyBuilder {
	p.spec.Type = escalation.TypeKeyword
	p.spec.Config["keywords"] = keywords
	return p
}

// CaseSensitive makes keyword matching case sensitive.
func (p *PolicyBuilder) CaseSensitive() *PolicyBuilder {
	p.spec.Config["case_sensitive"] = true
	return p
}

// WholeWord restricts keyword matches to whole words.
func (p *PolicyBuilder) WholeWord() *PolicyBuilder {
	p.spec.Config["match_whole_word"] = true
	return p
}

// Timeout fires after maxSeconds of conversation or maxAttempts on one field.
// Zero disables the corresponding limit.
func (p *PolicyBuilder) Timeout(maxSeconds float64, maxAttempts int) *PolicyBuilder {
	p.spec.Type = escalation.TypeTimeout
	if maxSeconds > 0 {
		p.spec.Config["max_duration_seconds"] = maxSeconds
	}
	if maxAttempts > 0 {
		p.spec.Config["max_attempts"] = maxAttempts
	}
	return p
}

// Sentiment fires when the average score of the last window user messages is below threshold.
func (p *PolicyBuilder) Sentiment(threshold float64, window int) *PolicyBuilder {
	p.spec.Type = escalation.TypeSentiment
	p.spec.Config["threshold"] = threshold
	if window > 0 {
		p.spec.Config["window"] = window
	}
	return p
}

// Intents fires when the classifier detects one of the intents with enough confidence.
func (p *PolicyBuilder) Intents(confidence float64, intents ...string) *PolicyBuilder {
	p.spec.Type = escalation.TypeLLMIntent
	if len(intents) > 0 {
		p.spec.Config["intents"] = intents
	}
	if confidence > 0 {
		p.spec.Config["confidence_threshold"] = confidence
	}
	return p
}

// OnCompletion fires once the listed fields are validated (all required fields when empty).
func (p *PolicyBuilder) OnCompletion(fields ...string) *PolicyBuilder {
	p.spec.Type = escalation.TypeCompletion
	if len(fields) > 0 {
		p.spec.Config["required_fields"] = fields
	}
	return p
}

// Disabled keeps the policy in the configuration without evaluating it.
func (p *PolicyBuilder) Disabled() *PolicyBuilder {
	p.spec.Enabled = false
	return p
}
