package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/validation"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var (
	tones       = []string{domain.ToneFriendly, domain.ToneProfessional, domain.ToneCasual, domain.ToneEmpathetic}
	formalities = []string{domain.FormalityFormal, domain.FormalityNeutral, domain.FormalityInformal}
)

// Error aggregates every problem found while validating a configuration.
type Error struct {
	Problems []error
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() []error { return e.Problems }

// Validate checks the configuration. All problems are reported at once.
func (c *AgentConfig) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Greeting == "" {
		add("greeting must not be empty")
	}
	if !contains(tones, c.Personality.Tone) {
		add("personality: unsupported tone %q", c.Personality.Tone)
	}
	if !contains(formalities, c.Personality.Formality) {
		add("personality: unsupported formality %q", c.Personality.Formality)
	}
	if c.Personality.Style == "" {
		add("personality: style must not be empty")
	}

	if len(c.Fields) == 0 {
		add("at least one field must be configured")
	}
	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		switch {
		case f.Name == "":
			add("field %d: name must not be empty", i)
		case !fieldNamePattern.MatchString(f.Name):
			add("field %q: name must contain only letters, digits and underscores", f.Name)
		case seen[f.Name]:
			add("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			add("field %q: unsupported field_type %q", f.Name, f.Type)
		}
	}

	for i, p := range c.Policies {
		if p.Reason == "" {
			add("policy %d: reason must not be empty", i)
		}
		if !escalation.Known(p.Type) {
			add("policy %d: unsupported policy_type %q", i, p.Type)
			continue
		}
		if err := escalation.Check(p.Type, p.Config); err != nil {
			add("policy %d (%s): %w", i, p.Type, err)
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Warnings reports recoverable issues, such as validation patterns that do not compile.
// Such fields still validate, with reduced confidence.
func (c *AgentConfig) Warnings() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Pattern == "" {
			continue
		}
		if err := validation.CheckPattern(f.Pattern); err != nil {
			out = append(out, fmt.Sprintf("field %q: %v", f.Name, err))
		}
	}
	return out
}

// IsConfigError reports whether err is a configuration validation error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
