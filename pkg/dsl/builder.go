package dsl

import (
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
)

// Builder manages the configuration construction.
type Builder struct {
	cfg      *config.AgentConfig
	fields   []*FieldBuilder
	policies []*PolicyBuilder
}

// New creates a builder with the same defaults as an empty YAML file.
func New(name string) *Builder {
	return &Builder{
		cfg: &config.AgentConfig{
			Name:     name,
			Greeting: config.DefaultGreeting,
			Personality: domain.Personality{
				Tone:      config.DefaultTone,
				Style:     config.DefaultStyle,
				Formality: config.DefaultFormality,
				EmojiList: append([]string(nil), config.DefaultEmojiList...),
			},
		},
	}
}

// Greeting replaces the opening line of new conversations.
func (b *Builder) Greeting(text string) *Builder {
	b.cfg.Greeting = text
	return b
}

// Personality sets the tone and formality of replies.
func (b *Builder) Personality(tone, formality string) *Builder {
	b.cfg.Personality.Tone = tone
	b.cfg.Personality.Formality = formality
	return b
}

// Style sets the free-form style descriptor.
func (b *Builder) Style(style string) *Builder {
	b.cfg.Personality.Style = style
	return b
}

// Emoji toggles emoji decoration of greetings and completions.
func (b *Builder) Emoji(on bool, list ...string) *Builder {
	b.cfg.Personality.Emoji = on
	if len(list) > 0 {
		b.cfg.Personality.EmojiList = list
	}
	return b
}

// Field appends a field to collect. Fields are asked in the order they are added.
// If the field already exists, it returns the existing builder.
func (b *Builder) Field(name string) *FieldBuilder {
	for _, fb := range b.fields {
		if fb.def.Name == name {
			return fb
		}
	}
	fb := &FieldBuilder{def: domain.FieldDefinition{Name: name, Type: domain.FieldText, Required: true}}
	b.fields = append(b.fields, fb)
	return fb
}

// Escalate appends an escalation policy with the given reason.
// The policy type is chosen by the PolicyBuilder method called next.
func (b *Builder) Escalate(reason string) *PolicyBuilder {
	pb := &PolicyBuilder{spec: domain.PolicySpec{Reason: reason, Enabled: true, Config: map[string]any{}}}
	b.policies = append(b.policies, pb)
	return pb
}

// Build validates and returns the configuration. Every problem is reported at once
// in a *config.Error.
func (b *Builder) Build() (*config.AgentConfig, error) {
	cfg := *b.cfg
	cfg.Personality.EmojiList = append([]string(nil), b.cfg.Personality.EmojiList...)
	cfg.Fields = make([]domain.FieldDefinition, 0, len(b.fields))
	for _, fb := range b.fields {
		cfg.Fields = append(cfg.Fields, fb.def)
	}
	cfg.Policies = make([]domain.PolicySpec, 0, len(b.policies))
	for _, pb := range b.policies {
		spec := pb.spec
		spec.Config = make(map[string]any, len(pb.spec.Config))
		for k, v := range pb.spec.Config {
			spec.Config[k] = v
		}
		cfg.Policies = append(cfg.Policies, spec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustBuild is like Build but panics on an invalid configuration.
func (b *Builder) MustBuild() *config.AgentConfig {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}
