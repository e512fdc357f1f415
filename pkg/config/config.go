// Package config loads agent configurations: personality, greeting, the ordered
// field list and the escalation policies.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Defaults applied to omitted keys.
const (
	DefaultTone      = domain.ToneProfessional
	DefaultStyle     = "concise"
	DefaultFormality = domain.FormalityNeutral
	DefaultGreeting  = "Hello! I'm here to help collect some information."
)

// DefaultEmojiList is used when emoji_list is omitted.
var DefaultEmojiList = []string{"👋", "✅", "📧", "📱", "⚠️"}

// AgentConfig is a loaded and validated agent configuration.
type AgentConfig struct {
	// Name is derived from the file name when loaded from disk.
	Name        string                   `json:"name"`
	Personality domain.Personality       `json:"personality"`
	Greeting    string                   `json:"greeting"`
	Fields      []domain.FieldDefinition `json:"fields"`
	Policies    []domain.PolicySpec      `json:"escalation_policies"`
}

// Field returns the definition with the given name.
func (c *AgentConfig) Field(name string) (domain.FieldDefinition, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldDefinition{}, false
}

// RequiredFields lists the names of required fields in order.
func (c *AgentConfig) RequiredFields() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// file mirrors the YAML layout. Pointers distinguish omitted keys from zero values.
type file struct {
	Name        string        `yaml:"name"`
	Personality *personality  `yaml:"personality"`
	Greeting    *string       `yaml:"greeting"`
	Fields      []fieldEntry  `yaml:"fields"`
	Policies    []policyEntry `yaml:"escalation_policies"`
}

type personality struct {
	Tone      string   `yaml:"tone"`
	Style     *string  `yaml:"style"`
	Formality string   `yaml:"formality"`
	Emoji     bool     `yaml:"emoji_usage"`
	EmojiList []string `yaml:"emoji_list"`
}

type fieldEntry struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"field_type"`
	Required   *bool  `yaml:"required"`
	Pattern    string `yaml:"validation_pattern"`
	PromptHint string `yaml:"prompt_hint"`
}

type policyEntry struct {
	Enabled *bool          `yaml:"enabled"`
	Reason  string         `yaml:"reason"`
	Type    string         `yaml:"policy_type"`
	Config  map[string]any `yaml:"config"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if cfg.Name == "" {
		cfg.Name = NameOf(path)
	}
	return cfg, nil
}

// NameOf derives a configuration name from its file path.
func NameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*AgentConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("configuration is empty")
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	cfg := f.build()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f file) build() *AgentConfig {
	cfg := &AgentConfig{
		Name:     strings.TrimSpace(f.Name),
		Greeting: DefaultGreeting,
		Personality: domain.Personality{
			Tone:      DefaultTone,
			Style:     DefaultStyle,
			Formality: DefaultFormality,
			EmojiList: append([]string(nil), DefaultEmojiList...),
		},
	}
	if f.Greeting != nil {
		cfg.Greeting = strings.TrimSpace(*f.Greeting)
	}
	if p := f.Personality; p != nil {
		if p.Tone != "" {
			cfg.Personality.Tone = p.Tone
		}
		if p.Style != nil {
			cfg.Personality.Style = strings.TrimSpace(*p.Style)
		}
		if p.Formality != "" {
			cfg.Personality.Formality = p.Formality
		}
		cfg.Personality.Emoji = p.Emoji
		if p.EmojiList != nil {
			cfg.Personality.EmojiList = p.EmojiList
		}
	}

	for _, fe := range f.Fields {
		def := domain.FieldDefinition{
			Name:       strings.TrimSpace(fe.Name),
			Type:       domain.FieldText,
			Required:   fe.Required == nil || *fe.Required,
			Pattern:    fe.Pattern,
			PromptHint: fe.PromptHint,
		}
		if fe.Type != "" {
			def.Type = domain.FieldType(fe.Type)
		}
		cfg.Fields = append(cfg.Fields, def)
	}

	for _, pe := range f.Policies {
		cfg.Policies = append(cfg.Policies, domain.PolicySpec{
			Type:    pe.Type,
			Reason:  strings.TrimSpace(pe.Reason),
			Enabled: pe.Enabled == nil || *pe.Enabled,
			Config:  pe.Config,
		})
	}
	return cfg
}

// Marshal renders the configuration back to YAML.
func Marshal(cfg *AgentConfig) ([]byte, error) {
	f := file{
		Name: cfg.Name,
		Personality: &personality{
			Tone:      cfg.Personality.Tone,
			Style:     &cfg.Personality.Style,
			Formality: cfg.Personality.Formality,
			Emoji:     cfg.Personality.Emoji,
			EmojiList: cfg.Personality.EmojiList,
		},
		Greeting: &cfg.Greeting,
	}
	for _, fd := range cfg.Fields {
		required := fd.Required
		f.Fields = append(f.Fields, fieldEntry{
			Name:       fd.Name,
			Type:       string(fd.Type),
			Required:   &required,
			Pattern:    fd.Pattern,
			PromptHint: fd.PromptHint,
		})
	}
	for _, p := range cfg.Policies {
		enabled := p.Enabled
		f.Policies = append(f.Policies, policyEntry{
			Enabled: &enabled,
			Reason:  p.Reason,
			Type:    p.Type,
			Config:  p.Config,
		})
	}
	return yaml.Marshal(f)
}

// Digest identifies the content of a configuration. Two configurations with the
// same name but different fields, policies or phrasing have different digests.
func Digest(cfg *AgentConfig) (string, error) {
	data, err := Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to digest configuration: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6]), nil
}
