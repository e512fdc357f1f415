package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicYAML = `
personality:
  tone: friendly
  emoji_usage: true
greeting: "Hi there!"
fields:
  - name: full_name
    prompt_hint: "First and last name"
  - name: email
    field_type: email
  - name: company
    required: false
escalation_policies:
  - policy_type: keyword
    reason: "User asked for a human"
    config:
      keywords: ["human", "agent"]
  - policy_type: timeout
    reason: "Conversation took too long"
    enabled: false
    config:
      max_duration_seconds: "600"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(basicYAML))
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", cfg.Greeting)
	assert.Equal(t, domain.ToneFriendly, cfg.Personality.Tone)
	assert.Equal(t, config.DefaultStyle, cfg.Personality.Style)
	assert.Equal(t, domain.FormalityNeutral, cfg.Personality.Formality)
	assert.True(t, cfg.Personality.Emoji)
	assert.Equal(t, config.DefaultEmojiList, cfg.Personality.EmojiList)

	require.Len(t, cfg.Fields, 3)
	assert.Equal(t, domain.FieldText, cfg.Fields[0].Type)
	assert.True(t, cfg.Fields[0].Required)
	assert.Equal(t, "First and last name", cfg.Fields[0].PromptHint)
	assert.Equal(t, domain.FieldEmail, cfg.Fields[1].Type)
	assert.False(t, cfg.Fields[2].Required)
	assert.Equal(t, []string{"full_name", "email"}, cfg.RequiredFields())

	require.Len(t, cfg.Policies, 2)
	assert.True(t, cfg.Policies[0].Enabled)
	assert.False(t, cfg.Policies[1].Enabled)

	f, ok := cfg.Field("email")
	require.True(t, ok)
	assert.Equal(t, "email", f.Name)
}

func TestParse_MinimalUsesDefaultGreeting(t *testing.T) {
	cfg, err := config.Parse([]byte("fields:\n  - name: name\n"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGreeting, cfg.Greeting)
	assert.Equal(t, config.DefaultTone, cfg.Personality.Tone)
	assert.Empty(t, cfg.Policies)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		problem string
	}{
		{"empty document", "", "empty"},
		{"no fields", "greeting: hi\n", "at least one field"},
		{"duplicate names", "fields:\n  - name: a\n  - name: a\n", "duplicate"},
		{"bad name", "fields:\n  - name: \"first name\"\n", "letters, digits"},
		{"bad type", "fields:\n  - name: a\n    field_type: color\n", "unsupported field_type"},
		{"bad tone", "personality:\n  tone: grumpy\nfields:\n  - name: a\n", "unsupported tone"},
		{"bad policy type", "fields:\n  - name: a\nescalation_policies:\n  - policy_type: magic\n    reason: r\n", "unsupported policy_type"},
		{"empty reason", "fields:\n  - name: a\nescalation_policies:\n  - policy_type: completion\n    reason: \" \"\n", "reason must not be empty"},
		{"empty keywords", "fields:\n  - name: a\nescalation_policies:\n  - policy_type: keyword\n    reason: r\n", "keywords"},
		{"malformed yaml", "fields: [", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParse_AggregatesProblems(t *testing.T) {
	_, err := config.Parse([]byte("personality:\n  formality: casual\nfields:\n  - name: a\n  - name: a\n    field_type: color\n"))
	require.Error(t, err)

	var ce *config.Error
	require.True(t, errors.As(err, &ce))
	assert.Len(t, ce.Problems, 3)
	assert.True(t, config.IsConfigError(err))
}

func TestWarnings_MalformedPattern(t *testing.T) {
	cfg, err := config.Parse([]byte("fields:\n  - name: code\n    validation_pattern: \"[a-z\"\n"))
	require.NoError(t, err, "a malformed pattern is recoverable")
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "code")
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg, err := config.Parse([]byte(basicYAML))
	require.NoError(t, err)
	data, err := config.Marshal(cfg)
	require.NoError(t, err)

	again, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Fields, again.Fields)
	assert.Equal(t, cfg.Personality, again.Personality)
	assert.Equal(t, len(cfg.Policies), len(again.Policies))
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "support.yaml"), []byte(basicYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "basic.yml"), []byte("fields:\n  - name: name\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg := config.NewRegistry(dir)
	entries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "basic", entries[0].Name)
	assert.Equal(t, "support", entries[1].Name)

	assert.Nil(t, reg.Active())
	cfg, err := reg.Activate("support.yaml")
	require.NoError(t, err)
	assert.Equal(t, "support", cfg.Name)
	assert.Same(t, cfg, reg.Active())

	_, err = reg.Load("missing")
	assert.ErrorIs(t, err, config.ErrNotFound)

	_, err = reg.Load("../etc/passwd")
	assert.Error(t, err)
}

func TestRegistry_MissingDirectory(t *testing.T) {
	reg := config.NewRegistry(filepath.Join(t.TempDir(), "nope"))
	entries, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDigest(t *testing.T) {
	a, err := config.Parse([]byte(basicYAML))
	require.NoError(t, err)
	b, err := config.Parse([]byte(basicYAML))
	require.NoError(t, err)

	da, err := config.Digest(a)
	require.NoError(t, err)
	db, err := config.Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db, "same content, same digest")
	assert.Len(t, da, 12)

	b.Fields[0].Name = "full_name"
	changed, err := config.Digest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, changed)
}
