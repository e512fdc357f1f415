// Package testutils holds fixtures shared by the test suites of several packages.
package testutils

import (
	"testing"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/pkg/config"
	"github.com/stretchr/testify/require"
)

// ContactYAML collects a name and an email and hands off when the user asks for a human.
const ContactYAML = `
name: contact
fields:
  - name: name
    field_type: text
  - name: email
    field_type: email
escalation_policies:
  - policy_type: keyword
    reason: User asked for a human
    config:
      keywords: [human]
`

// ContactConfig parses ContactYAML. It fails the test immediately on error.
func ContactConfig(t *testing.T) *config.AgentConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(ContactYAML))
	require.NoError(t, err, "Failed to parse contact config")
	return cfg
}

// NewAgent creates an agent over ContactConfig.
func NewAgent(t *testing.T, opts ...intake.Option) *intake.Agent {
	t.Helper()
	agent, err := intake.New(ContactConfig(t), opts...)
	require.NoError(t, err, "Failed to create agent")
	return agent
}
