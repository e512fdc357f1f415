package intake_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactYAML = `
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

func parse(t *testing.T, doc string) *config.AgentConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func newAgent(t *testing.T, opts ...intake.Option) *intake.Agent {
	t.Helper()
	agent, err := intake.New(parse(t, contactYAML), opts...)
	require.NoError(t, err)
	return agent
}

func TestAgent_HappyPath(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, "greeting", res.Kind)
	assert.Equal(t, "name", res.Field)
	assert.Equal(t, domain.StatusActive, res.Status)

	res, err = agent.Send(ctx, res.SessionID, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "ask", res.Kind)
	assert.Equal(t, "email", res.Field)

	res, err = agent.Send(ctx, res.SessionID, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "complete", res.Kind)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, map[string]string{"name": "Jane Doe", "email": "jane@example.com"}, res.CollectedData)
	assert.Contains(t, res.Path, "validate")

	conv, err := agent.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "contact", conv.ConfigName)
	assert.Len(t, conv.Messages, 5, "greeting plus two exchanges")
	assert.NotNil(t, conv.EndedAt)
}

func TestAgent_Correction(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	id := res.SessionID

	_, err = agent.Send(ctx, id, "John Doe")
	require.NoError(t, err)

	res, err = agent.Send(ctx, id, "No, my name is Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "updated", res.Kind)
	assert.Equal(t, "email", res.Field)
	assert.Contains(t, res.CollectedData["name"], "Jane")
	assert.NotContains(t, res.CollectedData, "email")
}

func TestAgent_OffTopic(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	_, err = agent.Send(ctx, res.SessionID, "John Doe")
	require.NoError(t, err)

	res, err = agent.Send(ctx, res.SessionID, "What's the weather?")
	require.NoError(t, err)
	assert.Equal(t, "redirect", res.Kind)
	assert.Equal(t, "I appreciate that! Could you please provide your email?", res.Text)
}

func TestAgent_EscalationClosesConversation(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	id := res.SessionID

	res, err = agent.Send(ctx, id, "I want to talk to a human")
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.Equal(t, domain.StatusEscalated, res.Status)

	conv, err := agent.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "User asked for a human", conv.Escalation.Reason)
	assert.Equal(t, "policy_0_keyword", conv.Escalation.PolicyID)

	_, err = agent.Send(ctx, id, "hello?")
	assert.ErrorIs(t, err, domain.ErrConversationClosed)
}

func TestAgent_AnswerNamingPendingFieldIsNotACorrection(t *testing.T) {
	ctx := context.Background()
	agent, err := intake.New(parse(t, `
name: signup
fields:
  - name: name
  - name: company_name
`))
	require.NoError(t, err)

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	_, err = agent.Send(ctx, res.SessionID, "Jane Doe")
	require.NoError(t, err)

	res, err = agent.Send(ctx, res.SessionID, "Actually my company name is Acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, map[string]string{"name": "Jane Doe", "company_name": "Acme"}, res.CollectedData)
}

func TestAgent_UnknownSession(t *testing.T) {
	agent := newAgent(t)
	_, err := agent.Send(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = agent.Explain(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAgent_StartWithIDRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	_, err := agent.StartWithID(ctx, "fixed")
	require.NoError(t, err)
	_, err = agent.StartWithID(ctx, "fixed")
	assert.ErrorIs(t, err, domain.ErrSessionExists)
}

func TestAgent_Explain(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)
	res, err := agent.Start(ctx)
	require.NoError(t, err)

	fired, err := agent.Explain(ctx, res.SessionID, "get me a human")
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "keyword", fired[0].PolicyType)

	conv, err := agent.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1, "explain must not run a turn")
}

func TestAgent_SwitchKeepsRunningConversations(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	old, err := agent.Start(ctx)
	require.NoError(t, err)

	err = agent.Switch(parse(t, `
name: feedback
fields:
  - name: rating
    field_type: number
`))
	require.NoError(t, err)
	assert.Equal(t, "feedback", agent.Config().Name)
	assert.Empty(t, agent.Policies())

	fresh, err := agent.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rating", fresh.Field)

	res, err := agent.Send(ctx, old.SessionID, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "email", res.Field, "started conversations keep their configuration")

	res, err = agent.Send(ctx, old.SessionID, "I need a human")
	require.NoError(t, err)
	assert.True(t, res.Escalated, "policies of the original configuration still apply")
}

func TestAgent_ReloadSameNameKeepsRunningConversations(t *testing.T) {
	ctx := context.Background()
	agent := newAgent(t)

	old, err := agent.Start(ctx)
	require.NoError(t, err)
	_, err = agent.Send(ctx, old.SessionID, "John Doe")
	require.NoError(t, err)

	err = agent.Switch(parse(t, `
name: contact
fields:
  - name: full_name
  - name: email
    field_type: email
`))
	require.NoError(t, err)

	res, err := agent.Send(ctx, old.SessionID, "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, map[string]string{"name": "John Doe", "email": "john@example.com"}, res.CollectedData)

	fresh, err := agent.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "full_name", fresh.Field)

	conv, err := agent.Get(ctx, fresh.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "contact", conv.ConfigName)
	assert.NotEmpty(t, conv.ConfigVersion)
}

func TestAgent_SwitchRejectsInvalidConfig(t *testing.T) {
	agent := newAgent(t)
	err := agent.Switch(&config.AgentConfig{Name: "broken"})
	require.Error(t, err)
	assert.Equal(t, "contact", agent.Config().Name)
}

func TestAgent_ListCountPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	agent := newAgent(t, intake.WithStore(memory.NewStore()), intake.WithClock(clock))

	for i := range 3 {
		_, err := agent.StartWithID(ctx, fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	_, err := agent.Send(ctx, "s0", "I want a human")
	require.NoError(t, err)

	all, err := agent.List(ctx, ports.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	escalated, err := agent.Count(ctx, domain.StatusEscalated)
	require.NoError(t, err)
	assert.Equal(t, 1, escalated)

	now = now.Add(48 * time.Hour)
	removed, err := agent.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	total, err := agent.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAgent_ConcurrentSendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	agent, err := intake.New(parse(t, `
fields:
  - name: notes
    field_type: text
  - name: more
    field_type: text
`))
	require.NoError(t, err)

	res, err := agent.Start(ctx)
	require.NoError(t, err)

	const senders = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	closed := 0
	for range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agent.Send(ctx, res.SessionID, "some notes here")
			if errors.Is(err, domain.ErrConversationClosed) {
				mu.Lock()
				closed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, senders-2, closed)

	conv, err := agent.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, conv.Status)
	assert.Len(t, conv.UserMessages(), 2, "no turn is lost or duplicated before completion")
}

func TestAgent_LifecycleHooks(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var opened []string
	var turns int
	hooks := domain.LifecycleHooks{
		OnConversationOpen: func(_ context.Context, e *domain.ConversationEvent) {
			mu.Lock()
			defer mu.Unlock()
			opened = append(opened, e.ConfigName)
		},
		OnTurnComplete: func(context.Context, *domain.TurnEvent) {
			mu.Lock()
			defer mu.Unlock()
			turns++
		},
	}
	agent := newAgent(t, intake.WithLifecycleHooks(hooks))

	res, err := agent.Start(ctx)
	require.NoError(t, err)
	_, err = agent.Send(ctx, res.SessionID, "Jane Doe")
	require.NoError(t, err)

	assert.Equal(t, []string{"contact"}, opened)
	assert.Equal(t, 1, turns)
}
