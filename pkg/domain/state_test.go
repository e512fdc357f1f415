package domain_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_CommitKeepsHistory(t *testing.T) {
	now := time.Now()
	c := domain.NewConversation("s1", now)

	assert.False(t, c.Commit("name", "John", 1, now), "commit without attempt must be refused")

	c.Attempt("name", now)
	require.True(t, c.Commit("name", "John Doe", 1, now))
	c.Attempt("name", now)
	require.True(t, c.Commit("name", "Jane Doe", 0.9, now))

	fv := c.Fields["name"]
	assert.Equal(t, "Jane Doe", fv.Value)
	assert.Equal(t, 2, fv.Attempts)
	assert.Equal(t, []string{"John Doe"}, fv.History)

	// Re-committing the same value does not grow the history.
	c.Attempt("name", now)
	c.Commit("name", "Jane Doe", 0.9, now)
	assert.Equal(t, []string{"John Doe"}, fv.History)
}

func TestConversation_EscalateIsMonotonic(t *testing.T) {
	now := time.Now()
	c := domain.NewConversation("s1", now)

	assert.True(t, c.Escalate("asked for human", "policy_0_keyword", "keyword", now))
	assert.False(t, c.Escalate("again", "policy_1_timeout", "timeout", now.Add(time.Second)))

	assert.True(t, c.Escalation.Escalated)
	assert.Equal(t, "asked for human", c.Escalation.Reason)
	assert.Equal(t, domain.StatusEscalated, c.Status)
	assert.True(t, c.Closed())

	// Completing after escalation must not rewrite the terminal status.
	c.Complete(now.Add(2 * time.Second))
	assert.Equal(t, domain.StatusEscalated, c.Status)
}

func TestConversation_CloneIsDeep(t *testing.T) {
	now := time.Now()
	c := domain.NewConversation("s1", now)
	c.AddMessage(domain.RoleUser, "hello", now)
	c.Attempt("email", now)
	c.Commit("email", "a@b.co", 1, now)
	c.Incr(domain.KeyOffTopicCount, now)

	cp := c.Clone()
	cp.Fields["email"].Value = "changed"
	cp.Messages[0].Content = "changed"
	cp.Metadata["x"] = 1

	assert.Equal(t, "a@b.co", c.Fields["email"].Value)
	assert.Equal(t, "hello", c.Messages[0].Content)
	assert.NotContains(t, c.Metadata, "x")
}

func TestConversation_CounterSurvivesJSON(t *testing.T) {
	now := time.Now()
	c := domain.NewConversation("s1", now)
	c.Incr(domain.KeyOffTopicCount, now)
	c.Incr(domain.KeyOffTopicCount, now)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var back domain.Conversation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 2, back.Counter(domain.KeyOffTopicCount))
	assert.Equal(t, 3, back.Incr(domain.KeyOffTopicCount, now))
}

func TestConversation_CollectedDataOnlyValidated(t *testing.T) {
	now := time.Now()
	c := domain.NewConversation("s1", now)
	c.Attempt("name", now)
	c.Commit("name", "Ada", 1, now)
	c.Attempt("email", now)

	assert.Equal(t, map[string]string{"name": "Ada"}, c.CollectedData())
	assert.True(t, c.Validated("name"))
	assert.False(t, c.Validated("email"))
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { calls = append(calls, "a:"+e.NodeID) }}
	b := domain.LifecycleHooks{OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) { calls = append(calls, "b:"+e.NodeID) }}

	merged := a.Merge(b)
	merged.OnNodeEnter(context.Background(), &domain.NodeEvent{NodeID: "validate"})

	assert.Equal(t, []string{"a:validate", "b:validate"}, calls)
	assert.Nil(t, merged.OnEscalation)
}
