package escalation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	score float64
	err   error
	calls int
}

func (s *stubScorer) Score(_ context.Context, msgs []string) (float64, error) {
	s.calls++
	return s.score, s.err
}

type stubClassifier struct {
	labels []string
	err    error
	last   ports.IntentRequest
}

func (s *stubClassifier) Classify(_ context.Context, req ports.IntentRequest) ([]string, error) {
	s.last = req
	return s.labels, s.err
}

var testFields = []domain.FieldDefinition{
	{Name: "name", Type: domain.FieldText, Required: true},
	{Name: "email", Type: domain.FieldEmail, Required: true},
	{Name: "nickname", Type: domain.FieldText, Required: false},
}

func snapshot(conv *domain.Conversation, msg string, now time.Time) escalation.Snapshot {
	return escalation.Snapshot{Conversation: conv, Fields: testFields, Message: msg, Now: now}
}

func userConv(now time.Time, msgs ...string) *domain.Conversation {
	c := domain.NewConversation("s", now)
	for _, m := range msgs {
		c.AddMessage(domain.RoleUser, m, now)
	}
	return c
}

func TestEngine_FixedOrderFirstHitWins(t *testing.T) {
	now := time.Now()
	specs := []domain.PolicySpec{
		{Type: escalation.TypeCompletion, Reason: "done", Enabled: true},
		{Type: escalation.TypeTimeout, Reason: "too slow", Enabled: true, Config: map[string]any{"max_duration_seconds": 1}},
		{Type: escalation.TypeKeyword, Reason: "asked for human", Enabled: true, Config: map[string]any{"keywords": []any{"human"}}},
	}
	eng, err := escalation.New(specs, escalation.Deps{})
	require.NoError(t, err)

	var types []string
	for _, r := range eng.Rules() {
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{"keyword", "timeout", "completion"}, types)

	conv := userConv(now.Add(-time.Hour), "I want a human")
	res := eng.Evaluate(context.Background(), snapshot(conv, "I want a human", now))
	assert.True(t, res.ShouldEscalate)
	assert.Equal(t, "asked for human", res.Reason)
	assert.Equal(t, "policy_2_keyword", res.PolicyID)

	all := eng.EvaluateAll(context.Background(), snapshot(conv, "I want a human", now))
	require.Len(t, all, 2)
	assert.Equal(t, "timeout", all[1].PolicyType)
}

func TestEngine_DisabledPoliciesAreExcluded(t *testing.T) {
	specs := []domain.PolicySpec{
		{Type: escalation.TypeKeyword, Reason: "kw", Enabled: false, Config: map[string]any{"keywords": []any{"human"}}},
	}
	eng, err := escalation.New(specs, escalation.Deps{})
	require.NoError(t, err)
	assert.Empty(t, eng.Rules())

	res := eng.Evaluate(context.Background(), snapshot(userConv(time.Now()), "human please", time.Now()))
	assert.False(t, res.ShouldEscalate)
	assert.Empty(t, res.Reason)
}

func TestEngine_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		spec domain.PolicySpec
	}{
		{"unknown type", domain.PolicySpec{Type: "psychic", Enabled: true}},
		{"empty keywords", domain.PolicySpec{Type: escalation.TypeKeyword, Enabled: true}},
		{"unknown key", domain.PolicySpec{Type: escalation.TypeKeyword, Enabled: true, Config: map[string]any{"keywords": []any{"x"}, "bogus": 1}}},
		{"timeout without limits", domain.PolicySpec{Type: escalation.TypeTimeout, Enabled: true}},
		{"sentiment threshold range", domain.PolicySpec{Type: escalation.TypeSentiment, Enabled: true, Config: map[string]any{"threshold": -3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := escalation.New([]domain.PolicySpec{tt.spec}, escalation.Deps{Sentiment: &stubScorer{}})
			assert.Error(t, err)
		})
	}
}

func TestKeywordPolicy(t *testing.T) {
	now := time.Now()
	build := func(cfg map[string]any) *escalation.Engine {
		eng, err := escalation.New([]domain.PolicySpec{{Type: escalation.TypeKeyword, Reason: "kw", Enabled: true, Config: cfg}}, escalation.Deps{})
		require.NoError(t, err)
		return eng
	}
	conv := userConv(now)

	insensitive := build(map[string]any{"keywords": []any{"Human"}})
	assert.True(t, insensitive.Evaluate(context.Background(), snapshot(conv, "I want to talk to a HUMAN", now)).ShouldEscalate)
	assert.True(t, insensitive.Evaluate(context.Background(), snapshot(conv, "humanity", now)).ShouldEscalate)

	sensitive := build(map[string]any{"keywords": []any{"Human"}, "case_sensitive": true})
	assert.False(t, sensitive.Evaluate(context.Background(), snapshot(conv, "a human", now)).ShouldEscalate)

	whole := build(map[string]any{"keywords": "human", "match_whole_word": "true"})
	assert.False(t, whole.Evaluate(context.Background(), snapshot(conv, "humanity", now)).ShouldEscalate)
	assert.True(t, whole.Evaluate(context.Background(), snapshot(conv, "a human, please", now)).ShouldEscalate)
}

func TestTimeoutPolicy(t *testing.T) {
	now := time.Now()
	eng, err := escalation.New([]domain.PolicySpec{{
		Type: escalation.TypeTimeout, Reason: "slow", Enabled: true,
		Config: map[string]any{"max_duration_seconds": "600", "max_attempts": 3},
	}}, escalation.Deps{})
	require.NoError(t, err)

	fresh := userConv(now)
	assert.False(t, eng.Evaluate(context.Background(), snapshot(fresh, "x", now)).ShouldEscalate)

	stale := userConv(now.Add(-11 * time.Minute))
	assert.True(t, eng.Evaluate(context.Background(), snapshot(stale, "x", now)).ShouldEscalate)

	retries := userConv(now)
	for i := 0; i < 3; i++ {
		retries.Attempt("email", now)
	}
	assert.True(t, eng.Evaluate(context.Background(), snapshot(retries, "x", now)).ShouldEscalate)

	retries.Commit("email", "a@b.co", 1, now)
	assert.False(t, eng.Evaluate(context.Background(), snapshot(retries, "x", now)).ShouldEscalate, "validated fields do not count")
}

func TestSentimentPolicy(t *testing.T) {
	now := time.Now()
	scorer := &stubScorer{score: -0.9}
	eng, err := escalation.New([]domain.PolicySpec{{
		Type: escalation.TypeSentiment, Reason: "upset", Enabled: true,
		Config: map[string]any{"threshold": -0.5, "window": 2},
	}}, escalation.Deps{Sentiment: scorer})
	require.NoError(t, err)

	short := userConv(now, "this is bad")
	assert.False(t, eng.Evaluate(context.Background(), snapshot(short, "this is bad", now)).ShouldEscalate)
	assert.Zero(t, scorer.calls, "insufficient history must not call the scorer")

	long := userConv(now, "this is bad", "really bad")
	assert.True(t, eng.Evaluate(context.Background(), snapshot(long, "really bad", now)).ShouldEscalate)

	scorer.err = errors.New("model down")
	assert.False(t, eng.Evaluate(context.Background(), snapshot(long, "really bad", now)).ShouldEscalate)
}

func TestIntentPolicy(t *testing.T) {
	now := time.Now()
	classifier := &stubClassifier{labels: []string{"Complaint"}}
	eng, err := escalation.New([]domain.PolicySpec{{
		Type: escalation.TypeLLMIntent, Reason: "intent", Enabled: true,
	}}, escalation.Deps{Intents: classifier})
	require.NoError(t, err)

	conv := userConv(now, "your service is awful")
	assert.True(t, eng.Evaluate(context.Background(), snapshot(conv, "your service is awful", now)).ShouldEscalate)
	assert.Equal(t, ports.TaskEscalation, classifier.last.Task)
	assert.Equal(t, escalation.DefaultIntents, classifier.last.Candidates)
	assert.Equal(t, 0.8, classifier.last.MinConfidence)

	classifier.labels = []string{"greeting"}
	assert.False(t, eng.Evaluate(context.Background(), snapshot(conv, "hi", now)).ShouldEscalate)

	classifier.err = errors.New("timeout")
	classifier.labels = []string{"complaint"}
	assert.False(t, eng.Evaluate(context.Background(), snapshot(conv, "x", now)).ShouldEscalate)
}

func TestCompletionPolicy(t *testing.T) {
	now := time.Now()
	eng, err := escalation.New([]domain.PolicySpec{{Type: escalation.TypeCompletion, Reason: "handoff", Enabled: true}}, escalation.Deps{})
	require.NoError(t, err)

	conv := userConv(now)
	conv.Attempt("name", now)
	conv.Commit("name", "Ada", 1, now)
	assert.False(t, eng.Evaluate(context.Background(), snapshot(conv, "x", now)).ShouldEscalate)

	conv.Attempt("email", now)
	conv.Commit("email", "ada@example.com", 1, now)
	assert.True(t, eng.Evaluate(context.Background(), snapshot(conv, "x", now)).ShouldEscalate, "optional fields never gate completion")

	off, err := escalation.New([]domain.PolicySpec{{
		Type: escalation.TypeCompletion, Reason: "handoff", Enabled: true,
		Config: map[string]any{"escalate_when_complete": false},
	}}, escalation.Deps{})
	require.NoError(t, err)
	assert.False(t, off.Evaluate(context.Background(), snapshot(conv, "x", now)).ShouldEscalate)

	subset, err := escalation.New([]domain.PolicySpec{{
		Type: escalation.TypeCompletion, Reason: "handoff", Enabled: true,
		Config: map[string]any{"required_fields": []any{"name"}},
	}}, escalation.Deps{})
	require.NoError(t, err)
	partial := userConv(now)
	partial.Attempt("name", now)
	partial.Commit("name", "Ada", 1, now)
	assert.True(t, subset.Evaluate(context.Background(), snapshot(partial, "x", now)).ShouldEscalate)
}

func TestRegister_CustomPolicy(t *testing.T) {
	escalation.Register("always", 5, func(map[string]any, escalation.Deps) (escalation.Policy, error) {
		return policyFunc(func(context.Context, escalation.Snapshot) (bool, error) { return true, nil }), nil
	})
	assert.True(t, escalation.Known("always"))
	assert.Equal(t, "always", escalation.Types()[0])

	eng, err := escalation.New([]domain.PolicySpec{
		{Type: escalation.TypeKeyword, Reason: "kw", Enabled: true, Config: map[string]any{"keywords": []any{"x"}}},
		{Type: "always", Reason: "always", Enabled: true},
	}, escalation.Deps{})
	require.NoError(t, err)
	res := eng.Evaluate(context.Background(), snapshot(userConv(time.Now()), "x", time.Now()))
	assert.Equal(t, "policy_1_always", res.PolicyID)
}

type policyFunc func(context.Context, escalation.Snapshot) (bool, error)

func (f policyFunc) Evaluate(ctx context.Context, s escalation.Snapshot) (bool, error) {
	return f(ctx, s)
}
