package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Hooks(t *testing.T) {
	ctx := context.Background()
	c := observability.NewCollector(nil)
	hooks := c.Hooks()

	hooks.OnConversationOpen(ctx, &domain.ConversationEvent{})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "validate"})
	hooks.OnValidation(ctx, &domain.ValidationEvent{FieldType: domain.FieldEmail, Valid: false})
	hooks.OnValidation(ctx, &domain.ValidationEvent{FieldType: domain.FieldEmail, Valid: true})
	hooks.OnCollaboratorCall(ctx, &domain.CollaboratorEvent{Operation: "extract"})
	hooks.OnCollaboratorCall(ctx, &domain.CollaboratorEvent{Operation: "extract", Err: errors.New("timeout")})
	hooks.OnEscalation(ctx, &domain.EscalationEvent{PolicyType: "keyword"})
	hooks.OnTurnComplete(ctx, &domain.TurnEvent{Status: domain.StatusActive})
	hooks.OnTurnComplete(ctx, &domain.TurnEvent{Status: domain.StatusEscalated})
	hooks.OnTurnComplete(ctx, &domain.TurnEvent{Err: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Started))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NodeVisits.WithLabelValues("validate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Validations.WithLabelValues("email", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Validations.WithLabelValues("email", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Collaborators.WithLabelValues("extract", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Escalations.WithLabelValues("keyword")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Messages.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Messages.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Finished.WithLabelValues("escalated")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Finished), "active turns do not finish a conversation")
}

func TestCollector_Handler(t *testing.T) {
	c := observability.NewCollector(nil)
	c.Started.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "intake_conversations_started_total 1")
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)

	hooks.OnEscalation(context.Background(), &domain.EscalationEvent{
		EventBase:  domain.EventBase{SessionID: "s1"},
		PolicyID:   "policy_0_keyword",
		PolicyType: "keyword",
		Reason:     "User asked for a human",
	})
	out := buf.String()
	assert.Contains(t, out, `"msg":"escalation"`)
	assert.Contains(t, out, `"policy_id":"policy_0_keyword"`)
	assert.Contains(t, out, `"session_id":"s1"`)
}
