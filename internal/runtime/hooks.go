package runtime

import (
	"context"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

func base(t domain.EventType, sessionID string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: sessionID}
}

func (e *Engine) emitNodeEnter(ctx context.Context, sessionID string, node NodeID) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: base(domain.EventNodeEnter, sessionID),
		NodeID:    string(node),
	})
}

func (e *Engine) emitTurnComplete(ctx context.Context, t *turn, start time.Time, err error) {
	if e.hooks.OnTurnComplete == nil {
		return
	}
	path := make([]string, len(t.path))
	for i, n := range t.path {
		path[i] = string(n)
	}
	e.hooks.OnTurnComplete(ctx, &domain.TurnEvent{
		EventBase: base(domain.EventTurnComplete, t.conv.SessionID),
		Path:      path,
		Kind:      string(t.reply.Kind),
		Status:    t.conv.Status,
		Duration:  time.Since(start),
		Err:       err,
	})
}

func (e *Engine) emitEscalation(ctx context.Context, t *turn, reason string) {
	if e.hooks.OnEscalation == nil {
		return
	}
	e.hooks.OnEscalation(ctx, &domain.EscalationEvent{
		EventBase:  base(domain.EventEscalation, t.conv.SessionID),
		PolicyID:   t.verdict.PolicyID,
		PolicyType: t.verdict.PolicyType,
		Reason:     reason,
	})
}

func (e *Engine) emitValidation(ctx context.Context, t *turn, f domain.FieldDefinition, valid bool) {
	if e.hooks.OnValidation == nil {
		return
	}
	e.hooks.OnValidation(ctx, &domain.ValidationEvent{
		EventBase: base(domain.EventValidation, t.conv.SessionID),
		Field:     f.Name,
		FieldType: f.Type,
		Valid:     valid,
	})
}

func (e *Engine) emitCollaboratorCall(ctx context.Context, sessionID, op string, d time.Duration, err error) {
	if e.hooks.OnCollaboratorCall == nil {
		return
	}
	e.hooks.OnCollaboratorCall(ctx, &domain.CollaboratorEvent{
		EventBase: base(domain.EventCollaboratorCall, sessionID),
		Operation: op,
		Duration:  d,
		Err:       err,
	})
}
