package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/intake/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one structured record per event.
// Node visits are logged at debug level, everything else at info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnConversationOpen: func(ctx context.Context, e *domain.ConversationEvent) {
			logger.InfoContext(ctx, "conversation_open", "session_id", e.SessionID, "config", e.ConfigName)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "turn_failed", "session_id", e.SessionID, "path", e.Path, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "turn_complete",
				"session_id", e.SessionID,
				"kind", e.Kind,
				"status", e.Status,
				"duration", e.Duration,
			)
		},
		OnEscalation: func(ctx context.Context, e *domain.EscalationEvent) {
			logger.InfoContext(ctx, "escalation",
				"session_id", e.SessionID,
				"policy_id", e.PolicyID,
				"policy_type", e.PolicyType,
				"reason", e.Reason,
			)
		},
		OnValidation: func(ctx context.Context, e *domain.ValidationEvent) {
			logger.DebugContext(ctx, "validation", "session_id", e.SessionID, "field", e.Field, "valid", e.Valid)
		},
		OnCollaboratorCall: func(ctx context.Context, e *domain.CollaboratorEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "collaborator_failed", "session_id", e.SessionID, "operation", e.Operation, "err", e.Err)
			}
		},
	}
}
