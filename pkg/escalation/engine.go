package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Snapshot is the read-only input of a policy evaluation.
type Snapshot struct {
	Conversation *domain.Conversation
	Fields       []domain.FieldDefinition
	// Message is the latest user message.
	Message string
	Now     time.Time
}

// Policy is one escalation predicate.
// An error means the policy could not decide; the engine treats it as "do not escalate".
type Policy interface {
	Evaluate(ctx context.Context, snap Snapshot) (bool, error)
}

// Rule is an enabled policy together with its configured identity.
type Rule struct {
	ID     string
	Type   string
	Reason string
	Policy Policy
}

// Result is the verdict of an evaluation.
type Result struct {
	ShouldEscalate bool   `json:"should_escalate"`
	Reason         string `json:"reason,omitempty"`
	PolicyID       string `json:"policy_id,omitempty"`
	PolicyType     string `json:"policy_type,omitempty"`
}

// Deps are the collaborators policies may depend on.
type Deps struct {
	Sentiment ports.SentimentScorer
	Intents   ports.IntentClassifier
}

// Engine evaluates the enabled policies in fixed order.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger used for policy failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// PolicyID builds the identifier of the policy at position index of the configured list.
func PolicyID(index int, policyType string) string {
	return fmt.Sprintf("policy_%d_%s", index, policyType)
}

// New builds an Engine from the configured policy list.
func New(specs []domain.PolicySpec, deps Deps, opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	type ordered struct {
		rule     Rule
		priority int
		index    int
	}
	var enabled []ordered
	var errs []error

	for i, spec := range specs {
		if !spec.Enabled {
			continue
		}
		entry, ok := lookup(spec.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("policy %d: unknown policy type %q", i, spec.Type))
			continue
		}
		policy, err := entry.factory(spec.Config, deps)
		if err != nil {
			errs = append(errs, fmt.Errorf("policy %d (%s): %w", i, spec.Type, err))
			continue
		}
		enabled = append(enabled, ordered{
			rule: Rule{
				ID:     PolicyID(i, spec.Type),
				Type:   spec.Type,
				Reason: spec.Reason,
				Policy: policy,
			},
			priority: entry.priority,
			index:    i,
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(enabled, func(a, b int) bool {
		if enabled[a].priority != enabled[b].priority {
			return enabled[a].priority < enabled[b].priority
		}
		return enabled[a].index < enabled[b].index
	})

	e.rules = make([]Rule, len(enabled))
	for i, o := range enabled {
		e.rules[i] = o.rule
	}
	return e, nil
}

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the verdict of the first policy that fires.
func (e *Engine) Evaluate(ctx context.Context, snap Snapshot) Result {
	for _, r := range e.rules {
		if e.fires(ctx, r, snap) {
			return r.result()
		}
	}
	return Result{}
}

// EvaluateAll returns the verdicts of every policy that fires, in evaluation order.
func (e *Engine) EvaluateAll(ctx context.Context, snap Snapshot) []Result {
	var out []Result
	for _, r := range e.rules {
		if e.fires(ctx, r, snap) {
			out = append(out, r.result())
		}
	}
	return out
}

func (e *Engine) fires(ctx context.Context, r Rule, snap Snapshot) bool {
	ok, err := r.Policy.Evaluate(ctx, snap)
	if err != nil {
		e.logger.Warn("Escalation policy inconclusive",
			"policy_id", r.ID,
			"policy_type", r.Type,
			"err", err,
		)
		return false
	}
	return ok
}

func (r Rule) result() Result {
	return Result{
		ShouldEscalate: true,
		Reason:         r.Reason,
		PolicyID:       r.ID,
		PolicyType:     r.Type,
	}
}

// Describe renders the rule list for diagnostics.
func (e *Engine) Describe() string {
	parts := make([]string, len(e.rules))
	for i, r := range e.rules {
		parts[i] = r.ID
	}
	return strings.Join(parts, " -> ")
}
