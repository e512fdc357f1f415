package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/phrases"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/validation"
)

// Extractor answers that mean "nothing usable was found".
var absentValues = []string{"NOT_PROVIDED", "INVALID", "NONE", "NULL"}

// turn is the scratch state of one processed message.
type turn struct {
	conv    *domain.Conversation
	message string
	now     time.Time
	logger  *slog.Logger
	path    []NodeID

	verdict escalation.Result

	// target is the field the message is being applied to.
	target     *domain.FieldDefinition
	correction bool
	offTopic   bool
	skip       bool

	extracted  string
	found      bool
	confidence float64

	attempted bool
	accepted  bool

	reply Reply
}

func (e *Engine) checkEscalation(ctx context.Context, t *turn) Outcome {
	if e.escalation == nil {
		return Outcome{}
	}
	t.verdict = e.escalation.Evaluate(ctx, escalation.Snapshot{
		Conversation: t.conv,
		Fields:       e.fields,
		Message:      t.message,
		Now:          t.now,
	})
	return Outcome{Escalate: t.verdict.ShouldEscalate}
}

// checkCorrection detects a revision of an already collected field.
// The fixed phrasings are tried first; the intent classifier only sees messages
// that carry a correction marker but could not be resolved to a field.
func (e *Engine) checkCorrection(ctx context.Context, t *turn) Outcome {
	if len(t.conv.Fields) == 0 {
		return Outcome{}
	}

	c := phrases.DetectCorrection(t.message)
	if c.Matched && c.Hint != "" {
		if f, ok := e.resolveHint(t.conv, c.Hint); ok {
			t.logger.Debug("Correction detected", "field", f.Name, "tier", "pattern")
			return e.markCorrection(t, f)
		}
	}
	if !c.Matched && !phrases.HasSoftCorrectionMarker(t.message) {
		return Outcome{}
	}
	if e.intents == nil {
		return Outcome{}
	}

	var labels []string
	err := e.call(ctx, t, "classify_correction", func(ctx context.Context) error {
		var err error
		labels, err = e.intents.Classify(ctx, ports.IntentRequest{
			Task:         ports.TaskCorrection,
			Message:      t.message,
			CurrentField: e.pending(t.conv),
			Collected:    e.recorded(t.conv),
			History:      e.history(t.conv),
		})
		return err
	})
	if err != nil {
		return Outcome{}
	}
	for _, l := range labels {
		name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(l)), ports.LabelCorrectionPrefix)
		if !ok {
			continue
		}
		if f, ok := e.recordedField(t.conv, strings.TrimSpace(name)); ok {
			t.logger.Debug("Correction detected", "field", f.Name, "tier", "classifier")
			return e.markCorrection(t, f)
		}
	}
	return Outcome{}
}

func (e *Engine) markCorrection(t *turn, f domain.FieldDefinition) Outcome {
	t.target = &f
	t.correction = true
	return Outcome{Correction: true}
}

// resolveHint maps the word a user named to a field that already has a record.
// Exact names win over labels, labels over a single word of the name; ties go to
// configuration order.
func (e *Engine) resolveHint(conv *domain.Conversation, hint string) (domain.FieldDefinition, bool) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return domain.FieldDefinition{}, false
	}
	matchers := []func(domain.FieldDefinition) bool{
		func(f domain.FieldDefinition) bool { return strings.ToLower(f.Name) == hint },
		func(f domain.FieldDefinition) bool { return strings.ToLower(f.Label()) == hint },
		func(f domain.FieldDefinition) bool { return slices.Contains(strings.Split(strings.ToLower(f.Name), "_"), hint) },
	}
	for _, match := range matchers {
		for _, f := range e.fields {
			if _, ok := conv.Fields[f.Name]; ok && match(f) {
				return f, true
			}
		}
	}
	return domain.FieldDefinition{}, false
}

func (e *Engine) recordedField(conv *domain.Conversation, name string) (domain.FieldDefinition, bool) {
	for _, f := range e.fields {
		if _, ok := conv.Fields[f.Name]; ok && strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return domain.FieldDefinition{}, false
}

func (e *Engine) recorded(conv *domain.Conversation) []string {
	var names []string
	for _, f := range e.fields {
		if _, ok := conv.Fields[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

func (e *Engine) checkOffTopic(ctx context.Context, t *turn) (Outcome, error) {
	if e.AllRequiredValidated(t.conv) {
		return Outcome{AllRequired: true}, nil
	}
	current := e.pending(t.conv)
	if current == nil {
		return Outcome{}, &domain.InvariantError{Op: string(NodeCheckOffTopic), Detail: "no pending field while required fields are missing"}
	}

	if !current.Required && phrases.IsSkip(t.message) {
		t.skip = true
		return Outcome{}, nil
	}

	offTopic := phrases.IsOffTopic(t.message)
	if !offTopic && e.intents != nil {
		var labels []string
		err := e.call(ctx, t, "classify_relevance", func(ctx context.Context) error {
			var err error
			labels, err = e.intents.Classify(ctx, ports.IntentRequest{
				Task:         ports.TaskRelevance,
				Message:      t.message,
				CurrentField: current,
				Collected:    e.recorded(t.conv),
				History:      e.history(t.conv),
			})
			return err
		})
		if err == nil {
			for _, l := range labels {
				if strings.EqualFold(strings.TrimSpace(l), ports.LabelOffTopic) {
					offTopic = true
				}
			}
		}
	}

	if offTopic {
		t.offTopic = true
		n := t.conv.Incr(domain.KeyOffTopicCount, t.now)
		t.logger.Debug("Off-topic reply", "field", current.Name, "count", n)
	}
	return Outcome{OffTopic: offTopic}, nil
}

// extractField records the attempt and asks the extractor for a value.
func (e *Engine) extractField(ctx context.Context, t *turn) (Outcome, error) {
	if t.target == nil {
		t.target = e.pending(t.conv)
	}
	if t.target == nil {
		return Outcome{}, &domain.InvariantError{Op: string(NodeExtractField), Detail: "no field to extract"}
	}
	t.conv.Attempt(t.target.Name, t.now)
	t.attempted = true
	if t.skip {
		return Outcome{}, nil
	}

	if e.extractor == nil {
		t.extracted, t.found, t.confidence = e.fallbackExtraction(t.message)
		return Outcome{}, nil
	}

	var res ports.Extraction
	err := e.call(ctx, t, "extract", func(ctx context.Context) error {
		var err error
		res, err = e.extractor.Extract(ctx, ports.ExtractRequest{
			Message: t.message,
			Field:   *t.target,
			History: e.history(t.conv),
		})
		return err
	})
	if err != nil {
		t.extracted, t.found, t.confidence = e.fallbackExtraction(t.message)
		return Outcome{}, nil
	}

	value := strings.TrimSpace(res.Value)
	if !res.Found || isAbsent(value) {
		return Outcome{}, nil
	}
	t.extracted = value
	t.found = true
	t.confidence = clamp(res.Confidence)
	return Outcome{}, nil
}

func (e *Engine) fallbackExtraction(message string) (string, bool, float64) {
	value := phrases.StripLeadIn(message)
	if value == "" {
		return "", false, 0
	}
	return value, true, fallbackConfidence
}

// validate checks the extracted value and commits it. The pointer only moves
// when the field under it becomes validated or skipped.
func (e *Engine) validate(ctx context.Context, t *turn) (Outcome, error) {
	f := *t.target

	switch {
	case t.skip:
		t.conv.Skip(f.Name, t.now)
		t.accepted = true
	case !t.found:
		e.emitValidation(ctx, t, f, false)
	default:
		res := validation.Validate(t.extracted, f.Type, f.Pattern)
		if res.Warning != nil {
			t.logger.Warn("Validation degraded", "field", f.Name, "err", res.Warning)
		}
		e.emitValidation(ctx, t, f, res.Valid)
		if res.Valid {
			confidence := clamp(t.confidence * res.Confidence)
			if t.correction {
				confidence *= correctionPenalty
			}
			if !t.conv.Commit(f.Name, t.extracted, confidence, t.now) {
				return Outcome{}, &domain.InvariantError{Op: string(NodeValidate), Detail: fmt.Sprintf("no record for attempted field %q", f.Name)}
			}
			t.accepted = true
			if t.correction {
				t.conv.Incr(domain.KeyCorrectionCount, t.now)
			}
		}
	}

	e.advance(t.conv)
	return Outcome{AllRequired: e.AllRequiredValidated(t.conv)}, nil
}

func (e *Engine) promptNext(t *turn) (Outcome, error) {
	pending := e.pending(t.conv)
	if pending == nil {
		return Outcome{}, &domain.InvariantError{Op: string(NodePromptNext), Detail: "nothing left to ask"}
	}

	switch {
	case t.offTopic:
		t.reply = Reply{Text: e.composer.Redirect(*pending), Kind: KindRedirect}
	case t.attempted && !t.accepted:
		t.reply = Reply{Text: e.composer.Retry(*t.target, *pending), Kind: KindRetry}
	case t.correction && t.target.Name != pending.Name:
		t.reply = Reply{Text: e.composer.Updated(*t.target, *pending), Kind: KindUpdated}
	case t.accepted:
		t.reply = Reply{Text: e.composer.Next(*pending), Kind: KindAsk}
	default:
		t.reply = Reply{Text: e.composer.Ask(*pending), Kind: KindAsk}
	}
	t.reply.Field = pending.Name
	return Outcome{}, nil
}

func (e *Engine) escalate(ctx context.Context, t *turn) Outcome {
	reason := t.verdict.Reason
	if reason == "" {
		reason = "User requested human agent"
	}
	if t.conv.Escalate(reason, t.verdict.PolicyID, t.verdict.PolicyType, t.now) {
		t.logger.Info("Conversation escalated",
			"policy_id", t.verdict.PolicyID,
			"policy_type", t.verdict.PolicyType,
			"reason", reason,
		)
		e.emitEscalation(ctx, t, reason)
	}
	t.reply = Reply{Text: e.composer.Escalation(), Kind: KindEscalate}
	return Outcome{}
}

func (e *Engine) complete(t *turn) Outcome {
	t.conv.Complete(t.now)
	t.logger.Info("Conversation complete", "fields", len(t.conv.CollectedData()))
	t.reply = Reply{Text: e.composer.Completion(), Kind: KindComplete}
	return Outcome{}
}

// call runs a collaborator operation, reporting it to hooks and logging failures.
func (e *Engine) call(ctx context.Context, t *turn, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		t.logger.Warn("Collaborator call failed, continuing without it", "operation", op, "err", err)
	}
	e.emitCollaboratorCall(ctx, t.conv.SessionID, op, time.Since(start), err)
	return err
}

func isAbsent(value string) bool {
	if value == "" {
		return true
	}
	for _, a := range absentValues {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
