package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/ports"
)

const (
	defaultMaxSteps      = 16
	defaultHistoryWindow = 10

	// correctionPenalty scales the confidence of values accepted through a correction.
	correctionPenalty = 0.9
	// fallbackConfidence is used when the extractor is missing or failed.
	fallbackConfidence = 0.5
)

// ReplyKind classifies the outbound message of a turn.
type ReplyKind string

const (
	KindGreeting ReplyKind = "greeting"
	KindAsk      ReplyKind = "ask"
	KindRetry    ReplyKind = "retry"
	KindRedirect ReplyKind = "redirect"
	KindUpdated  ReplyKind = "updated"
	KindComplete ReplyKind = "complete"
	KindEscalate ReplyKind = "escalate"
)

// Reply is the result of one turn.
type Reply struct {
	Text string
	Kind ReplyKind
	// Field is the field the reply asks for, empty when the conversation ended.
	Field string
	// Path lists the nodes visited during the turn, in order.
	Path []NodeID
}

// Engine runs turns of the conversation state machine.
// It holds no per-session state and is safe for concurrent use; callers serialize
// turns of the same session.
type Engine struct {
	fields        []domain.FieldDefinition
	escalation    *escalation.Engine
	extractor     ports.Extractor
	intents       ports.IntentClassifier
	composer      *Composer
	greeting      string
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	clock         func() time.Time
	maxSteps      int
	historyWindow int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEscalation sets the escalation policy engine. Without one nothing escalates.
func WithEscalation(esc *escalation.Engine) EngineOption {
	return func(e *Engine) {
		e.escalation = esc
	}
}

// WithExtractor sets the collaborator that pulls field values out of messages.
// Without one the message itself, minus conversational lead-ins, is the value.
func WithExtractor(x ports.Extractor) EngineOption {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithIntentClassifier sets the collaborator used for ambiguous corrections and relevance.
func WithIntentClassifier(c ports.IntentClassifier) EngineOption {
	return func(e *Engine) {
		e.intents = c
	}
}

// WithPersonality sets the personality used to phrase replies.
func WithPersonality(p domain.Personality) EngineOption {
	return func(e *Engine) {
		e.composer = NewComposer(p)
	}
}

// WithGreeting sets the text that opens a conversation.
func WithGreeting(greeting string) EngineOption {
	return func(e *Engine) {
		e.greeting = greeting
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithMaxSteps bounds the number of nodes a turn may visit.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine creates an engine over an ordered, already validated field list.
func NewEngine(fields []domain.FieldDefinition, opts ...EngineOption) (*Engine, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}
	e := &Engine{
		fields:        fields,
		composer:      NewComposer(domain.Personality{}),
		logger:        logging.NewNop(),
		clock:         time.Now,
		maxSteps:      defaultMaxSteps,
		historyWindow: defaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Fields returns the ordered field list.
func (e *Engine) Fields() []domain.FieldDefinition {
	return e.fields
}

// Open greets a new conversation and asks for the first field.
func (e *Engine) Open(ctx context.Context, conv *domain.Conversation) (Reply, error) {
	if err := e.checkInvariants("open", conv); err != nil {
		return Reply{}, err
	}
	first := e.pending(conv)
	reply := Reply{Text: e.composer.Greeting(e.greeting, first), Kind: KindGreeting}
	if first != nil {
		reply.Field = first.Name
	}
	conv.AddMessage(domain.RoleAgent, reply.Text, e.clock())
	return reply, nil
}

// Turn processes one user message. It mutates conv in place; on error conv must be discarded.
// Collaborator failures never fail a turn, only closed conversations and
// invariant violations do.
func (e *Engine) Turn(ctx context.Context, conv *domain.Conversation, message string) (Reply, error) {
	start := time.Now()
	if err := e.checkInvariants("turn", conv); err != nil {
		e.logger.Error("Refusing turn", "err", err)
		return Reply{}, err
	}
	if conv.Closed() {
		return Reply{}, fmt.Errorf("%w: %s", domain.ErrConversationClosed, conv.Status)
	}

	t := &turn{
		conv:    conv,
		message: message,
		now:     e.clock(),
		logger:  e.logger.With("session_id", conv.SessionID),
	}
	conv.AddMessage(domain.RoleUser, message, t.now)

	node := EntryNode
	for steps := 0; node != NodeEnd; steps++ {
		if steps >= e.maxSteps {
			err := &domain.InvariantError{Op: "turn", Detail: fmt.Sprintf("exceeded %d steps at %s", e.maxSteps, node)}
			e.emitTurnComplete(ctx, t, start, err)
			return Reply{}, err
		}
		t.path = append(t.path, node)
		e.emitNodeEnter(ctx, conv.SessionID, node)
		t.logger.Debug("Entering node", "node", node)

		out, err := e.step(ctx, node, t)
		if err != nil {
			t.logger.Error("Turn aborted", "node", node, "err", err)
			e.emitTurnComplete(ctx, t, start, err)
			return Reply{}, err
		}
		node = route(node, out)
	}

	conv.AddMessage(domain.RoleAgent, t.reply.Text, t.now)
	conv.Metadata[domain.KeyLastNode] = string(t.path[len(t.path)-1])
	if err := e.checkInvariants("turn", conv); err != nil {
		t.logger.Error("Turn produced inconsistent state", "err", err)
		e.emitTurnComplete(ctx, t, start, err)
		return Reply{}, err
	}

	t.reply.Path = t.path
	e.emitTurnComplete(ctx, t, start, nil)
	return t.reply, nil
}

// step executes one node.
func (e *Engine) step(ctx context.Context, node NodeID, t *turn) (Outcome, error) {
	switch node {
	case NodeCheckEscalation:
		return e.checkEscalation(ctx, t), nil
	case NodeCheckCorrection:
		return e.checkCorrection(ctx, t), nil
	case NodeCheckOffTopic:
		return e.checkOffTopic(ctx, t)
	case NodeExtractField:
		return e.extractField(ctx, t)
	case NodeValidate:
		return e.validate(ctx, t)
	case NodePromptNext:
		return e.promptNext(t)
	case NodeEscalate:
		return e.escalate(ctx, t), nil
	case NodeComplete:
		return e.complete(t), nil
	}
	return Outcome{}, &domain.InvariantError{Op: "step", Detail: fmt.Sprintf("unknown node %q", node)}
}

// AllRequiredValidated reports whether every required field holds a validated value.
func (e *Engine) AllRequiredValidated(conv *domain.Conversation) bool {
	for _, f := range e.fields {
		if f.Required && !conv.Validated(f.Name) {
			return false
		}
	}
	return true
}

// pending returns the field under the pointer, or nil when the pointer is past the end.
func (e *Engine) pending(conv *domain.Conversation) *domain.FieldDefinition {
	if conv.Pointer < 0 || conv.Pointer >= len(e.fields) {
		return nil
	}
	return &e.fields[conv.Pointer]
}

// advance moves the pointer past fields that are validated or skipped.
func (e *Engine) advance(conv *domain.Conversation) {
	for conv.Pointer < len(e.fields) {
		fv, ok := conv.Fields[e.fields[conv.Pointer].Name]
		if !ok || (!fv.Validated && !fv.Skipped) {
			return
		}
		conv.Pointer++
	}
}

func (e *Engine) field(name string) (domain.FieldDefinition, bool) {
	for _, f := range e.fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldDefinition{}, false
}

func (e *Engine) history(conv *domain.Conversation) []domain.Message {
	msgs := conv.Messages
	if len(msgs) > e.historyWindow {
		msgs = msgs[len(msgs)-e.historyWindow:]
	}
	return msgs
}

// checkInvariants rejects state no valid sequence of turns can produce.
func (e *Engine) checkInvariants(op string, conv *domain.Conversation) error {
	if conv == nil {
		return &domain.InvariantError{Op: op, Detail: "nil conversation"}
	}
	if conv.Pointer < 0 || conv.Pointer > len(e.fields) {
		return &domain.InvariantError{Op: op, Detail: fmt.Sprintf("field pointer %d outside [0, %d]", conv.Pointer, len(e.fields))}
	}
	for name, fv := range conv.Fields {
		if fv == nil {
			return &domain.InvariantError{Op: op, Detail: fmt.Sprintf("nil record for field %q", name)}
		}
		if _, ok := e.field(name); !ok {
			return &domain.InvariantError{Op: op, Detail: fmt.Sprintf("record for unknown field %q", name)}
		}
		if fv.Attempts < 1 {
			return &domain.InvariantError{Op: op, Detail: fmt.Sprintf("field %q has a record but no attempts", name)}
		}
	}
	if p := e.pending(conv); p != nil && conv.Validated(p.Name) {
		return &domain.InvariantError{Op: op, Detail: fmt.Sprintf("pointer rests on validated field %q", p.Name)}
	}
	if conv.Metadata == nil {
		conv.Metadata = make(map[string]any)
	}
	return nil
}
