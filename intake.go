package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/internal/runtime"
	"github.com/aretw0/intake/pkg/adapters/heuristic"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/session"
	"github.com/google/uuid"
)

// Response is what a caller gets back from starting a conversation or sending a message.
type Response struct {
	SessionID     string            `json:"session_id"`
	Text          string            `json:"response"`
	Kind          string            `json:"kind"`
	Field         string            `json:"field,omitempty"`
	Status        domain.Status     `json:"status"`
	Escalated     bool              `json:"escalated"`
	CollectedData map[string]string `json:"collected_data"`
	Path          []string          `json:"path,omitempty"`
}

// binding is one configuration with the engines built from it.
type binding struct {
	cfg        *config.AgentConfig
	version    string
	engine     *runtime.Engine
	escalation *escalation.Engine
}

// serves reports whether every field recorded in conv is known to the binding.
func (b *binding) serves(conv *domain.Conversation) bool {
	for name := range conv.Fields {
		if _, ok := b.cfg.Field(name); !ok {
			return false
		}
	}
	return true
}

// Agent is the high-level entry point: it owns the active configuration, the state
// machine built from it and the session manager that persists conversations.
type Agent struct {
	mu       sync.RWMutex
	active   *binding
	// versions holds every configuration loaded by this process, by digest.
	versions map[string]*binding
	// latest holds the last loaded configuration of each name.
	latest   map[string]*binding

	sessions *session.Manager

	store     ports.ConversationStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	extractor ports.Extractor
	sentiment ports.SentimentScorer
	intents   ports.IntentClassifier
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	clock     func() time.Time
	maxSteps  int
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithStore sets where conversations are persisted (default: in memory).
func WithStore(store ports.ConversationStore) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithLocker serializes turns of one session across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *Agent) {
		a.locker = locker
	}
}

// WithLockTTL bounds how long a distributed turn lock may be held.
func WithLockTTL(ttl time.Duration) Option {
	return func(a *Agent) {
		a.lockTTL = ttl
	}
}

// WithExtractor sets the field extraction collaborator (default: heuristic).
func WithExtractor(x ports.Extractor) Option {
	return func(a *Agent) {
		a.extractor = x
	}
}

// WithSentimentScorer sets the collaborator behind the sentiment policy (default: heuristic).
func WithSentimentScorer(s ports.SentimentScorer) Option {
	return func(a *Agent) {
		a.sentiment = s
	}
}

// WithIntentClassifier sets the collaborator used for intents, corrections and
// relevance (default: heuristic).
func WithIntentClassifier(c ports.IntentClassifier) Option {
	return func(a *Agent) {
		a.intents = c
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Agent) {
		a.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Agent) {
		a.clock = clock
	}
}

// WithMaxSteps bounds the nodes one turn may visit.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		a.maxSteps = n
	}
}

// New creates an Agent for cfg. The configuration is validated first; every problem
// is reported at once in a *config.Error.
func New(cfg *config.AgentConfig, opts ...Option) (*Agent, error) {
	a := &Agent{
		versions:  make(map[string]*binding),
		latest:    make(map[string]*binding),
		extractor: heuristic.Extractor{},
		sentiment: heuristic.Sentiment{},
		intents:   heuristic.Classifier{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	if a.store == nil {
		a.store = memory.NewStore()
	}

	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(a.locker))
	}
	if a.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(a.lockTTL))
	}
	a.sessions = session.NewManager(a.store, sessionOpts...)

	if err := a.Switch(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) bind(cfg *config.AgentConfig) (*binding, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version, err := config.Digest(cfg)
	if err != nil {
		return nil, err
	}
	logger := a.logger
	if cfg.Name != "" {
		logger = logger.With("config", cfg.Name)
	}

	esc, err := escalation.New(cfg.Policies, escalation.Deps{
		Sentiment: a.sentiment,
		Intents:   a.intents,
	}, escalation.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build escalation policies: %w", err)
	}

	engine, err := runtime.NewEngine(cfg.Fields,
		runtime.WithEscalation(esc),
		runtime.WithExtractor(a.extractor),
		runtime.WithIntentClassifier(a.intents),
		runtime.WithPersonality(cfg.Personality),
		runtime.WithGreeting(cfg.Greeting),
		runtime.WithLifecycleHooks(a.hooks),
		runtime.WithLogger(logger),
		runtime.WithClock(a.clock),
		runtime.WithMaxSteps(a.maxSteps),
	)
	if err != nil {
		return nil, err
	}
	return &binding{cfg: cfg, version: version, engine: engine, escalation: esc}, nil
}

// Switch makes cfg the configuration of conversations started from now on.
// Conversations already running keep the configuration they started with.
func (a *Agent) Switch(cfg *config.AgentConfig) error {
	b, err := a.bind(cfg)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = b
	a.versions[b.version] = b
	a.latest[cfg.Name] = b
	a.logger.Info("Configuration active", "config", cfg.Name, "version", b.version, "fields", len(cfg.Fields), "policies", len(b.escalation.Rules()))
	return nil
}

// Config returns the active configuration.
func (a *Agent) Config() *config.AgentConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active.cfg
}

// Policies describes the enabled escalation rules of the active configuration in evaluation order.
func (a *Agent) Policies() []escalation.Rule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active.escalation.Rules()
}

func (a *Agent) current() *binding {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// bindingFor returns the configuration a conversation was started with. Reloading a
// configuration under the same name does not affect running conversations. For a
// version this process never loaded, the latest configuration of the same name or
// the active one is used if it knows every field already recorded.
func (a *Agent) bindingFor(conv *domain.Conversation) *binding {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if b, ok := a.versions[conv.ConfigVersion]; ok {
		return b
	}
	if b, ok := a.latest[conv.ConfigName]; ok && b.serves(conv) {
		return b
	}
	return a.active
}

// Start opens a conversation under a fresh session id.
func (a *Agent) Start(ctx context.Context) (Response, error) {
	return a.StartWithID(ctx, uuid.NewString())
}

// StartWithID opens a conversation under sessionID. It fails with
// domain.ErrSessionExists rather than overwrite an existing session.
func (a *Agent) StartWithID(ctx context.Context, sessionID string) (Response, error) {
	if sessionID == "" {
		return Response{}, errors.New("session id is required")
	}
	b := a.current()
	conv := domain.NewConversation(sessionID, a.clock())
	conv.ConfigName = b.cfg.Name
	conv.ConfigVersion = b.version

	reply, err := b.engine.Open(ctx, conv)
	if err != nil {
		return Response{}, err
	}
	if err := a.sessions.Create(ctx, conv); err != nil {
		return Response{}, err
	}

	a.logger.Debug("Conversation started", "session_id", sessionID, "config", b.cfg.Name)
	if a.hooks.OnConversationOpen != nil {
		a.hooks.OnConversationOpen(ctx, &domain.ConversationEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventConversationOpen, SessionID: sessionID},
			ConfigName: b.cfg.Name,
		})
	}
	return respond(conv, reply), nil
}

// Send processes one user message as a turn of the session.
// Unknown sessions yield domain.ErrSessionNotFound, finished ones domain.ErrConversationClosed.
func (a *Agent) Send(ctx context.Context, sessionID, message string) (Response, error) {
	var reply runtime.Reply
	conv, err := a.sessions.Update(ctx, sessionID, func(ctx context.Context, conv *domain.Conversation) error {
		var err error
		reply, err = a.bindingFor(conv).engine.Turn(ctx, conv, message)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return respond(conv, reply), nil
}

func respond(conv *domain.Conversation, reply runtime.Reply) Response {
	path := make([]string, len(reply.Path))
	for i, n := range reply.Path {
		path[i] = string(n)
	}
	return Response{
		SessionID:     conv.SessionID,
		Text:          reply.Text,
		Kind:          string(reply.Kind),
		Field:         reply.Field,
		Status:        conv.Status,
		Escalated:     conv.Escalation.Escalated,
		CollectedData: conv.CollectedData(),
		Path:          path,
	}
}

// Get returns a copy of the stored conversation.
func (a *Agent) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return a.sessions.Get(ctx, sessionID)
}

// Delete removes a conversation.
func (a *Agent) Delete(ctx context.Context, sessionID string) error {
	return a.sessions.Delete(ctx, sessionID)
}

// List returns stored conversations, most recently updated first.
func (a *Agent) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	return a.sessions.List(ctx, opts)
}

// Count returns the number of conversations with the given status ("" for all).
func (a *Agent) Count(ctx context.Context, status domain.Status) (int, error) {
	return a.sessions.Count(ctx, status)
}

// Prune deletes conversations idle for longer than maxAge.
func (a *Agent) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	return a.sessions.Prune(ctx, a.clock().Add(-maxAge))
}

// Explain evaluates every escalation policy of the session's configuration against
// message without running a turn, and returns the ones that would fire in evaluation order.
func (a *Agent) Explain(ctx context.Context, sessionID, message string) ([]escalation.Result, error) {
	conv, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b := a.bindingFor(conv)
	return b.escalation.EvaluateAll(ctx, escalation.Snapshot{
		Conversation: conv,
		Fields:       b.cfg.Fields,
		Message:      message,
		Now:          a.clock(),
	}), nil
}

// Fields returns the field definitions a conversation collects.
func (a *Agent) Fields(conv *domain.Conversation) []domain.FieldDefinition {
	return a.bindingFor(conv).cfg.Fields
}
