package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/adapters/file"
	"github.com/aretw0/intake/pkg/adapters/llm"
	"github.com/aretw0/intake/pkg/adapters/memory"
	redisadapter "github.com/aretw0/intake/pkg/adapters/redis"
	sqladapter "github.com/aretw0/intake/pkg/adapters/sql"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/persistence/middleware"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/redis/go-redis/v9"
)

// Store backends accepted by StoreSettings.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Backend is an opened conversation store and, for shared backends, its locker.
type Backend struct {
	Store  ports.ConversationStore
	Locker ports.DistributedLocker

	closers []io.Closer
}

// Close releases the connections held by the backend.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Inspection returns a read view of the store that masks personal data.
func (b *Backend) Inspection() ports.ConversationStore {
	return middleware.Chain(b.Store, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
}

// OpenBackend opens the configured store, wrapped with encryption at rest when a key is set.
func OpenBackend(s StoreSettings) (*Backend, error) {
	b := &Backend{}

	switch strings.ToLower(s.Backend) {
	case "", BackendMemory:
		b.Store = memory.NewStore()
	case BackendFile:
		b.Store = file.New(s.Path)
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		store := redisadapter.NewFromClient(client, redisadapter.WithTTL(s.TTL))
		b.Store = store
		b.Locker = redisadapter.NewLocker(client)
		b.closers = append(b.closers, store)
	case BackendSQL:
		store, err := sqladapter.Open(s.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sql store: %w", err)
		}
		b.Store = store
		b.closers = append(b.closers, store)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, file, redis or sql)", s.Backend)
	}

	if s.EncryptionKey != "" {
		active, err := middleware.ParseKey(s.EncryptionKey)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		cfg := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range s.FallbackKeys {
			fallback, err := middleware.ParseKey(k)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("fallback key: %w", err)
			}
			cfg.FallbackKeys = append(cfg.FallbackKeys, fallback)
		}
		b.Store = middleware.Chain(b.Store, middleware.NewEncryptionMiddleware(cfg))
	}
	return b, nil
}

// LoadAgentConfig resolves Settings.Config, either a file path or a name in ConfigDir,
// and returns it with a registry over the directory it came from.
func LoadAgentConfig(s Settings) (*config.AgentConfig, *config.Registry, error) {
	ref := s.Config
	if isPath(ref) {
		cfg, err := config.Load(ref)
		if err != nil {
			return nil, nil, err
		}
		registry := config.NewRegistry(filepath.Dir(ref))
		registry.Set(cfg)
		return cfg, registry, nil
	}

	registry := config.NewRegistry(s.ConfigDir)
	cfg, err := registry.Activate(ref)
	if err != nil {
		return nil, nil, err
	}
	return cfg, registry, nil
}

// ConfigPath returns the file backing the active configuration of registry, if any.
func ConfigPath(registry *config.Registry) (string, bool) {
	cfg := registry.Active()
	if cfg == nil {
		return "", false
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(registry.Dir(), cfg.Name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func isPath(ref string) bool {
	if strings.ContainsAny(ref, `/\`) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(ref))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	_, err := os.Stat(ref)
	return err == nil
}

// Collaborators returns the agent options selecting the LLM collaborators when an API
// key is configured. Otherwise the agent keeps its rule-based defaults.
func Collaborators(s LLMSettings) []intake.Option {
	if s.APIKey == "" {
		return nil
	}
	var opts []llm.ClientOption
	if s.Model != "" {
		opts = append(opts, llm.WithModel(s.Model))
	}
	if s.RatePerSecond > 0 {
		opts = append(opts, llm.WithRateLimit(s.RatePerSecond, 1))
	}
	client := llm.NewClient(s.BaseURL, s.APIKey, s.Timeout, opts...)
	return []intake.Option{
		intake.WithExtractor(llm.NewExtractor(client)),
		intake.WithSentimentScorer(llm.NewSentiment(client)),
		intake.WithIntentClassifier(llm.NewClassifier(client)),
	}
}

// NewAgent builds the agent for the settings over an opened backend.
func NewAgent(s Settings, b *Backend, logger *slog.Logger, hooks domain.LifecycleHooks) (*intake.Agent, *config.Registry, error) {
	cfg, registry, err := LoadAgentConfig(s)
	if err != nil {
		return nil, nil, err
	}

	opts := []intake.Option{
		intake.WithStore(b.Store),
		intake.WithLogger(logger),
		intake.WithLifecycleHooks(hooks),
	}
	if b.Locker != nil {
		opts = append(opts, intake.WithLocker(b.Locker))
		if s.Store.LockTTL > 0 {
			opts = append(opts, intake.WithLockTTL(s.Store.LockTTL))
		}
	}
	opts = append(opts, Collaborators(s.LLM)...)

	agent, err := intake.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return agent, registry, nil
}
