package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment variables read into Settings.
const EnvPrefix = "INTAKE"

// Settings are the process settings shared by every command.
// They come, in increasing priority, from defaults, intake.yaml, INTAKE_* variables and flags.
type Settings struct {
	// ConfigDir holds the named agent configurations.
	ConfigDir string `mapstructure:"config_dir"`
	// Config is the agent configuration to activate: a name in ConfigDir or a file path.
	Config    string        `mapstructure:"config"`
	LogLevel  string        `mapstructure:"log_level"`
	Addr      string        `mapstructure:"addr"`
	Store     StoreSettings `mapstructure:"store"`
	LLM       LLMSettings   `mapstructure:"llm"`
	RateLimit RateSettings  `mapstructure:"rate_limit"`
	Prune     PruneSettings `mapstructure:"prune"`
	// Watch reloads the active configuration when its file changes.
	Watch         bool          `mapstructure:"watch"`
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// StoreSettings select and configure the conversation store.
type StoreSettings struct {
	// Backend is one of memory, file, redis or sql.
	Backend       string        `mapstructure:"backend"`
	Path          string        `mapstructure:"path"`
	DSN           string        `mapstructure:"dsn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	// EncryptionKey enables encryption at rest (32 bytes, hex or base64).
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// LLMSettings configure the model-backed collaborators. Without an API key the
// rule-based collaborators are used.
type LLMSettings struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// RateSettings limit messages per session on the network transports.
type RateSettings struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// PruneSettings drive the background removal of stale conversations.
type PruneSettings struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// NewViper returns a viper instance with the defaults and environment binding of Settings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_dir", "configs")
	v.SetDefault("config", "basic")
	v.SetDefault("log_level", "info")
	v.SetDefault("addr", ":8080")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", ".intake/sessions")
	v.SetDefault("store.dsn", "intake.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.ttl", time.Duration(0))
	v.SetDefault("store.lock_ttl", 10*time.Second)
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.rate_per_second", 0.0)
	v.SetDefault("rate_limit.per_second", 2.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("prune.interval", time.Duration(0))
	v.SetDefault("prune.max_age", 24*time.Hour)
	v.SetDefault("watch", false)
	v.SetDefault("watch_interval", 2*time.Second)
	return v
}

// ReadSettings reads the settings file (if any) and decodes Settings.
// An explicit file must exist; the default intake.yaml is optional.
func ReadSettings(v *viper.Viper, file string) (Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("intake")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("reading settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

// Logger builds the process logger for the configured level.
// Levels other than debug, info, warn and error disable logging.
func (s Settings) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return logging.NewNop()
	}
	return logging.New(level)
}
