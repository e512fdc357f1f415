package escalation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/ports"
)

// KeywordConfig configures the keyword policy.
type KeywordConfig struct {
	Keywords       []string `mapstructure:"keywords"`
	CaseSensitive  bool     `mapstructure:"case_sensitive"`
	MatchWholeWord bool     `mapstructure:"match_whole_word"`
}

type keywordPolicy struct {
	cfg      KeywordConfig
	patterns []*regexp.Regexp
}

func newKeyword(raw map[string]any, _ Deps) (Policy, error) {
	var cfg KeywordConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	var keywords []string
	for _, k := range cfg.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return nil, errors.New("keywords must not be empty")
	}
	cfg.Keywords = keywords

	p := &keywordPolicy{cfg: cfg}
	if cfg.MatchWholeWord {
		for _, k := range keywords {
			expr := `\b` + regexp.QuoteMeta(k) + `\b`
			if !cfg.CaseSensitive {
				expr = `(?i)` + expr
			}
			p.patterns = append(p.patterns, regexp.MustCompile(expr))
		}
	}
	return p, nil
}

func (p *keywordPolicy) Evaluate(_ context.Context, snap Snapshot) (bool, error) {
	if p.patterns != nil {
		for _, re := range p.patterns {
			if re.MatchString(snap.Message) {
				return true, nil
			}
		}
		return false, nil
	}

	msg := snap.Message
	if !p.cfg.CaseSensitive {
		msg = strings.ToLower(msg)
	}
	for _, k := range p.cfg.Keywords {
		if !p.cfg.CaseSensitive {
			k = strings.ToLower(k)
		}
		if strings.Contains(msg, k) {
			return true, nil
		}
	}
	return false, nil
}

// TimeoutConfig configures the timeout policy. Zero disables a limit.
type TimeoutConfig struct {
	MaxDurationSeconds float64 `mapstructure:"max_duration_seconds"`
	MaxAttempts        int     `mapstructure:"max_attempts"`
}

type timeoutPolicy struct {
	maxDuration time.Duration
	maxAttempts int
}

func newTimeout(raw map[string]any, _ Deps) (Policy, error) {
	var cfg TimeoutConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxDurationSeconds < 0 || cfg.MaxAttempts < 0 {
		return nil, errors.New("limits must not be negative")
	}
	if cfg.MaxDurationSeconds == 0 && cfg.MaxAttempts == 0 {
		return nil, errors.New("either max_duration_seconds or max_attempts is required")
	}
	return &timeoutPolicy{
		maxDuration: time.Duration(cfg.MaxDurationSeconds * float64(time.Second)),
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

func (p *timeoutPolicy) Evaluate(_ context.Context, snap Snapshot) (bool, error) {
	conv := snap.Conversation
	if p.maxDuration > 0 && snap.Now.Sub(conv.CreatedAt) > p.maxDuration {
		return true, nil
	}
	if p.maxAttempts > 0 {
		for _, fv := range conv.Fields {
			if !fv.Validated && !fv.Skipped && fv.Attempts >= p.maxAttempts {
				return true, nil
			}
		}
	}
	return false, nil
}

// SentimentConfig configures the sentiment policy.
// With IncludeHistory set to false only the latest message is scored.
type SentimentConfig struct {
	Threshold      float64 `mapstructure:"threshold"`
	Window         int     `mapstructure:"window"`
	IncludeHistory *bool   `mapstructure:"include_history"`
}

type sentimentPolicy struct {
	cfg    SentimentConfig
	scorer ports.SentimentScorer
}

func newSentiment(raw map[string]any, deps Deps) (Policy, error) {
	cfg := SentimentConfig{Threshold: -0.5, Window: 3}
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Threshold < -1 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [-1, 1]", cfg.Threshold)
	}
	if cfg.Window < 1 {
		return nil, errors.New("window must be at least 1")
	}
	if cfg.IncludeHistory != nil && !*cfg.IncludeHistory {
		cfg.Window = 1
	}
	if deps.Sentiment == nil {
		return nil, errors.New("a sentiment scorer is required")
	}
	return &sentimentPolicy{cfg: cfg, scorer: deps.Sentiment}, nil
}

func (p *sentimentPolicy) Evaluate(ctx context.Context, snap Snapshot) (bool, error) {
	msgs := snap.Conversation.UserMessages()
	if len(msgs) < p.cfg.Window {
		return false, nil
	}
	score, err := p.scorer.Score(ctx, msgs[len(msgs)-p.cfg.Window:])
	if err != nil {
		return false, fmt.Errorf("sentiment scoring failed: %w", err)
	}
	return score < p.cfg.Threshold, nil
}

// DefaultIntents are the escalation intents used when none are configured.
var DefaultIntents = []string{"request_human", "frustrated", "complaint", "urgent"}

// IntentConfig configures the llm_intent policy.
type IntentConfig struct {
	Intents             []string `mapstructure:"intents"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
}

type intentPolicy struct {
	cfg        IntentConfig
	set        map[string]struct{}
	classifier ports.IntentClassifier
}

func newIntent(raw map[string]any, deps Deps) (Policy, error) {
	cfg := IntentConfig{ConfidenceThreshold: 0.8}
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Intents) == 0 {
		cfg.Intents = append([]string(nil), DefaultIntents...)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence_threshold %v outside [0, 1]", cfg.ConfidenceThreshold)
	}
	if deps.Intents == nil {
		return nil, errors.New("an intent classifier is required")
	}
	set := make(map[string]struct{}, len(cfg.Intents))
	for _, i := range cfg.Intents {
		set[strings.ToLower(strings.TrimSpace(i))] = struct{}{}
	}
	return &intentPolicy{cfg: cfg, set: set, classifier: deps.Intents}, nil
}

func (p *intentPolicy) Evaluate(ctx context.Context, snap Snapshot) (bool, error) {
	labels, err := p.classifier.Classify(ctx, ports.IntentRequest{
		Task:          ports.TaskEscalation,
		Message:       snap.Message,
		Candidates:    p.cfg.Intents,
		MinConfidence: p.cfg.ConfidenceThreshold,
		History:       snap.Conversation.Messages,
	})
	if err != nil {
		return false, fmt.Errorf("intent classification failed: %w", err)
	}
	for _, l := range labels {
		if _, ok := p.set[strings.ToLower(strings.TrimSpace(l))]; ok {
			return true, nil
		}
	}
	return false, nil
}

// CompletionConfig configures the completion policy.
type CompletionConfig struct {
	RequiredFields       []string `mapstructure:"required_fields"`
	EscalateWhenComplete *bool    `mapstructure:"escalate_when_complete"`
}

type completionPolicy struct {
	fields  []string
	enabled bool
}

func newCompletion(raw map[string]any, _ Deps) (Policy, error) {
	var cfg CompletionConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, err
	}
	enabled := cfg.EscalateWhenComplete == nil || *cfg.EscalateWhenComplete
	return &completionPolicy{fields: cfg.RequiredFields, enabled: enabled}, nil
}

func (p *completionPolicy) Evaluate(_ context.Context, snap Snapshot) (bool, error) {
	if !p.enabled {
		return false, nil
	}
	required := p.fields
	if len(required) == 0 {
		for _, f := range snap.Fields {
			if f.Required {
				required = append(required, f.Name)
			}
		}
	}
	if len(required) == 0 {
		return false, nil
	}
	for _, name := range required {
		if !snap.Conversation.Validated(name) {
			return false, nil
		}
	}
	return true, nil
}

type nopScorer struct{}

func (nopScorer) Score(context.Context, []string) (float64, error) { return 0, nil }

type nopClassifier struct{}

func (nopClassifier) Classify(context.Context, ports.IntentRequest) ([]string, error) {
	return nil, nil
}
