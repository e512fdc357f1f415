package middleware

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultPIIPatterns match the field names that usually carry personal data.
var DefaultPIIPatterns = []string{`(?i)email`, `(?i)phone`, `(?i)ssn`, `(?i)password`, `(?i)address`}

type piiMiddleware struct {
	next     ports.ConversationStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a read-side view that masks the values of fields whose names
// match one of the patterns, along with every occurrence of those values in the message
// log and the prior-value history. Writes pass through untouched so the engine keeps
// working on real data; wrap only stores handed to inspection and export tooling.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ConversationStore) ports.ConversationStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) sensitive(field string) bool {
	for _, p := range m.patterns {
		if p.MatchString(field) {
			return true
		}
	}
	return false
}

// redact works on a clone; the input is never modified.
func (m *piiMiddleware) redact(conv *domain.Conversation) *domain.Conversation {
	out := conv.Clone()

	var secrets []string
	for name, fv := range out.Fields {
		if !m.sensitive(name) {
			continue
		}
		if fv.Value != "" {
			secrets = append(secrets, fv.Value)
			fv.Value = Mask
		}
		for i, h := range fv.History {
			secrets = append(secrets, h)
			fv.History[i] = Mask
		}
	}
	if len(secrets) == 0 {
		return out
	}

	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		pairs = append(pairs, s, Mask)
	}
	replacer := strings.NewReplacer(pairs...)
	for i := range out.Messages {
		out.Messages[i].Content = replacer.Replace(out.Messages[i].Content)
	}
	return out
}

func (m *piiMiddleware) Create(ctx context.Context, conv *domain.Conversation) error {
	return m.next.Create(ctx, conv)
}

func (m *piiMiddleware) Put(ctx context.Context, conv *domain.Conversation) error {
	return m.next.Put(ctx, conv)
}

func (m *piiMiddleware) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	conv, err := m.next.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.redact(conv), nil
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	convs, err := m.next.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	for i, c := range convs {
		convs[i] = m.redact(c)
	}
	return convs, nil
}

func (m *piiMiddleware) Count(ctx context.Context, status domain.Status) (int, error) {
	return m.next.Count(ctx, status)
}

func (m *piiMiddleware) Prune(ctx context.Context, before time.Time) (int, error) {
	return m.next.Prune(ctx, before)
}
