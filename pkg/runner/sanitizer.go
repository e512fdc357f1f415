package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxInputSize bounds a single user message in bytes.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "INTAKE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans user messages before they reach the engine or the logs.
type Sanitizer struct {
	// MaxSize is the limit in bytes; oversized input is rejected, never truncated.
	MaxSize int
}

// NewSanitizer creates a Sanitizer with the limit from the environment, if set.
func NewSanitizer() Sanitizer {
	s := Sanitizer{MaxSize: DefaultMaxInputSize}
	if v := os.Getenv(EnvMaxInputSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxSize = n
		}
	}
	return s
}

// Sanitize enforces the size limit, rejects invalid UTF-8 and removes control and
// invisible formatting characters. Newlines and tabs survive; surrounding space does not.
func (s Sanitizer) Sanitize(input string) (string, error) {
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unsafeRune) < 0 {
		return strings.TrimSpace(input), nil
	}
	clean := strings.Map(func(r rune) rune {
		if unsafeRune(r) {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(clean), nil
}

// SanitizeInput applies the default Sanitizer. Every transport calls it before a turn.
func SanitizeInput(input string) (string, error) {
	return NewSanitizer().Sanitize(input)
}

// unsafeRune matches terminal escapes, NUL, BEL and zero-width or bidi overrides.
func unsafeRune(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}
