// Package validation checks raw answers against a field's declared type or custom pattern.
//
// Validate is pure apart from a cache of compiled custom patterns.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/aretw0/intake/pkg/domain"
)

// ErrMalformedPattern is wrapped by Result.Warning when a custom pattern does not compile.
var ErrMalformedPattern = errors.New("malformed validation pattern")

const (
	// ConfidenceMatch is returned for an accepted value.
	ConfidenceMatch = 1.0
	// ConfidenceRejected is returned for a rejected value.
	ConfidenceRejected = 0.2
	// ConfidenceDegraded is returned when a malformed pattern forces acceptance.
	ConfidenceDegraded = 0.5

	minPhoneDigits = 7
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// DateLayouts are the accepted layouts for date fields, tried in order.
var DateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Result is the outcome of a validation.
type Result struct {
	Valid      bool
	Confidence float64
	// Warning is set for recoverable problems such as a malformed pattern.
	Warning error
}

func accept() Result { return Result{Valid: true, Confidence: ConfidenceMatch} }
func reject() Result { return Result{Valid: false, Confidence: ConfidenceRejected} }

// Validate checks raw against the field type. A non-empty pattern overrides the
// type rule and must match the whole value.
func Validate(raw string, fieldType domain.FieldType, pattern string) Result {
	value := strings.TrimSpace(raw)
	if value == "" {
		return reject()
	}

	if pattern != "" {
		re, err := compile(pattern)
		if err != nil {
			return Result{
				Valid:      true,
				Confidence: ConfidenceDegraded,
				Warning:    fmt.Errorf("%w %q: %v", ErrMalformedPattern, pattern, err),
			}
		}
		if re.MatchString(value) {
			return accept()
		}
		return reject()
	}

	var ok bool
	switch fieldType {
	case domain.FieldEmail:
		ok = emailPattern.MatchString(value)
	case domain.FieldPhone:
		ok = phoneDigits(value) >= minPhoneDigits
	case domain.FieldURL:
		ok = isHTTPURL(value)
	case domain.FieldNumber:
		ok = isNumber(value)
	case domain.FieldDate:
		_, ok = ParseDate(value)
	default:
		ok = true
	}
	if ok {
		return accept()
	}
	return reject()
}

// CheckPattern reports whether a custom pattern compiles.
func CheckPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	_, err := compile(pattern)
	return err
}

// ParseDate parses value with the first matching layout.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// phoneDigits counts the digits in value. Separators are ignored; letters disqualify the value.
func phoneDigits(value string) int {
	n := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			n++
		} else if unicode.IsLetter(r) {
			return 0
		}
	}
	return n
}

func isHTTPURL(value string) bool {
	if strings.ContainsAny(value, " \t\n") {
		return false
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isNumber(value string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	return err == nil
}

var patterns sync.Map // pattern -> *regexp.Regexp

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}
