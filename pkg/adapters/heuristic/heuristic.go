// Package heuristic provides rule-based collaborators for running the engine without a
// language model: regular-expression extraction, a small sentiment lexicon and keyword
// intent matching.
package heuristic

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/phrases"
	"github.com/aretw0/intake/pkg/ports"
)

// Confidence levels reported by the Extractor.
const (
	ConfidenceMatched  = 0.9
	ConfidenceFreeText = 0.7
	ConfidenceGuess    = 0.3
)

var finders = map[domain.FieldType]*regexp.Regexp{
	domain.FieldEmail:  regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	domain.FieldPhone:  regexp.MustCompile(`\+?\d[\d\s().-]{5,}\d`),
	domain.FieldURL:    regexp.MustCompile(`https?://[^\s"'<>]+`),
	domain.FieldNumber: regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`),
	domain.FieldDate:   regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|(?i:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2},? \d{4})`),
}

// Extractor finds typed values with regular expressions and falls back to the
// message with its conversational lead-in removed.
type Extractor struct{}

// Extract implements ports.Extractor.
func (Extractor) Extract(_ context.Context, req ports.ExtractRequest) (ports.Extraction, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return ports.Extraction{}, nil
	}
	if re, ok := finders[req.Field.Type]; ok && req.Field.Pattern == "" {
		if m := re.FindString(text); m != "" {
			return ports.Extraction{Value: strings.TrimRight(m, ".,;"), Found: true, Confidence: ConfidenceMatched}, nil
		}
		// Let the validator explain what is wrong with it.
		return ports.Extraction{Value: phrases.StripLeadIn(text), Found: true, Confidence: ConfidenceGuess}, nil
	}
	return ports.Extraction{Value: phrases.StripLeadIn(text), Found: true, Confidence: ConfidenceFreeText}, nil
}

var (
	negativeWords = []string{
		"angry", "annoyed", "annoying", "awful", "bad", "disappointed", "frustrated", "frustrating",
		"hate", "horrible", "ridiculous", "stupid", "terrible", "upset", "useless", "waste", "worst",
	}
	positiveWords = []string{
		"awesome", "glad", "good", "great", "happy", "helpful", "love", "nice", "perfect", "thank", "thanks",
	}
	wordSplit = regexp.MustCompile(`[^a-z']+`)
)

// Sentiment scores messages with a word lexicon. Each message scores
// (positive-negative)/(positive+negative), or 0 without sentiment words; the result is the mean.
type Sentiment struct{}

// Score implements ports.SentimentScorer.
func (Sentiment) Score(_ context.Context, messages []string) (float64, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	total := 0.0
	for _, m := range messages {
		total += scoreOne(m)
	}
	return total / float64(len(messages)), nil
}

func scoreOne(msg string) float64 {
	pos, neg := 0, 0
	for _, w := range wordSplit.Split(strings.ToLower(msg), -1) {
		switch {
		case contains(negativeWords, w):
			neg++
		case contains(positiveWords, w):
			pos++
		}
	}
	if strings.Contains(msg, "!!") {
		neg++
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func contains(list []string, w string) bool {
	for _, x := range list {
		if x == w {
			return true
		}
	}
	return false
}

// IntentKeywords maps escalation intents to the phrases that signal them.
var IntentKeywords = map[string][]string{
	"request_human": {"human", "real person", "representative", "operator", "talk to someone", "speak to someone", "agent"},
	"frustrated":    {"frustrated", "fed up", "annoyed", "this is useless", "not helping"},
	"complaint":     {"complaint", "complain", "unacceptable"},
	"urgent":        {"urgent", "asap", "emergency", "immediately", "right now"},
}

var questionStart = regexp.MustCompile(`(?i)^(?:what|who|why|how|when|where|do|does|can|could|is|are|will)\b`)

// Classifier labels messages by keyword.
type Classifier struct{}

// Classify implements ports.IntentClassifier.
func (Classifier) Classify(_ context.Context, req ports.IntentRequest) ([]string, error) {
	lower := strings.ToLower(req.Message)
	switch req.Task {
	case ports.TaskEscalation:
		var labels []string
		for _, intent := range req.Candidates {
			for _, kw := range IntentKeywords[strings.ToLower(intent)] {
				if strings.Contains(lower, kw) {
					labels = append(labels, intent)
					break
				}
			}
		}
		return labels, nil

	case ports.TaskCorrection:
		if name, ok := correctionTarget(lower, req); ok {
			return []string{ports.LabelCorrectionPrefix + name}, nil
		}
		return nil, nil

	case ports.TaskRelevance:
		// A question that does not mention the requested field is treated as a change of subject.
		text := strings.TrimSpace(req.Message)
		if strings.HasSuffix(text, "?") && questionStart.MatchString(text) {
			if req.CurrentField == nil || !strings.Contains(lower, strings.ToLower(req.CurrentField.Label())) {
				return []string{ports.LabelOffTopic}, nil
			}
		}
		return []string{ports.LabelOnTopic}, nil
	}
	return nil, nil
}

type mention struct {
	name      string
	label     string
	collected bool
}

// correctionTarget finds the collected field a message names. Longer labels are
// tried first, so "company name" is not read as "name". A message naming the field
// being requested is an answer, not a correction.
func correctionTarget(lower string, req ports.IntentRequest) (string, bool) {
	mentions := make([]mention, 0, len(req.Collected)+1)
	for _, name := range req.Collected {
		mentions = append(mentions, mention{name: name, label: strings.ToLower(strings.ReplaceAll(name, "_", " ")), collected: true})
	}
	if req.CurrentField != nil {
		mentions = append(mentions, mention{name: req.CurrentField.Name, label: strings.ToLower(req.CurrentField.Label())})
	}
	sort.SliceStable(mentions, func(i, j int) bool {
		return len(mentions[i].label) > len(mentions[j].label)
	})

	for _, m := range mentions {
		if !mentionsWord(lower, m.label) {
			continue
		}
		return m.name, m.collected
	}
	return "", false
}

// mentionsWord reports whether phrase occurs in text on word boundaries.
func mentionsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`).MatchString(text)
}
