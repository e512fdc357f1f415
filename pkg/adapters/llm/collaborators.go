package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Answers the prompts below ask the model to reply with.
const (
	notProvided    = "NOT_PROVIDED"
	invalid        = "INVALID"
	notCorrection  = "NOT_CORRECTION"
	correctionTag  = "CORRECTION:"
	unknownField   = "UNKNOWN"
	offTopicAnswer = "OFF_TOPIC"
	detectedTag    = "DETECTED:"
	confidenceTag  = "CONFIDENCE:"
)

const systemPrompt = "You are a precise classifier inside a data collection assistant. Follow the response format exactly."

// extractionConfidence is reported for values the model returned verbatim.
const extractionConfidence = 0.9

// historyTail bounds how many log entries are quoted in prompts.
const historyTail = 5

func transcript(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyTail {
		history = history[len(history)-historyTail:]
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		role := "Agent"
		if m.Role == domain.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("\n")
	return b.String()
}

// Extractor asks the model for the value of one field.
type Extractor struct {
	llm Completer
}

// NewExtractor creates an Extractor.
func NewExtractor(c Completer) *Extractor {
	return &Extractor{llm: c}
}

// Extract implements ports.Extractor.
func (e *Extractor) Extract(ctx context.Context, req ports.ExtractRequest) (ports.Extraction, error) {
	f := req.Field
	prompt := fmt.Sprintf(`%sExtract the %s (%s) from the user's message.

User message: %q

Instructions:
- If the message contains a %s, respond with ONLY the extracted value.
- If it does not contain this information or it is unclear, respond with %s.
- If the value is clearly not a valid %s, respond with %s.
- Do not include any other text.

Response:`, transcript(req.History), f.Label(), f.Type, req.Message, f.Type, notProvided, f.Type, invalid)

	answer, err := e.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return ports.Extraction{}, err
	}
	answer = strings.Trim(answer, "\"' ")
	switch strings.ToUpper(answer) {
	case "", notProvided, invalid:
		return ports.Extraction{}, nil
	}
	return ports.Extraction{Value: answer, Found: true, Confidence: extractionConfidence}, nil
}

// Sentiment asks the model to rate negativity and maps it onto [-1, 1].
type Sentiment struct {
	llm Completer
}

// NewSentiment creates a Sentiment scorer.
func NewSentiment(c Completer) *Sentiment {
	return &Sentiment{llm: c}
}

// Score implements ports.SentimentScorer.
func (s *Sentiment) Score(ctx context.Context, messages []string) (float64, error) {
	var quoted strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&quoted, "- %q\n", m)
	}
	prompt := fmt.Sprintf(`Rate the overall sentiment of these user messages on a scale from -1.0 to 1.0.

Messages:
%s
- -1.0 = very negative, angry or extremely frustrated
- 0.0 = neutral
- 1.0 = very positive

Respond with ONLY a decimal number, nothing else.

Sentiment score:`, quoted.String())

	answer, err := s.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(answer), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable sentiment score %q: %w", answer, err)
	}
	return min(max(score, -1), 1), nil
}

// Classifier answers the three intent tasks with one prompt each.
type Classifier struct {
	llm Completer
}

// NewClassifier creates a Classifier.
func NewClassifier(c Completer) *Classifier {
	return &Classifier{llm: c}
}

// Classify implements ports.IntentClassifier.
func (c *Classifier) Classify(ctx context.Context, req ports.IntentRequest) ([]string, error) {
	switch req.Task {
	case ports.TaskEscalation:
		return c.escalation(ctx, req)
	case ports.TaskCorrection:
		return c.correction(ctx, req)
	case ports.TaskRelevance:
		return c.relevance(ctx, req)
	}
	return nil, fmt.Errorf("unsupported intent task %q", req.Task)
}

func (c *Classifier) escalation(ctx context.Context, req ports.IntentRequest) ([]string, error) {
	var intents strings.Builder
	for _, i := range req.Candidates {
		fmt.Fprintf(&intents, "- %s\n", i)
	}
	prompt := fmt.Sprintf(`Determine whether the user message matches any of these escalation intents:
%s
User message: %q

If it matches one, respond with:
%s <intent>
%s <0.0-1.0>

Otherwise respond with:
%s NONE
%s 0.0

Response:`, intents.String(), req.Message, detectedTag, confidenceTag, detectedTag, confidenceTag)

	answer, err := c.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var intent string
	var confidence float64
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), detectedTag):
			intent = strings.TrimSpace(line[len(detectedTag):])
		case strings.HasPrefix(strings.ToUpper(line), confidenceTag):
			v, err := strconv.ParseFloat(strings.TrimSpace(line[len(confidenceTag):]), 64)
			if err != nil {
				return nil, fmt.Errorf("unparseable confidence in %q: %w", line, err)
			}
			confidence = min(max(v, 0), 1)
		}
	}
	if intent == "" || strings.EqualFold(intent, "NONE") || confidence < req.MinConfidence {
		return nil, nil
	}
	return []string{strings.ToLower(intent)}, nil
}

func (c *Classifier) correction(ctx context.Context, req ports.IntentRequest) ([]string, error) {
	prompt := fmt.Sprintf(`%sDetermine if the user is correcting a previously provided value.

User message: %q
Previously collected fields: %s

Respond with ONLY one of:
- %s<field_name> if correcting a specific field
- %s%s if correcting but the field is unclear
- %s if not a correction

Response:`, transcript(req.History), req.Message, strings.Join(req.Collected, ", "),
		correctionTag, correctionTag, unknownField, notCorrection)

	answer, err := c.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if !strings.HasPrefix(strings.ToUpper(answer), correctionTag) {
		return nil, nil
	}
	field := strings.ToLower(strings.TrimSpace(answer[len(correctionTag):]))
	if field == "" || strings.EqualFold(field, unknownField) {
		return []string{ports.LabelCorrection}, nil
	}
	return []string{ports.LabelCorrectionPrefix + field}, nil
}

func (c *Classifier) relevance(ctx context.Context, req ports.IntentRequest) ([]string, error) {
	target := "the requested information"
	if req.CurrentField != nil {
		target = fmt.Sprintf("%s (%s)", req.CurrentField.Label(), req.CurrentField.Type)
	}
	prompt := fmt.Sprintf(`Determine if the user's response is relevant to the question being asked.

We are collecting: %s
User's response: %q

A response is OFF-TOPIC if it asks unrelated questions, changes the subject, or makes no attempt to answer.
A response is ON-TOPIC if it attempts to answer (even if incomplete or invalid), asks for clarification, or declines.

Respond with ONLY: ON_TOPIC or %s

Response:`, target, req.Message, offTopicAnswer)

	answer, err := c.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToUpper(answer), offTopicAnswer) {
		return []string{ports.LabelOffTopic}, nil
	}
	return []string{ports.LabelOnTopic}, nil
}
