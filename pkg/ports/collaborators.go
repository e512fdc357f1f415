package ports

import (
	"context"

	"github.com/aretw0/intake/pkg/domain"
)

// ExtractRequest carries what an extractor needs to find one field's value.
type ExtractRequest struct {
	Message string
	Field   domain.FieldDefinition
	// History is the recent message log, oldest first.
	History []domain.Message
}

// Extraction is the outcome of an extraction.
type Extraction struct {
	Value string
	// Found is false when the message does not contain a usable value.
	Found      bool
	Confidence float64
}

// Extractor pulls a field value out of a user message.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (Extraction, error)
}

// SentimentScorer scores an ordered window of messages in [-1, 1].
type SentimentScorer interface {
	Score(ctx context.Context, messages []string) (float64, error)
}

// IntentTask selects the question an IntentClassifier answers.
type IntentTask string

const (
	// TaskEscalation asks which escalation intents the message expresses.
	TaskEscalation IntentTask = "escalation"
	// TaskCorrection asks whether the message revises a collected field.
	TaskCorrection IntentTask = "correction"
	// TaskRelevance asks whether the message addresses the requested field.
	TaskRelevance IntentTask = "relevance"
)

// Labels returned by an IntentClassifier.
const (
	LabelOnTopic  = "on_topic"
	LabelOffTopic = "off_topic"
	// LabelCorrection marks a correction whose target field is unknown.
	LabelCorrection = "correction"
	// LabelCorrectionPrefix is followed by the corrected field name.
	LabelCorrectionPrefix = "correction:"
)

// IntentRequest carries the message and the context a classifier may use.
type IntentRequest struct {
	Task    IntentTask
	Message string
	// CurrentField is the field being requested, if any.
	CurrentField *domain.FieldDefinition
	// Collected lists the names of fields that already have a record.
	Collected []string
	// Candidates is the label set of interest for TaskEscalation.
	Candidates []string
	// MinConfidence drops labels the classifier is less sure about.
	MinConfidence float64
	History       []domain.Message
}

// IntentClassifier labels a message. An empty label set means no intent was found.
type IntentClassifier interface {
	Classify(ctx context.Context, req IntentRequest) ([]string, error)
}
