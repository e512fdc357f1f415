// Package phrases holds the fixed phrasings the engine recognises without a collaborator:
// correction markers, common non-answers, skip requests and answer lead-ins.
package phrases

import (
	"regexp"
	"strings"
)

var correctionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:no|nope|actually|sorry|wait),?\s*(?:my|the|it'?s?)\s+(\w+)\s+(?:is|should be|was)\b`),
	regexp.MustCompile(`(?i)\b(?:i meant|i mean|that'?s? wrong|correction:?)\s+(?:my|the)?\s*(\w+)?`),
	regexp.MustCompile(`(?i)\b(?:let me correct|please change|update)\s+(?:my|the)?\s*(\w+)?`),
	regexp.MustCompile(`(?i)\b(?:that'?s? not right|wrong)\s*[,.]?\s*(?:my|the|it'?s?)?\s*(\w+)?`),
}

// softMarkers hint at a correction the fixed patterns could not confirm.
var softMarkers = []string{"no,", "actually", "sorry", "wrong", "correct", "meant"}

var offTopicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:hi|hello|hey|what'?s? up|how are you|good morning|good afternoon|good evening)\s*[!.?]?$`),
	regexp.MustCompile(`(?i)^(?:what|who|why|how|when|where)\s+(?:are you|is this|do you|can you|did)\b`),
	regexp.MustCompile(`(?i)^(?:tell me (?:a joke|about|more)|what'?s? the weather|help me with something else)`),
	regexp.MustCompile(`(?i)^(?:i have a question|can i ask|quick question|unrelated but)`),
}

var skipPattern = regexp.MustCompile(`(?i)^(?:skip(?: it| this)?|pass|none|n/?a|no thanks|prefer not to say|i'?d rather not(?: say)?|rather not say)\s*[!.]?$`)

var leadIn = regexp.MustCompile(`(?i)^(?:(?:no|nope|actually|sorry|wait|oops)\b[,!.]?\s*)*` +
	`(?:(?:i meant|i mean|correction:?|let me correct(?: that)?|please change(?: it)?(?: to)?|update(?: it)?(?: to)?)\b\s*[,:-]?\s*)?` +
	`(?:(?:(?:my|the)\s+[\w ]{1,30}?\s+(?:is|should be|was|are)|it'?s|it is|it should be|that'?s|this is|i am|i'?m|call me|use)\b)?\s*[:,-]?\s*`)

// Correction is the result of the pattern tier of correction detection.
type Correction struct {
	// Matched is true when a correction phrasing was recognised.
	Matched bool
	// Hint is the word the user named as the corrected field, if any.
	Hint string
}

// DetectCorrection runs the fixed correction patterns against msg.
func DetectCorrection(msg string) Correction {
	text := strings.TrimSpace(msg)
	for _, re := range correctionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hint := ""
		if len(m) > 1 {
			hint = strings.ToLower(m[1])
		}
		return Correction{Matched: true, Hint: hint}
	}
	return Correction{}
}

// HasSoftCorrectionMarker reports whether msg contains a weak correction signal.
func HasSoftCorrectionMarker(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range softMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsOffTopic reports whether msg is one of the common non-answers.
func IsOffTopic(msg string) bool {
	text := strings.TrimSpace(msg)
	for _, re := range offTopicPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// IsSkip reports whether msg asks to leave an optional field empty.
func IsSkip(msg string) bool {
	return skipPattern.MatchString(strings.TrimSpace(msg))
}

// StripLeadIn removes conversational lead-ins such as "No, my name is" from an answer.
func StripLeadIn(msg string) string {
	text := strings.TrimSpace(msg)
	stripped := strings.TrimSpace(leadIn.ReplaceAllString(text, ""))
	stripped = strings.TrimRight(stripped, ".!")
	if stripped == "" {
		return strings.TrimRight(text, ".!")
	}
	return stripped
}
