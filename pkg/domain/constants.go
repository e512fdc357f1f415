package domain

// Metadata keys used by the engine.
const (
	// KeyOffTopicCount counts redirects issued for off-topic replies.
	KeyOffTopicCount = "off_topic_count"

	// KeyCorrectionCount counts accepted corrections.
	KeyCorrectionCount = "correction_count"

	// KeyLastNode is the terminal node of the most recent turn.
	KeyLastNode = "last_node"
)
