package runtime

// Transition is one edge of the turn state machine.
type Transition struct {
	From      NodeID
	To        NodeID
	Condition string
}

// Nodes lists the nodes of the state machine in visiting order.
func Nodes() []NodeID {
	return []NodeID{
		NodeCheckEscalation,
		NodeCheckCorrection,
		NodeCheckOffTopic,
		NodeExtractField,
		NodeValidate,
		NodePromptNext,
		NodeEscalate,
		NodeComplete,
	}
}

// Transitions describes every edge route can take, labelled with its condition.
func Transitions() []Transition {
	return []Transition{
		{NodeCheckEscalation, NodeEscalate, "policy fired"},
		{NodeCheckEscalation, NodeCheckCorrection, ""},
		{NodeCheckCorrection, NodeExtractField, "correction"},
		{NodeCheckCorrection, NodeCheckOffTopic, ""},
		{NodeCheckOffTopic, NodeComplete, "all required"},
		{NodeCheckOffTopic, NodePromptNext, "off topic"},
		{NodeCheckOffTopic, NodeExtractField, ""},
		{NodeExtractField, NodeValidate, ""},
		{NodeValidate, NodeComplete, "all required"},
		{NodeValidate, NodePromptNext, ""},
	}
}
