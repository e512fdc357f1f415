package runtime

// NodeID names a step of the turn state machine.
type NodeID string

const (
	NodeCheckEscalation NodeID = "check_escalation"
	NodeCheckCorrection NodeID = "check_correction"
	NodeCheckOffTopic   NodeID = "check_off_topic"
	NodeExtractField    NodeID = "extract_field"
	NodeValidate        NodeID = "validate"
	NodePromptNext      NodeID = "prompt_next"
	NodeEscalate        NodeID = "escalate"
	NodeComplete        NodeID = "complete"

	// NodeEnd marks the end of a turn.
	NodeEnd NodeID = "__end__"
)

// EntryNode is where every turn starts.
const EntryNode = NodeCheckEscalation

// Terminal reports whether the node produces the reply of the turn.
func (n NodeID) Terminal() bool {
	return n == NodePromptNext || n == NodeEscalate || n == NodeComplete
}

// Outcome carries the signals a node produced that routing depends on.
type Outcome struct {
	Escalate   bool
	Correction bool
	OffTopic   bool
	// AllRequired is true when every required field holds a validated value.
	AllRequired bool
}

// route is the transition function of the state machine.
// It is pure: the next node depends only on the current node and its outcome.
func route(node NodeID, out Outcome) NodeID {
	switch node {
	case NodeCheckEscalation:
		if out.Escalate {
			return NodeEscalate
		}
		return NodeCheckCorrection
	case NodeCheckCorrection:
		if out.Correction {
			return NodeExtractField
		}
		return NodeCheckOffTopic
	case NodeCheckOffTopic:
		switch {
		case out.AllRequired:
			return NodeComplete
		case out.OffTopic:
			return NodePromptNext
		}
		return NodeExtractField
	case NodeExtractField:
		return NodeValidate
	case NodeValidate:
		if out.AllRequired {
			return NodeComplete
		}
		return NodePromptNext
	}
	return NodeEnd
}
