package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		node NodeID
		out  Outcome
		want NodeID
	}{
		{NodeCheckEscalation, Outcome{Escalate: true}, NodeEscalate},
		{NodeCheckEscalation, Outcome{}, NodeCheckCorrection},
		{NodeCheckCorrection, Outcome{Correction: true}, NodeExtractField},
		{NodeCheckCorrection, Outcome{}, NodeCheckOffTopic},
		{NodeCheckOffTopic, Outcome{AllRequired: true, OffTopic: true}, NodeComplete},
		{NodeCheckOffTopic, Outcome{OffTopic: true}, NodePromptNext},
		{NodeCheckOffTopic, Outcome{}, NodeExtractField},
		{NodeExtractField, Outcome{}, NodeValidate},
		{NodeValidate, Outcome{AllRequired: true}, NodeComplete},
		{NodeValidate, Outcome{}, NodePromptNext},
		{NodePromptNext, Outcome{}, NodeEnd},
		{NodeEscalate, Outcome{}, NodeEnd},
		{NodeComplete, Outcome{AllRequired: true}, NodeEnd},
		{NodeID("bogus"), Outcome{}, NodeEnd},
	}
	for _, tt := range tests {
		t.Run(string(tt.node), func(t *testing.T) {
			assert.Equal(t, tt.want, route(tt.node, tt.out))
		})
	}
}

func TestRoute_EveryPathTerminates(t *testing.T) {
	outcomes := []Outcome{{}, {Escalate: true}, {Correction: true}, {OffTopic: true}, {AllRequired: true}}
	var walk func(node NodeID, depth int)
	walk = func(node NodeID, depth int) {
		if node == NodeEnd {
			return
		}
		if depth > 8 {
			t.Fatalf("path through %s does not terminate", node)
		}
		for _, out := range outcomes {
			next := route(node, out)
			if next == NodeEnd {
				assert.True(t, node.Terminal(), "%s ends a turn without replying", node)
			}
			walk(next, depth+1)
		}
	}
	walk(EntryNode, 0)
}

func TestTransitions_MatchRoute(t *testing.T) {
	type edge struct{ from, to NodeID }

	declared := map[edge]bool{}
	for _, tr := range Transitions() {
		declared[edge{tr.From, tr.To}] = true
	}

	reachable := map[edge]bool{}
	for _, node := range Nodes() {
		if node.Terminal() {
			continue
		}
		for mask := 0; mask < 16; mask++ {
			out := Outcome{
				Escalate:    mask&1 != 0,
				Correction:  mask&2 != 0,
				OffTopic:    mask&4 != 0,
				AllRequired: mask&8 != 0,
			}
			reachable[edge{node, route(node, out)}] = true
		}
	}

	assert.Equal(t, declared, reachable)
}
