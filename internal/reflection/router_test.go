package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The routing function is pure, so every edge of the transition table can be
// checked without touching any adapter.
func TestRoute_UnconditionalEdges(t *testing.T) {
	lim := Limits{}.withDefaults()
	s := NewRunState("q")

	cases := []struct {
		name string
		from Node
		out  Outcome
		want Node
	}{
		{"decide retrieval false", NodeDecideRetrieval, OutcomeNoRetrievalNeeded, NodeDirectAnswer},
		{"decide retrieval true", NodeDecideRetrieval, OutcomeRetrievalNeeded, NodeRetrieve},
		{"direct answer terminates", NodeDirectAnswer, OutcomeAdvance, NodeDone},
		{"retrieve always grades", NodeRetrieve, OutcomeAdvance, NodeGradeRelevance},
		{"no relevant docs", NodeGradeRelevance, OutcomeNoneRelevant, NodeNoRelevantDoc},
		{"some relevant docs", NodeGradeRelevance, OutcomeSomeRelevant, NodeGenerate},
		{"fallback terminates", NodeNoRelevantDoc, OutcomeAdvance, NodeDone},
		{"generate always checks grounding", NodeGenerate, OutcomeAdvance, NodeCheckGroundedness},
		{"grounded proceeds to usefulness", NodeCheckGroundedness, OutcomeGrounded, NodeCheckUsefulness},
		{"useful terminates", NodeCheckUsefulness, OutcomeUseful, NodeDone},
		{"rewrite re-retrieves", NodeRewriteQuery, OutcomeAdvance, NodeRetrieve},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Route(tc.from, tc.out, s, lim))
		})
	}
}

func TestRoute_UngroundedWithRetriesRemaining(t *testing.T) {
	lim := Limits{MaxHallucinationRetries: 5}.withDefaults()
	s := NewRunState("q")
	s.HallucinationRetries = 4

	assert.Equal(t, NodeGenerate, Route(NodeCheckGroundedness, OutcomeUngrounded, s, lim))
}

func TestRoute_UngroundedWithRetriesExhausted(t *testing.T) {
	lim := Limits{MaxHallucinationRetries: 5}.withDefaults()
	s := NewRunState("q")
	s.HallucinationRetries = 5

	assert.Equal(t, NodeDone, Route(NodeCheckGroundedness, OutcomeUngrounded, s, lim))
}

func TestRoute_NotUsefulWithRewritesRemaining(t *testing.T) {
	lim := Limits{MaxQueryRewrites: 3}.withDefaults()
	s := NewRunState("q")
	s.RewriteCount = 2

	assert.Equal(t, NodeRewriteQuery, Route(NodeCheckUsefulness, OutcomeNotUseful, s, lim))
}

func TestRoute_NotUsefulWithRewritesExhausted(t *testing.T) {
	lim := Limits{MaxQueryRewrites: 3}.withDefaults()
	s := NewRunState("q")
	s.RewriteCount = 3

	assert.Equal(t, NodeDone, Route(NodeCheckUsefulness, OutcomeNotUseful, s, lim))
}

func TestRoute_UnknownEdgeFails(t *testing.T) {
	lim := Limits{}.withDefaults()
	s := NewRunState("q")

	assert.Equal(t, NodeFailed, Route(NodeDone, OutcomeAdvance, s, lim))
	assert.Equal(t, NodeFailed, Route(NodeRetrieve, OutcomeGrounded, s, lim))
}

func TestLimits_WithDefaults(t *testing.T) {
	lim := Limits{}.withDefaults()

	assert.Equal(t, DefaultTopK, lim.TopK)
	assert.Equal(t, DefaultMaxHallucinationRetries, lim.MaxHallucinationRetries)
	assert.Equal(t, DefaultMaxQueryRewrites, lim.MaxQueryRewrites)
	assert.Equal(t, DefaultStepBudget, lim.StepBudget)

	custom := Limits{TopK: 8, StepBudget: 10}.withDefaults()
	assert.Equal(t, 8, custom.TopK)
	assert.Equal(t, 10, custom.StepBudget)
	assert.Equal(t, DefaultMaxHallucinationRetries, custom.MaxHallucinationRetries)
}
