package reflection

// Outcome is what a node execution reports back to the router. Outcomes
// carry no payload; everything data-shaped lives in RunState.
type Outcome string

const (
	// OutcomeAdvance is the single outcome of nodes with one outgoing edge.
	OutcomeAdvance Outcome = "advance"

	OutcomeRetrievalNeeded   Outcome = "retrieval_needed"
	OutcomeNoRetrievalNeeded Outcome = "no_retrieval_needed"

	OutcomeSomeRelevant Outcome = "some_relevant"
	OutcomeNoneRelevant Outcome = "none_relevant"

	OutcomeGrounded   Outcome = "grounded"
	OutcomeUngrounded Outcome = "ungrounded"

	OutcomeUseful    Outcome = "useful"
	OutcomeNotUseful Outcome = "not_useful"
)

type edge struct {
	from Node
	out  Outcome
}

// transitions holds every unconditional edge of the graph. The two
// budget-gated edges (ungrounded and not-useful) are resolved in Route
// against the counters in state, with the bound checked before each
// loop re-entry.
var transitions = map[edge]Node{
	{NodeDecideRetrieval, OutcomeNoRetrievalNeeded}: NodeDirectAnswer,
	{NodeDecideRetrieval, OutcomeRetrievalNeeded}:   NodeRetrieve,
	{NodeDirectAnswer, OutcomeAdvance}:              NodeDone,
	{NodeRetrieve, OutcomeAdvance}:                  NodeGradeRelevance,
	{NodeGradeRelevance, OutcomeNoneRelevant}:       NodeNoRelevantDoc,
	{NodeGradeRelevance, OutcomeSomeRelevant}:       NodeGenerate,
	{NodeNoRelevantDoc, OutcomeAdvance}:             NodeDone,
	{NodeGenerate, OutcomeAdvance}:                  NodeCheckGroundedness,
	{NodeCheckGroundedness, OutcomeGrounded}:        NodeCheckUsefulness,
	{NodeCheckUsefulness, OutcomeUseful}:            NodeDone,
	{NodeRewriteQuery, OutcomeAdvance}:              NodeRetrieve,
}

// Route is the pure routing function: given the node just executed, its
// outcome, and the current state, it names the next node. It never mutates
// state; counter increments happen in the runner on the loop re-entry edges.
func Route(from Node, out Outcome, s *RunState, lim Limits) Node {
	switch {
	case from == NodeCheckGroundedness && out == OutcomeUngrounded:
		if s.HallucinationRetries < lim.MaxHallucinationRetries {
			return NodeGenerate
		}
		// Retry budget exhausted: terminate with the best-available answer.
		return NodeDone
	case from == NodeCheckUsefulness && out == OutcomeNotUseful:
		if s.RewriteCount < lim.MaxQueryRewrites {
			return NodeRewriteQuery
		}
		// Rewrite budget exhausted: terminate with the current answer.
		return NodeDone
	}

	if next, ok := transitions[edge{from, out}]; ok {
		return next
	}
	return NodeFailed
}
