package reflection

import (
	"selfrag-orchestrator/internal/domain"

	"github.com/google/uuid"
)

// Node names a state in the reflection graph.
type Node string

const (
	NodeDecideRetrieval   Node = "decide_retrieval"
	NodeDirectAnswer      Node = "direct_answer"
	NodeRetrieve          Node = "retrieve"
	NodeGradeRelevance    Node = "grade_relevance"
	NodeNoRelevantDoc     Node = "no_relevant_doc"
	NodeGenerate          Node = "generate"
	NodeCheckGroundedness Node = "check_groundedness"
	NodeCheckUsefulness   Node = "check_usefulness"
	NodeRewriteQuery      Node = "rewrite_query"
	NodeDone              Node = "done"
	NodeFailed            Node = "failed"
)

// Terminal reports whether the node ends the run.
func (n Node) Terminal() bool {
	return n == NodeDone || n == NodeFailed
}

// FallbackNoRelevantDocument is the fixed final message produced when
// relevance grading leaves no usable documents.
const FallbackNoRelevantDocument = "No relevant document found."

// Limits bounds a single run. Zero values mean "use the default".
type Limits struct {
	TopK                    int
	MaxHallucinationRetries int
	MaxQueryRewrites        int
	StepBudget              int
}

const (
	DefaultTopK                    = 4
	DefaultMaxHallucinationRetries = 5
	DefaultMaxQueryRewrites        = 3
	DefaultStepBudget              = 80
)

// withDefaults fills in zero fields. Negative values are treated as zero
// budgets, not defaults, so a caller can disable a loop entirely.
func (l Limits) withDefaults() Limits {
	if l.TopK == 0 {
		l.TopK = DefaultTopK
	}
	if l.MaxHallucinationRetries == 0 {
		l.MaxHallucinationRetries = DefaultMaxHallucinationRetries
	}
	if l.MaxQueryRewrites == 0 {
		l.MaxQueryRewrites = DefaultMaxQueryRewrites
	}
	if l.StepBudget == 0 {
		l.StepBudget = DefaultStepBudget
	}
	return l
}

// RunState is the mutable record threaded through one run of the graph.
// It is owned by exactly one run; the executing node is the single writer.
type RunState struct {
	RunID    string
	Question string

	// RewrittenQuestion is the current working retrieval query. It equals
	// Question until a rewrite occurs.
	RewrittenQuestion string

	// Documents is the latest retrieval result, replaced wholesale on each
	// retrieve. RelevantDocuments is always a subset of Documents.
	Documents         []domain.Document
	RelevantDocuments []domain.Document

	Answer         string
	NeedsRetrieval bool

	HallucinationRetries int
	RewriteCount         int

	// FinalMessage short-circuits the run when set; at termination exactly
	// one of Answer and FinalMessage is non-empty.
	FinalMessage string

	// Revise marks the next generate execution as a revision of Answer
	// rather than a fresh generation. Set on the groundedness retry edge.
	Revise bool

	// Verdict metadata carried into the result surface.
	Support   domain.SupportLevel
	Evidence  []string
	Useful    bool
	UseReason string

	Steps int
}

// NewRunState creates the state for a fresh run of question.
func NewRunState(question string) *RunState {
	return &RunState{
		RunID:             uuid.NewString(),
		Question:          question,
		RewrittenQuestion: question,
	}
}
