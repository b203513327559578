package reflection

import (
	"time"

	"selfrag-orchestrator/internal/domain"
)

// DocumentRef points a caller at a passage that backed the answer.
type DocumentRef struct {
	ID     string
	Source string
}

// Result is the terminal output of a successful run (one that reached done).
// Exactly one of Answer and FinalMessage is non-empty.
type Result struct {
	RunID    string
	Question string

	Answer       string
	FinalMessage string

	// Verified is true when the answer passed both the groundedness and
	// usefulness checks. Annotation explains an unverified answer that was
	// kept because a reflection budget ran out.
	Verified   bool
	Annotation string

	NeedsRetrieval    bool
	RetrievedCount    int
	RelevantCount     int
	RelevantDocuments []DocumentRef

	Support   domain.SupportLevel
	Evidence  []string
	Useful    bool
	UseReason string

	HallucinationRetries int
	RewriteCount         int
	Steps                int
	Elapsed              time.Duration
}

const (
	annotationRetryBudget   = "unverified: hallucination retry budget exhausted"
	annotationRewriteBudget = "unverified: query rewrite budget exhausted"
)

// buildResult snapshots the terminal state into an immutable result value.
func buildResult(s *RunState, annotation string, elapsed time.Duration) *Result {
	refs := make([]DocumentRef, 0, len(s.RelevantDocuments))
	for _, d := range s.RelevantDocuments {
		refs = append(refs, DocumentRef{ID: d.ID, Source: d.Source})
	}

	verified := annotation == "" &&
		s.NeedsRetrieval &&
		s.Support == domain.SupportFull &&
		s.Useful

	return &Result{
		RunID:                s.RunID,
		Question:             s.Question,
		Answer:               s.Answer,
		FinalMessage:         s.FinalMessage,
		Verified:             verified,
		Annotation:           annotation,
		NeedsRetrieval:       s.NeedsRetrieval,
		RetrievedCount:       len(s.Documents),
		RelevantCount:        len(s.RelevantDocuments),
		RelevantDocuments:    refs,
		Support:              s.Support,
		Evidence:             s.Evidence,
		Useful:               s.Useful,
		UseReason:            s.UseReason,
		HallucinationRetries: s.HallucinationRetries,
		RewriteCount:         s.RewriteCount,
		Steps:                s.Steps,
		Elapsed:              elapsed,
	}
}
