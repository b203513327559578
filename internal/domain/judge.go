package domain

import "context"

// Judge is the external judgment capability. Every method issues a single
// structured-output LLM call and returns a typed verdict; the caller never
// sees raw model text. Failures wrap ErrJudgmentUnavailable (transport or
// backend error) or ErrMalformedVerdict (output could not be coerced to the
// expected shape).
type Judge interface {
	// DecideRetrieval reports whether external document lookup is needed
	// to answer the question.
	DecideRetrieval(ctx context.Context, question string) (bool, error)

	// GradeRelevance judges a single document against the question.
	GradeRelevance(ctx context.Context, question string, doc Document) (bool, error)

	// CheckSupport verifies that the answer's claims are backed by the
	// supplied context.
	CheckSupport(ctx context.Context, question, answer, context_ string) (SupportVerdict, error)

	// CheckUsefulness judges whether the answer addresses the question's
	// intent. The question passed here is always the original user
	// question, never a rewritten retrieval query.
	CheckUsefulness(ctx context.Context, question, answer string) (UsefulnessVerdict, error)

	// RewriteQuery produces a retrieval query optimized for vector search,
	// informed by the previous query and the unhelpful answer it led to.
	RewriteQuery(ctx context.Context, question, previousQuery, answer string) (string, error)
}
