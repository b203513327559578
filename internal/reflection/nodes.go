package reflection

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"selfrag-orchestrator/internal/domain"
)

// relevanceGradeConcurrency bounds the per-document judgment fan-out.
const relevanceGradeConcurrency = 4

// execNode runs one node against the state and reports its outcome. The
// executing node is the only writer of s for the duration of the call.
func (r *Runner) execNode(ctx context.Context, node Node, s *RunState, lim Limits) (Outcome, error) {
	switch node {
	case NodeDecideRetrieval:
		return r.decideRetrieval(ctx, s)
	case NodeDirectAnswer:
		return r.directAnswer(ctx, s)
	case NodeRetrieve:
		return r.retrieve(ctx, s, lim)
	case NodeGradeRelevance:
		return r.gradeRelevance(ctx, s)
	case NodeNoRelevantDoc:
		return r.noRelevantDoc(s)
	case NodeGenerate:
		return r.generate(ctx, s)
	case NodeCheckGroundedness:
		return r.checkGroundedness(ctx, s)
	case NodeCheckUsefulness:
		return r.checkUsefulness(ctx, s)
	case NodeRewriteQuery:
		return r.rewriteQuery(ctx, s)
	}
	return OutcomeAdvance, fmt.Errorf("no handler for node %s", node)
}

func (r *Runner) decideRetrieval(ctx context.Context, s *RunState) (Outcome, error) {
	needed, err := r.judge.DecideRetrieval(ctx, s.Question)
	if err != nil {
		return "", err
	}
	s.NeedsRetrieval = needed
	if needed {
		return OutcomeRetrievalNeeded, nil
	}
	return OutcomeNoRetrievalNeeded, nil
}

func (r *Runner) directAnswer(ctx context.Context, s *RunState) (Outcome, error) {
	answer, err := r.generator.Generate(ctx, directAnswerPrompt(s.Question))
	if err != nil {
		return "", err
	}
	s.Answer = answer
	return OutcomeAdvance, nil
}

func (r *Runner) retrieve(ctx context.Context, s *RunState, lim Limits) (Outcome, error) {
	docs, err := r.retriever.Retrieve(ctx, s.RewrittenQuestion, lim.TopK)
	if err != nil {
		return "", err
	}
	// Replaced wholesale; the relevant subset from a previous retrieval
	// must never survive a re-retrieve.
	s.Documents = docs
	s.RelevantDocuments = nil
	return OutcomeAdvance, nil
}

// gradeRelevance judges each retrieved document independently against the
// original question. Per-document calls fan out concurrently but the
// relevant subset preserves retrieval order.
func (r *Runner) gradeRelevance(ctx context.Context, s *RunState) (Outcome, error) {
	verdicts := make([]bool, len(s.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(relevanceGradeConcurrency)
	for i, doc := range s.Documents {
		g.Go(func() error {
			relevant, err := r.judge.GradeRelevance(gctx, s.Question, doc)
			if err != nil {
				return err
			}
			verdicts[i] = relevant
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	relevant := make([]domain.Document, 0, len(s.Documents))
	for i, doc := range s.Documents {
		if verdicts[i] {
			relevant = append(relevant, doc)
		}
	}
	s.RelevantDocuments = relevant

	r.logger.Info("relevance_graded",
		slog.String("run_id", s.RunID),
		slog.Int("retrieved", len(s.Documents)),
		slog.Int("relevant", len(relevant)))

	if len(relevant) == 0 {
		return OutcomeNoneRelevant, nil
	}
	return OutcomeSomeRelevant, nil
}

func (r *Runner) noRelevantDoc(s *RunState) (Outcome, error) {
	s.FinalMessage = FallbackNoRelevantDocument
	s.Answer = ""
	return OutcomeAdvance, nil
}

// generate produces an answer from the relevant documents. When re-entered
// on the groundedness retry edge it revises the previous answer instead.
func (r *Runner) generate(ctx context.Context, s *RunState) (Outcome, error) {
	context_ := joinContext(s.RelevantDocuments)

	var prompt string
	if s.Revise && s.Answer != "" {
		prompt = revisePrompt(s.Question, s.Answer, context_)
	} else {
		prompt = generateFromContextPrompt(s.RewrittenQuestion, context_)
	}
	s.Revise = false

	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	s.Answer = answer
	return OutcomeAdvance, nil
}

func (r *Runner) checkGroundedness(ctx context.Context, s *RunState) (Outcome, error) {
	verdict, err := r.judge.CheckSupport(ctx, s.Question, s.Answer, joinContext(s.RelevantDocuments))
	if err != nil {
		return "", err
	}
	s.Support = verdict.Level
	s.Evidence = verdict.Evidence

	if verdict.Level == domain.SupportFull {
		return OutcomeGrounded, nil
	}
	return OutcomeUngrounded, nil
}

// checkUsefulness judges the answer against the ORIGINAL question, not the
// rewritten retrieval query: usefulness is about user intent.
func (r *Runner) checkUsefulness(ctx context.Context, s *RunState) (Outcome, error) {
	verdict, err := r.judge.CheckUsefulness(ctx, s.Question, s.Answer)
	if err != nil {
		return "", err
	}
	s.Useful = verdict.Useful
	s.UseReason = verdict.Reason

	if verdict.Useful {
		return OutcomeUseful, nil
	}
	return OutcomeNotUseful, nil
}

func (r *Runner) rewriteQuery(ctx context.Context, s *RunState) (Outcome, error) {
	query, err := r.judge.RewriteQuery(ctx, s.Question, s.RewrittenQuestion, s.Answer)
	if err != nil {
		return "", err
	}

	r.logger.Info("query_rewritten",
		slog.String("run_id", s.RunID),
		slog.String("previous", s.RewrittenQuestion),
		slog.String("rewritten", query))

	s.RewrittenQuestion = query
	s.Documents = nil
	s.RelevantDocuments = nil
	return OutcomeAdvance, nil
}
