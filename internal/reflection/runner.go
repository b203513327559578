package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"selfrag-orchestrator/internal/domain"
)

// Runner drives the reflection graph: it executes nodes sequentially,
// routes on their outcomes, and enforces the retry, rewrite, and step
// budgets. One Runner serves many concurrent runs; each run owns its own
// RunState and no state is shared between runs.
type Runner struct {
	retriever domain.Retriever
	judge     domain.Judge
	generator domain.Generator
	limits    Limits
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewRunner wires the three external capabilities into a graph runner.
// Zero fields in limits fall back to the package defaults.
func NewRunner(
	retriever domain.Retriever,
	judge domain.Judge,
	generator domain.Generator,
	limits Limits,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		retriever: retriever,
		judge:     judge,
		generator: generator,
		limits:    limits.withDefaults(),
		logger:    logger,
		tracer:    otel.Tracer("selfrag-orchestrator/reflection"),
	}
}

// Run executes the graph for one question. Non-zero fields in overrides
// replace the runner's configured limits for this run only.
//
// A run that reaches done returns a Result; a run that reaches failed
// returns a *domain.NodeError naming the node and error kind. Budget
// exhaustion inside the reflection loops is not a failure: the run
// terminates normally with the best-available answer, annotated.
func (r *Runner) Run(ctx context.Context, question string, overrides Limits) (*Result, error) {
	lim := r.mergeLimits(overrides)
	s := NewRunState(question)
	start := time.Now()

	r.logger.Info("run_started",
		slog.String("run_id", s.RunID),
		slog.Int("top_k", lim.TopK),
		slog.Int("step_budget", lim.StepBudget))

	node := NodeDecideRetrieval
	annotation := ""

	for {
		// Cooperative cancellation: observed between node executions only,
		// never mid-node.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %s cancelled before %s: %w", s.RunID, node, err)
		}

		if s.Steps >= lim.StepBudget {
			// The per-loop counters bound every legal cycle, so hitting
			// the global budget means the routing table is cycling.
			return nil, r.fail(s, node, domain.ErrStepBudgetExceeded)
		}

		out, err := r.execStep(ctx, node, s, lim)
		if err != nil {
			return nil, r.fail(s, node, err)
		}
		s.Steps++

		next := Route(node, out, s, lim)

		switch {
		case node == NodeCheckGroundedness && next == NodeGenerate:
			s.HallucinationRetries++
			s.Revise = true
		case node == NodeCheckGroundedness && out == OutcomeUngrounded && next == NodeDone:
			annotation = annotationRetryBudget
		case node == NodeCheckUsefulness && next == NodeRewriteQuery:
			s.RewriteCount++
		case node == NodeCheckUsefulness && out == OutcomeNotUseful && next == NodeDone:
			annotation = annotationRewriteBudget
		}

		r.logger.Debug("transition",
			slog.String("run_id", s.RunID),
			slog.String("from", string(node)),
			slog.String("outcome", string(out)),
			slog.String("to", string(next)),
			slog.Int("step", s.Steps))

		if next == NodeFailed {
			return nil, r.fail(s, node, fmt.Errorf("no route from %s on outcome %s", node, out))
		}
		if next == NodeDone {
			result := buildResult(s, annotation, time.Since(start))
			r.logger.Info("run_finished",
				slog.String("run_id", s.RunID),
				slog.Int("steps", result.Steps),
				slog.Int("retries", result.HallucinationRetries),
				slog.Int("rewrites", result.RewriteCount),
				slog.Bool("verified", result.Verified))
			return result, nil
		}
		node = next
	}
}

// execStep wraps one node execution in a span.
func (r *Runner) execStep(ctx context.Context, node Node, s *RunState, lim Limits) (Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "reflection."+string(node),
		trace.WithAttributes(
			attribute.String("run.id", s.RunID),
			attribute.Int("run.step", s.Steps),
		))
	defer span.End()

	out, err := r.execNode(ctx, node, s, lim)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	span.SetAttributes(attribute.String("run.outcome", string(out)))
	return out, nil
}

func (r *Runner) fail(s *RunState, node Node, err error) *domain.NodeError {
	nodeErr := domain.NewNodeError(string(node), err)
	r.logger.Error("run_failed",
		slog.String("run_id", s.RunID),
		slog.String("node", nodeErr.Node),
		slog.String("kind", string(nodeErr.Kind)),
		slog.String("error", err.Error()),
		slog.Int("steps", s.Steps))
	return nodeErr
}

func (r *Runner) mergeLimits(overrides Limits) Limits {
	lim := r.limits
	if overrides.TopK != 0 {
		lim.TopK = overrides.TopK
	}
	if overrides.MaxHallucinationRetries != 0 {
		lim.MaxHallucinationRetries = overrides.MaxHallucinationRetries
	}
	if overrides.MaxQueryRewrites != 0 {
		lim.MaxQueryRewrites = overrides.MaxQueryRewrites
	}
	if overrides.StepBudget != 0 {
		lim.StepBudget = overrides.StepBudget
	}
	return lim
}
