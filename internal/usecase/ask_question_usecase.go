package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/reflection"
)

// AskQuestionInput carries the question plus optional per-run overrides.
// Zero overrides mean "use the configured defaults".
type AskQuestionInput struct {
	Question                string
	TopK                    int
	MaxHallucinationRetries int
	MaxQueryRewrites        int
	StepBudget              int
}

// SourceRef identifies a passage that backed the answer.
type SourceRef struct {
	ID     string
	Source string
}

// AskQuestionOutput is the normalized run result returned to API clients.
// Exactly one of Answer and FinalMessage is non-empty.
type AskQuestionOutput struct {
	RunID        string
	Question     string
	Answer       string
	FinalMessage string
	Verified     bool
	Annotation   string

	NeedsRetrieval bool
	NumRetrieved   int
	NumRelevant    int
	Sources        []SourceRef

	Support   string
	Evidence  []string
	Useful    bool
	UseReason string

	HallucinationRetries int
	RewriteCount         int
	Steps                int
	ElapsedSeconds       float64
}

// AskQuestionUsecase runs the reflection graph for one question.
type AskQuestionUsecase interface {
	Execute(ctx context.Context, input AskQuestionInput) (*AskQuestionOutput, error)
}

type askQuestionUsecase struct {
	runner *reflection.Runner
	logger *slog.Logger
}

// NewAskQuestionUsecase wraps a graph runner as the run entry point.
func NewAskQuestionUsecase(runner *reflection.Runner, logger *slog.Logger) AskQuestionUsecase {
	return &askQuestionUsecase{runner: runner, logger: logger}
}

func (u *askQuestionUsecase) Execute(ctx context.Context, input AskQuestionInput) (*AskQuestionOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	overrides := reflection.Limits{
		TopK:                    input.TopK,
		MaxHallucinationRetries: input.MaxHallucinationRetries,
		MaxQueryRewrites:        input.MaxQueryRewrites,
		StepBudget:              input.StepBudget,
	}

	start := time.Now()
	result, err := u.runner.Run(ctx, question, overrides)
	if err != nil {
		var nodeErr *domain.NodeError
		if errors.As(err, &nodeErr) {
			u.logger.Warn("ask_run_failed",
				slog.String("node", nodeErr.Node),
				slog.String("kind", string(nodeErr.Kind)))
		}
		return nil, err
	}

	sources := make([]SourceRef, 0, len(result.RelevantDocuments))
	for _, ref := range result.RelevantDocuments {
		sources = append(sources, SourceRef{ID: ref.ID, Source: ref.Source})
	}

	return &AskQuestionOutput{
		RunID:                result.RunID,
		Question:             result.Question,
		Answer:               result.Answer,
		FinalMessage:         result.FinalMessage,
		Verified:             result.Verified,
		Annotation:           result.Annotation,
		NeedsRetrieval:       result.NeedsRetrieval,
		NumRetrieved:         result.RetrievedCount,
		NumRelevant:          result.RelevantCount,
		Sources:              sources,
		Support:              string(result.Support),
		Evidence:             result.Evidence,
		Useful:               result.Useful,
		UseReason:            result.UseReason,
		HallucinationRetries: result.HallucinationRetries,
		RewriteCount:         result.RewriteCount,
		Steps:                result.Steps,
		ElapsedSeconds:       time.Since(start).Seconds(),
	}, nil
}
