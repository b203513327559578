package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/usecase"
	"selfrag-orchestrator/internal/worker"
)

type Handler struct {
	askUsecase usecase.AskQuestionUsecase
	jobRepo    domain.IndexJobRepository
}

func NewHandler(askUsecase usecase.AskQuestionUsecase, jobRepo domain.IndexJobRepository) *Handler {
	return &Handler{
		askUsecase: askUsecase,
		jobRepo:    jobRepo,
	}
}

// RegisterRoutes attaches the API endpoints to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/ask", h.Ask)
	e.POST("/internal/index", h.EnqueueIndex)
}

type AskRequest struct {
	Question                string `json:"question"`
	TopK                    int    `json:"top_k,omitempty"`
	MaxHallucinationRetries int    `json:"max_hallucination_retries,omitempty"`
	MaxQueryRewrites        int    `json:"max_query_rewrites,omitempty"`
	StepBudget              int    `json:"step_budget,omitempty"`
}

type AskSource struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

type AskResponse struct {
	RunID            string      `json:"run_id"`
	Question         string      `json:"question"`
	Answer           string      `json:"answer,omitempty"`
	FinalMessage     string      `json:"final_message,omitempty"`
	Verified         bool        `json:"verified"`
	Annotation       string      `json:"annotation,omitempty"`
	NeedRetrieval    bool        `json:"need_retrieval"`
	NumDocsRetrieved int         `json:"num_docs_retrieved"`
	NumRelevantDocs  int         `json:"num_relevant_docs"`
	Sources          []AskSource `json:"sources"`
	Support          string      `json:"support,omitempty"`
	Evidence         []string    `json:"evidence,omitempty"`
	Useful           bool        `json:"useful"`
	UseReason        string      `json:"use_reason,omitempty"`
	Retries          int         `json:"retries"`
	RewriteTries     int         `json:"rewrite_tries"`
	Steps            int         `json:"steps"`
	ElapsedSeconds   float64     `json:"elapsed_seconds"`
}

type ErrorDetail struct {
	Node    string `json:"node,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Answer a question via the self-reflective pipeline
// (POST /v1/ask)
func (h *Handler) Ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if strings.TrimSpace(req.Question) == "" {
		return badRequest(c, "question is required")
	}
	if req.TopK < 0 || req.MaxHallucinationRetries < 0 || req.MaxQueryRewrites < 0 || req.StepBudget < 0 {
		return badRequest(c, "limit overrides must be non-negative")
	}

	output, err := h.askUsecase.Execute(c.Request().Context(), usecase.AskQuestionInput{
		Question:                req.Question,
		TopK:                    req.TopK,
		MaxHallucinationRetries: req.MaxHallucinationRetries,
		MaxQueryRewrites:        req.MaxQueryRewrites,
		StepBudget:              req.StepBudget,
	})
	if err != nil {
		var nodeErr *domain.NodeError
		if errors.As(err, &nodeErr) {
			return c.JSON(http.StatusBadGateway, ErrorResponse{Error: ErrorDetail{
				Node:    nodeErr.Node,
				Kind:    string(nodeErr.Kind),
				Message: err.Error(),
			}})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
			Kind:    string(domain.KindOf(err)),
			Message: err.Error(),
		}})
	}

	sources := make([]AskSource, 0, len(output.Sources))
	for _, s := range output.Sources {
		sources = append(sources, AskSource{ID: s.ID, Source: s.Source})
	}

	return c.JSON(http.StatusOK, AskResponse{
		RunID:            output.RunID,
		Question:         output.Question,
		Answer:           output.Answer,
		FinalMessage:     output.FinalMessage,
		Verified:         output.Verified,
		Annotation:       output.Annotation,
		NeedRetrieval:    output.NeedsRetrieval,
		NumDocsRetrieved: output.NumRetrieved,
		NumRelevantDocs:  output.NumRelevant,
		Sources:          sources,
		Support:          output.Support,
		Evidence:         output.Evidence,
		Useful:           output.Useful,
		UseReason:        output.UseReason,
		Retries:          output.HallucinationRetries,
		RewriteTries:     output.RewriteCount,
		Steps:            output.Steps,
		ElapsedSeconds:   output.ElapsedSeconds,
	})
}

type EnqueueIndexRequest struct {
	Source string `json:"source"`
	Body   string `json:"body"`
}

type EnqueueIndexResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Enqueue a document for background ingestion
// (POST /internal/index)
func (h *Handler) EnqueueIndex(c echo.Context) error {
	var req EnqueueIndexRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if strings.TrimSpace(req.Source) == "" {
		return badRequest(c, "missing source")
	}
	if strings.TrimSpace(req.Body) == "" {
		return badRequest(c, "missing body")
	}

	job := &domain.IndexJob{
		ID:      uuid.New(),
		JobType: worker.JobTypeIndexDocument,
		Payload: map[string]interface{}{
			"source": req.Source,
			"body":   req.Body,
		},
		Status:    "new",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := h.jobRepo.Enqueue(c.Request().Context(), job); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
			Kind:    string(domain.KindUnknown),
			Message: err.Error(),
		}})
	}

	return c.JSON(http.StatusAccepted, EnqueueIndexResponse{
		JobID:  job.ID.String(),
		Status: "queued",
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Kind:    "invalid_request",
		Message: msg,
	}})
}
