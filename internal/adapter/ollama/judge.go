package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"selfrag-orchestrator/internal/domain"
)

// JSON schemas passed as the chat `format` so the model is constrained to
// the expected verdict shape. Coercion failures still happen (truncated or
// off-schema output) and surface as MalformedVerdict.

var retrieveDecisionFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"should_retrieve": map[string]interface{}{"type": "boolean"},
	},
	"required": []string{"should_retrieve"},
}

var relevanceDecisionFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"is_relevant": map[string]interface{}{"type": "boolean"},
	},
	"required": []string{"is_relevant"},
}

var supportDecisionFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"supported": map[string]interface{}{
			"type": "string",
			"enum": []string{"fully_supported", "partially_supported", "not_supported"},
		},
		"evidence": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"supported", "evidence"},
}

var usefulnessDecisionFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"useful": map[string]interface{}{"type": "boolean"},
		"reason": map[string]interface{}{"type": "string"},
	},
	"required": []string{"useful", "reason"},
}

var rewriteDecisionFormat = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"retrieval_query": map[string]interface{}{"type": "string"},
	},
	"required": []string{"retrieval_query"},
}

// Judge implements domain.Judge on top of Ollama structured output. Raw
// model text never leaves this type: every method parses into its verdict
// shape or fails with MalformedVerdict.
type Judge struct {
	client *Client
}

// NewJudge wraps a chat client as the judgment service.
func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) DecideRetrieval(ctx context.Context, question string) (bool, error) {
	prompt := fmt.Sprintf(`You are an assistant that decides whether retrieval is needed.
Return JSON: {"should_retrieve": bool}

Guidelines:
- should_retrieve=true if answering requires specific facts, citations or info likely not in the model.
- should_retrieve=false for general explanations, definitions, or reasoning that doesn't need sources.
- If unsure, lean towards should_retrieve=true to ensure accuracy.

Question: %s`, question)

	raw, err := j.client.chat(ctx, prompt, retrieveDecisionFormat, judgmentTemperature)
	if err != nil {
		return false, fmt.Errorf("decide retrieval: %w: %w", domain.ErrJudgmentUnavailable, err)
	}

	var decision struct {
		ShouldRetrieve *bool `json:"should_retrieve"`
	}
	if err := coerce(raw, &decision); err != nil || decision.ShouldRetrieve == nil {
		return false, malformed("retrieve decision", raw, err)
	}
	return *decision.ShouldRetrieve, nil
}

func (j *Judge) GradeRelevance(ctx context.Context, question string, doc domain.Document) (bool, error) {
	prompt := fmt.Sprintf(`You are judging document relevance.
Return JSON: {"is_relevant": bool}

A document is relevant if it contains information that directly helps answer the question.

Question:
%s

Document:
%s`, question, doc.Text)

	raw, err := j.client.chat(ctx, prompt, relevanceDecisionFormat, judgmentTemperature)
	if err != nil {
		return false, fmt.Errorf("grade relevance: %w: %w", domain.ErrJudgmentUnavailable, err)
	}

	var decision struct {
		IsRelevant *bool `json:"is_relevant"`
	}
	if err := coerce(raw, &decision); err != nil || decision.IsRelevant == nil {
		return false, malformed("relevance decision", raw, err)
	}
	return *decision.IsRelevant, nil
}

func (j *Judge) CheckSupport(ctx context.Context, question, answer, context_ string) (domain.SupportVerdict, error) {
	prompt := fmt.Sprintf(`You are verifying whether the ANSWER is supported by the CONTEXT.
Return JSON with keys: supported, evidence.
supported must be one of: fully_supported, partially_supported, not_supported.

How to decide:
- fully_supported: every meaningful claim is explicitly supported by CONTEXT, and the ANSWER
  introduces no qualitative or interpretive wording absent from CONTEXT.
- partially_supported: the core facts hold, BUT the ANSWER includes any abstraction,
  interpretation, or qualitative phrasing not explicitly stated in CONTEXT.
- not_supported: the key claims are not supported by CONTEXT.

Rules:
- Be strict: any unsupported qualitative phrasing means partially_supported.
- Evidence: include up to 3 short direct quotes from CONTEXT that support the supported parts.
- Do not use outside knowledge.

Question:
%s

Answer:
%s

Context:
%s`, question, answer, context_)

	raw, err := j.client.chat(ctx, prompt, supportDecisionFormat, judgmentTemperature)
	if err != nil {
		return domain.SupportVerdict{}, fmt.Errorf("check support: %w: %w", domain.ErrJudgmentUnavailable, err)
	}

	var decision struct {
		Supported string   `json:"supported"`
		Evidence  []string `json:"evidence"`
	}
	if err := coerce(raw, &decision); err != nil {
		return domain.SupportVerdict{}, malformed("support decision", raw, err)
	}
	level := domain.SupportLevel(decision.Supported)
	if !level.Valid() {
		return domain.SupportVerdict{}, malformed("support decision",
			raw, fmt.Errorf("unknown support level %q", decision.Supported))
	}
	return domain.SupportVerdict{Level: level, Evidence: decision.Evidence}, nil
}

func (j *Judge) CheckUsefulness(ctx context.Context, question, answer string) (domain.UsefulnessVerdict, error) {
	prompt := fmt.Sprintf(`You are judging whether the ANSWER addresses the QUESTION's intent.
Return JSON: {"useful": bool, "reason": "short reason in 1 line"}

- useful=true when the answer actually resolves what the user asked.
- useful=false when the answer is vague, off-topic, or only restates the question.

Question:
%s

Answer:
%s`, question, answer)

	raw, err := j.client.chat(ctx, prompt, usefulnessDecisionFormat, judgmentTemperature)
	if err != nil {
		return domain.UsefulnessVerdict{}, fmt.Errorf("check usefulness: %w: %w", domain.ErrJudgmentUnavailable, err)
	}

	var decision struct {
		Useful *bool  `json:"useful"`
		Reason string `json:"reason"`
	}
	if err := coerce(raw, &decision); err != nil || decision.Useful == nil {
		return domain.UsefulnessVerdict{}, malformed("usefulness decision", raw, err)
	}
	return domain.UsefulnessVerdict{Useful: *decision.Useful, Reason: decision.Reason}, nil
}

func (j *Judge) RewriteQuery(ctx context.Context, question, previousQuery, answer string) (string, error) {
	prompt := fmt.Sprintf(`Rewrite the retrieval query to surface better passages from a vector index.
Return JSON: {"retrieval_query": "..."}

Rules:
- 6 to 16 words, declarative keyword style.
- Preserve named entities from the original question.
- Include 2-5 concrete keywords the previous query lacked.
- Do not answer the question; only produce the query.

Original question:
%s

Previous retrieval query:
%s

Answer the previous query led to (judged not useful):
%s`, question, previousQuery, answer)

	raw, err := j.client.chat(ctx, prompt, rewriteDecisionFormat, judgmentTemperature)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w: %w", domain.ErrJudgmentUnavailable, err)
	}

	var decision struct {
		RetrievalQuery string `json:"retrieval_query"`
	}
	if err := coerce(raw, &decision); err != nil || strings.TrimSpace(decision.RetrievalQuery) == "" {
		return "", malformed("rewrite decision", raw, err)
	}
	return strings.TrimSpace(decision.RetrievalQuery), nil
}

// coerce parses structured model output into the expected shape.
func coerce(raw string, v interface{}) error {
	return json.Unmarshal([]byte(raw), v)
}

func malformed(what, raw string, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("missing required field")
	}
	return fmt.Errorf("%s: %w: %v (raw: %.120s)", what, domain.ErrMalformedVerdict, cause, raw)
}

var _ domain.Judge = (*Judge)(nil)
