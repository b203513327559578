package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfrag-orchestrator/internal/adapter/httpapi"
	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/usecase"
)

type stubAskUsecase struct {
	output *usecase.AskQuestionOutput
	err    error

	capturedInput usecase.AskQuestionInput
}

func (s *stubAskUsecase) Execute(ctx context.Context, input usecase.AskQuestionInput) (*usecase.AskQuestionOutput, error) {
	s.capturedInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

type stubJobRepo struct {
	enqueued []*domain.IndexJob
	err      error
}

func (s *stubJobRepo) Enqueue(ctx context.Context, job *domain.IndexJob) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

func (s *stubJobRepo) AcquireNextJob(ctx context.Context) (*domain.IndexJob, error) {
	return nil, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	return nil
}

func verifiedOutput() *usecase.AskQuestionOutput {
	return &usecase.AskQuestionOutput{
		RunID:          uuid.NewString(),
		Question:       "What is the refund window?",
		Answer:         "Refunds are accepted within 30 days.",
		Verified:       true,
		NeedsRetrieval: true,
		NumRetrieved:   4,
		NumRelevant:    2,
		Sources: []usecase.SourceRef{
			{ID: "p1", Source: "policies.txt"},
			{ID: "p2", Source: "policies.txt"},
		},
		Support:        string(domain.SupportFull),
		Evidence:       []string{"Refunds are accepted within 30 days."},
		Useful:         true,
		UseReason:      "directly answers the question",
		Steps:          6,
		ElapsedSeconds: 1.23,
	}
}

func newAPI(t *testing.T, ask usecase.AskQuestionUsecase, jobs domain.IndexJobRepository) *echo.Echo {
	t.Helper()
	e := echo.New()
	httpapi.NewHandler(ask, jobs).RegisterRoutes(e)
	return e
}

func loadAPISpec(t *testing.T) routers.Router {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../api/openapi.yaml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(loader.Context))
	router, err := gorillamux.NewRouter(doc)
	require.NoError(t, err)
	return router
}

// validateResponse checks the recorded response against the OpenAPI document.
func validateResponse(t *testing.T, router routers.Router, req *http.Request, rec *httptest.ResponseRecorder) {
	t.Helper()
	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rec.Code,
		Header: rec.Header(),
	}
	input.SetBodyBytes(rec.Body.Bytes())
	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input))
}

func postJSON(e *echo.Echo, path string, payload any) (*http.Request, *httptest.ResponseRecorder) {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return req, rec
}

func TestHandler_Ask_ReturnsRunResult(t *testing.T) {
	ask := &stubAskUsecase{output: verifiedOutput()}
	e := newAPI(t, ask, &stubJobRepo{})
	router := loadAPISpec(t)

	req, rec := postJSON(e, "/v1/ask", map[string]any{
		"question": "What is the refund window?",
		"top_k":    2,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	validateResponse(t, router, req, rec)

	var resp httpapi.AskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Refunds are accepted within 30 days.", resp.Answer)
	assert.True(t, resp.Verified)
	assert.Equal(t, 4, resp.NumDocsRetrieved)
	assert.Equal(t, 2, resp.NumRelevantDocs)
	assert.Len(t, resp.Sources, 2)
	assert.Equal(t, string(domain.SupportFull), resp.Support)

	assert.Equal(t, "What is the refund window?", ask.capturedInput.Question)
	assert.Equal(t, 2, ask.capturedInput.TopK)
}

func TestHandler_Ask_RejectsEmptyQuestion(t *testing.T) {
	e := newAPI(t, &stubAskUsecase{output: verifiedOutput()}, &stubJobRepo{})
	router := loadAPISpec(t)

	req, rec := postJSON(e, "/v1/ask", map[string]any{"question": "   "})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	validateResponse(t, router, req, rec)
}

func TestHandler_Ask_RejectsNegativeOverrides(t *testing.T) {
	e := newAPI(t, &stubAskUsecase{output: verifiedOutput()}, &stubJobRepo{})

	_, rec := postJSON(e, "/v1/ask", map[string]any{"question": "q", "top_k": -1})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ask_NodeErrorMapsToBadGateway(t *testing.T) {
	nodeErr := &domain.NodeError{
		Node: "retrieve",
		Kind: domain.KindRetrievalUnavailable,
		Err:  errors.New("vector store unreachable"),
	}
	e := newAPI(t, &stubAskUsecase{err: nodeErr}, &stubJobRepo{})
	router := loadAPISpec(t)

	req, rec := postJSON(e, "/v1/ask", map[string]any{"question": "q"})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	validateResponse(t, router, req, rec)

	var resp httpapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "retrieve", resp.Error.Node)
	assert.Equal(t, string(domain.KindRetrievalUnavailable), resp.Error.Kind)
}

func TestHandler_EnqueueIndex_QueuesJob(t *testing.T) {
	jobs := &stubJobRepo{}
	e := newAPI(t, &stubAskUsecase{}, jobs)
	router := loadAPISpec(t)

	req, rec := postJSON(e, "/internal/index", map[string]any{
		"source": "policies.txt",
		"body":   "Refunds are accepted within 30 days.",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	validateResponse(t, router, req, rec)

	require.Len(t, jobs.enqueued, 1)
	job := jobs.enqueued[0]
	assert.Equal(t, "index_document", job.JobType)
	assert.Equal(t, "policies.txt", job.Payload["source"])
	assert.Equal(t, "new", job.Status)
}

func TestHandler_EnqueueIndex_RejectsMissingFields(t *testing.T) {
	e := newAPI(t, &stubAskUsecase{}, &stubJobRepo{})

	_, rec := postJSON(e, "/internal/index", map[string]any{"source": "policies.txt"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	_, rec = postJSON(e, "/internal/index", map[string]any{"body": "text"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
