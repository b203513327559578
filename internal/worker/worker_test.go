package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/infra/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// --- stubs ---

type stubJobRepo struct {
	mu       sync.Mutex
	jobs     []*domain.IndexJob // jobs to return from AcquireNextJob (consumed FIFO)
	err      error
	statuses []string
}

func (s *stubJobRepo) Enqueue(ctx context.Context, job *domain.IndexJob) error { return nil }

func (s *stubJobRepo) AcquireNextJob(ctx context.Context) (*domain.IndexJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.jobs) == 0 {
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

type stubIndexUsecase struct {
	mu             sync.Mutex
	capturedCtx    context.Context
	capturedSource string
	capturedBody   string
	returnErr      error
}

func (s *stubIndexUsecase) Upsert(ctx context.Context, source, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturedCtx = ctx
	s.capturedSource = source
	s.capturedBody = body
	return s.returnErr
}

func (s *stubIndexUsecase) Purge(ctx context.Context, source string) error {
	return nil
}

func makeJob() *domain.IndexJob {
	return &domain.IndexJob{
		ID:      uuid.New(),
		JobType: JobTypeIndexDocument,
		Payload: map[string]interface{}{
			"source": "policies.txt",
			"body":   "Refunds are accepted within 30 days.",
		},
		Status: "processing",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- tests ---

func TestProcessNextJob_ContextHasTimeout(t *testing.T) {
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IndexJob{makeJob()}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	assert.NotNil(t, uc.capturedCtx, "Upsert should have been called")
	deadline, ok := uc.capturedCtx.Deadline()
	assert.True(t, ok, "context passed to Upsert must have a deadline")
	assert.WithinDuration(t, time.Now().Add(jobTimeout), deadline, 5*time.Second)
	assert.Equal(t, "policies.txt", uc.capturedSource)
	assert.Equal(t, "Refunds are accepted within 30 days.", uc.capturedBody)
}

func TestProcessNextJob_ContextCarriesJobIdentifiers(t *testing.T) {
	job := makeJob()
	uc := &stubIndexUsecase{}
	repo := &stubJobRepo{jobs: []*domain.IndexJob{job}}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	assert.NotNil(t, uc.capturedCtx, "Upsert should have been called")
	assert.Equal(t, job.ID.String(), uc.capturedCtx.Value(logger.JobIDKey))
	assert.Equal(t, JobTypeIndexDocument, uc.capturedCtx.Value(logger.PipelineKey))
	assert.Equal(t, "policies.txt", uc.capturedCtx.Value(logger.SourceKey))
}

func TestProcessNextJob_UnknownJobTypeFails(t *testing.T) {
	job := makeJob()
	job.JobType = "reticulate_splines"
	repo := &stubJobRepo{jobs: []*domain.IndexJob{job}}
	uc := &stubIndexUsecase{}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"failed"}, repo.statuses)
}

func TestProcessNextJob_MalformedPayloadFails(t *testing.T) {
	job := makeJob()
	job.Payload = map[string]interface{}{"source": "policies.txt"}
	repo := &stubJobRepo{jobs: []*domain.IndexJob{job}}
	uc := &stubIndexUsecase{}

	w := NewJobWorker(repo, uc, testLogger())
	w.processNextJob()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"failed"}, repo.statuses)
	assert.Nil(t, uc.capturedCtx, "Upsert must not run without a body")
}

func TestJobWorker_BacksOffOnConsecutiveFailures(t *testing.T) {
	repo := &stubJobRepo{
		jobs: []*domain.IndexJob{makeJob(), makeJob(), makeJob()},
	}
	uc := &stubIndexUsecase{returnErr: errors.New("embedder unreachable")}

	w := NewJobWorker(repo, uc, testLogger())

	// First failure: backoff should be initialBackoff (1s)
	w.processNextJob()
	assert.Equal(t, initialBackoff, w.backoff)

	// Second failure: backoff doubles to 2s
	w.processNextJob()
	assert.Equal(t, 2*time.Second, w.backoff)

	// Third failure: backoff doubles to 4s
	w.processNextJob()
	assert.Equal(t, 4*time.Second, w.backoff)
}

func TestJobWorker_BackoffResetsOnSuccess(t *testing.T) {
	repo := &stubJobRepo{
		jobs: []*domain.IndexJob{makeJob(), makeJob()},
	}
	uc := &stubIndexUsecase{returnErr: errors.New("fail")}

	w := NewJobWorker(repo, uc, testLogger())

	// Failure sets backoff
	w.processNextJob()
	assert.Equal(t, initialBackoff, w.backoff)

	// Now succeed
	uc.mu.Lock()
	uc.returnErr = nil
	uc.mu.Unlock()

	w.processNextJob()
	assert.Equal(t, time.Duration(0), w.backoff, "backoff should reset on success")
}

func TestJobWorker_BackoffCapsAtMax(t *testing.T) {
	w := NewJobWorker(nil, nil, testLogger())

	bo := time.Duration(0)
	for i := 0; i < 20; i++ {
		bo = w.nextBackoff(bo)
	}
	assert.Equal(t, maxBackoff, bo, "backoff must cap at maxBackoff")
	assert.LessOrEqual(t, bo, maxBackoff)
}
