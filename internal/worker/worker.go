package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/infra/logger"
	"selfrag-orchestrator/internal/usecase"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	jobTimeout          = 60 * time.Second
	initialBackoff      = 1 * time.Second
	maxBackoff          = 5 * time.Minute
)

// JobTypeIndexDocument ingests a document payload into the passage index.
const JobTypeIndexDocument = "index_document"

type JobWorker struct {
	jobRepo      domain.IndexJobRepository
	indexUsecase usecase.IndexDocumentUsecase
	logger       *slog.Logger
	ctxLog       *logger.ContextLogger
	stopChan     chan struct{}
	backoff      time.Duration
}

func NewJobWorker(
	jobRepo domain.IndexJobRepository,
	indexUsecase usecase.IndexDocumentUsecase,
	log *slog.Logger,
) *JobWorker {
	return &JobWorker{
		jobRepo:      jobRepo,
		indexUsecase: indexUsecase,
		logger:       log,
		ctxLog:       logger.NewContextLogger("selfrag-orchestrator", log),
		stopChan:     make(chan struct{}),
	}
}

func (w *JobWorker) Start() {
	w.logger.Info("Starting JobWorker")
	go w.run()
}

func (w *JobWorker) Stop() {
	w.logger.Info("Stopping JobWorker")
	close(w.stopChan)
}

func (w *JobWorker) run() {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNextJob()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(defaultPollInterval)
			}
		}
	}
}

func (w *JobWorker) processNextJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job, err := w.jobRepo.AcquireNextJob(ctx)
	if err != nil {
		w.logger.Error("Failed to acquire next job", "error", err)
		return
	}
	if job == nil {
		return // No jobs
	}

	// Carry job identifiers in the context so every record below, and any
	// context-aware handler downstream, names the job it belongs to.
	jctx := logger.WithJobID(ctx, job.ID.String())
	jctx = logger.WithPipelineStage(jctx, job.JobType)
	jlog := w.ctxLog.WithContext(jctx)

	jlog.Info("Processing job")

	var processErr error

	switch job.JobType {
	case JobTypeIndexDocument:
		processErr = w.processIndexDocument(jctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.JobType)
	}

	status := "completed"
	var errMsg *string
	if processErr != nil {
		status = "failed"
		msg := processErr.Error()
		errMsg = &msg
		w.backoff = w.nextBackoff(w.backoff)
		jlog.Warn("Worker backing off", "backoff", w.backoff, "error", processErr)
	} else {
		w.backoff = 0
		jlog.Info("Job completed")
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, status, errMsg); err != nil {
		jlog.Error("Failed to update job status", "error", err)
	}
}

func (w *JobWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (w *JobWorker) processIndexDocument(ctx context.Context, job *domain.IndexJob) error {
	payload := job.Payload
	source, ok := payload["source"].(string)
	if !ok {
		return fmt.Errorf("missing or invalid source")
	}
	body, ok := payload["body"].(string)
	if !ok {
		return fmt.Errorf("missing or invalid body")
	}

	return w.indexUsecase.Upsert(logger.WithSource(ctx, source), source, body)
}
