package di

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"selfrag-orchestrator/internal/adapter/httpapi"
	"selfrag-orchestrator/internal/adapter/ollama"
	"selfrag-orchestrator/internal/adapter/pgstore"
	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/infra/config"
	"selfrag-orchestrator/internal/infra/httpclient"
	"selfrag-orchestrator/internal/reflection"
	"selfrag-orchestrator/internal/usecase"
	"selfrag-orchestrator/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	PassageRepo domain.PassageRepository
	JobRepo     domain.IndexJobRepository

	// Usecases
	AskUsecase   usecase.AskQuestionUsecase
	IndexUsecase usecase.IndexDocumentUsecase

	// Worker
	Worker *worker.JobWorker

	// HTTP handler
	Handler *httpapi.Handler
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Repositories
	passageRepo := pgstore.NewPassageRepository(pool)
	jobRepo := pgstore.NewIndexJobRepository(pool)
	txManager := pgstore.NewPostgresTransactionManager(pool)

	// Shared HTTP client with connection pooling for the Ollama backend
	ollamaHTTP := httpclient.NewPooledClient(cfg.OllamaTimeout)

	// One rate limiter shared by the judgment and generation clients so
	// combined traffic stays under the backend's capacity.
	limiter := rate.NewLimiter(rate.Limit(cfg.OllamaRPS), cfg.OllamaRPS)

	judgmentClient := ollama.NewClient(cfg.OllamaURL, cfg.JudgmentModel, ollamaHTTP, limiter, log)
	generationClient := ollama.NewClient(cfg.OllamaURL, cfg.GenerationModel, ollamaHTTP, limiter, log)

	judge := ollama.NewJudge(judgmentClient)
	generator := ollama.NewGenerator(generationClient)
	embedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, ollamaHTTP, log)

	// Retrieval service
	retriever := pgstore.NewRetriever(embedder, passageRepo, cfg.RetrieverCacheSize, cfg.RetrieverCacheTTL, log)

	// Reflection graph runner
	limits := reflection.Limits{
		TopK:                    cfg.TopK,
		MaxHallucinationRetries: cfg.MaxHallucinationRetries,
		MaxQueryRewrites:        cfg.MaxQueryRewrites,
		StepBudget:              cfg.StepBudget,
	}
	runner := reflection.NewRunner(retriever, judge, generator, limits, log)

	// Usecases
	askUsecase := usecase.NewAskQuestionUsecase(runner, log)
	chunker := domain.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	indexUsecase := usecase.NewIndexDocumentUsecase(passageRepo, txManager, chunker, embedder, retriever, log)

	// Background worker
	jobWorker := worker.NewJobWorker(jobRepo, indexUsecase, log)

	// HTTP handler
	handler := httpapi.NewHandler(askUsecase, jobRepo)

	return &ApplicationComponents{
		PassageRepo:  passageRepo,
		JobRepo:      jobRepo,
		AskUsecase:   askUsecase,
		IndexUsecase: indexUsecase,
		Worker:       jobWorker,
		Handler:      handler,
	}
}
