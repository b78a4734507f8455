// Package bootstrap wires configuration, infrastructure adapters and
// use cases into a runnable application graph shared by the API and
// worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docintel/docintel/internal/config"
	"github.com/docintel/docintel/internal/core/ports"
	"github.com/docintel/docintel/internal/core/usecase"
	"github.com/docintel/docintel/internal/infrastructure/chunking"
	"github.com/docintel/docintel/internal/infrastructure/crawler"
	"github.com/docintel/docintel/internal/infrastructure/extractor"
	"github.com/docintel/docintel/internal/infrastructure/llm/ollama"
	"github.com/docintel/docintel/internal/infrastructure/queue/nats"
	"github.com/docintel/docintel/internal/infrastructure/repository/postgres"
	"github.com/docintel/docintel/internal/infrastructure/resilience"
	"github.com/docintel/docintel/internal/infrastructure/storage/localfs"
	"github.com/docintel/docintel/internal/infrastructure/vector/qdrant"
	"github.com/docintel/docintel/internal/infrastructure/websearch"
	"github.com/docintel/docintel/internal/infrastructure/workflow"
	"github.com/docintel/docintel/internal/observability/logging"
	"github.com/docintel/docintel/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Service string
	Logger  *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  ports.DocumentIngestor
	IndexUC   ports.SemanticIndex
	AgentUC   ports.AnswerAgent
	SummaryUC ports.SummaryController

	APIMetrics    *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

// New builds the full application graph. Service names the running
// process ("api" or "worker") for logs and metric labels.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSSummarySubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultPolicy())
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewLazyEmbedder(func() ports.Embedder {
		return ollama.NewEmbedder(ollamaClient)
	})

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, "")
	extract := extractor.New(cfg.MaxDocumentChars)
	web := websearch.New(cfg.SearchAPIKey, cfg.SearchEndpoint, cfg.SearchMaxResults)
	crawl := crawler.New(cfg.CrawlerWebhookURL)
	workflowSummarizer := workflow.New(
		cfg.WorkflowWebhookURL,
		cfg.WorkflowUser,
		cfg.WorkflowPassword,
		time.Duration(cfg.WorkflowTimeoutSeconds)*time.Second,
	)

	apiMetrics := metrics.NewHTTPServerMetrics(service)
	workerMetrics := metrics.NewWorkerMetrics(service)

	indexUC := usecase.NewSemanticIndexUseCase(repo, storage, extract, chunker, embedder, vectorDB)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, indexUC)

	agentUC := usecase.NewAnswerAgentUseCase(indexUC, generator, web, crawl, usecase.AgentLimits{
		MaxIterations:  cfg.AgentMaxIterations,
		HistoryLimit:   cfg.ChatHistoryMessages,
		TopK:           cfg.SearchTopK,
		ScoreThreshold: cfg.ScoreThreshold,
	})
	agentUC.SetToolCallHook(func(tool, status string) {
		apiMetrics.RecordToolCall(service, tool, status)
	})

	summaryUC := usecase.NewSummaryControllerUseCase(
		repo, storage, extract,
		workflowSummarizer, generator, queue,
		summaryMetricsObserver{metrics: workerMetrics, service: service},
		usecase.SummaryPolicy{
			MaxRetries:        cfg.SummaryMaxRetries,
			InitialRetryDelay: time.Duration(cfg.SummaryRetryInitialDelaySec) * time.Second,
		},
	)

	return &App{
		Config:  cfg,
		Service: service,
		Logger:  logger,

		Queue: queue,
		Repo:  repo,

		IngestUC:  ingestUC,
		IndexUC:   indexUC,
		AgentUC:   agentUC,
		SummaryUC: summaryUC,

		APIMetrics:    apiMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type summaryMetricsObserver struct {
	metrics *metrics.WorkerMetrics
	service string
}

func (o summaryMetricsObserver) SummaryAttempt(tier, outcome string) {
	o.metrics.RecordSummaryAttempt(o.service, tier, outcome)
}

func (o summaryMetricsObserver) SummaryRetryScheduled() {
	o.metrics.RecordSummaryRetry(o.service)
}
