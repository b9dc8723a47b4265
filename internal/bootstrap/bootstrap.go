package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
	"github.com/kirillkom/knowledge-assistant/internal/core/usecase"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/connectors/board"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/connectors/pdf"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/connectors/wiki"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/evalcases"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/graph"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/report/csvreport"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/report/narrative"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/report/xlsxreport"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/scoring/judge"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/vector/local"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	// Queue is nil unless ingestion runs through NATS or the caller consumes jobs.
	Queue   ports.IndexJobQueue
	Catalog ports.SourceCatalog
	Cases   []domain.EvaluationCase

	Retriever *usecase.RetrieveUseCase
	Answers   *usecase.AnswerUseCase
	Chat      *usecase.ChatUseCase
	Ingest    *usecase.IngestSourceUseCase
	Scheduler *usecase.IngestScheduleUseCase
	Evaluator *usecase.EvaluateUseCase

	closers []func()
}

type Options struct {
	Logger *slog.Logger
	// BreakerObserver receives circuit breaker transitions, usually a metrics sink.
	BreakerObserver resilience.StateObserver
	// ConsumeQueue connects to NATS regardless of INGEST_MODE.
	ConsumeQueue bool
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(opts.BreakerObserver),
	)

	embedder, completer, err := newLLM(cfg, executor)
	if err != nil {
		return nil, err
	}

	index, err := app.openVectorIndex(cfg)
	if err != nil {
		return nil, err
	}

	chatStore, err := app.openChatStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	var provenance ports.ProvenanceRecorder
	if catalog, ok := index.(ports.SourceCatalog); ok {
		app.Catalog = catalog
	}
	if cfg.Neo4jURI != "" {
		store, err := graph.Open(ctx, graph.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("open neo4j: %w", err)
		}
		app.closers = append(app.closers, func() { _ = store.Close(context.Background()) })
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure neo4j schema: %w", err)
		}
		provenance = store
		app.Catalog = store
	}

	if cfg.IngestMode == "queue" || opts.ConsumeQueue {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init index queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
	}

	connectors := []ports.SourceConnector{
		wiki.New(wiki.Config{
			BaseURL:  cfg.WikiURL,
			Username: cfg.WikiUsername,
			APIKey:   cfg.WikiAPIKey,
			SpaceKey: cfg.WikiSpaceKey,
			Limit:    cfg.WikiLimit,
		}, executor),
		pdf.New(),
		board.New(board.Config{
			BaseURL:  cfg.BoardURL,
			Token:    cfg.BoardToken,
			MaxPages: cfg.BoardMaxPages,
		}, executor),
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	indexer := usecase.NewIndexUseCase(chunker, embedder, index, cfg.EmbedBatchSize)
	app.Retriever = usecase.NewRetrieveUseCase(embedder, index, cfg.RAGTopK)
	app.Answers = usecase.NewAnswerUseCase(app.Retriever, completer, cfg.RAGTopK, cfg.LLMTemperature, logger)
	app.Chat = usecase.NewChatUseCase(chatStore, app.Answers)
	app.Ingest = usecase.NewIngestSourceUseCase(connectors, indexer, usecase.IngestOptions{
		Storage:    storage,
		Sessions:   chatStore,
		Provenance: provenance,
		Logger:     logger,
	})

	var scheduleQueue ports.IndexJobQueue
	if cfg.IngestMode == "queue" {
		scheduleQueue = app.Queue
	}
	app.Scheduler = usecase.NewIngestScheduleUseCase(app.Ingest, scheduleQueue)

	app.Cases, err = evalcases.Load(cfg.EvalCasesPath)
	if err != nil {
		return nil, fmt.Errorf("load evaluation cases: %w", err)
	}
	metrics, err := evaluationMetrics(cfg.EvalMetrics)
	if err != nil {
		return nil, err
	}
	writers, err := reportWriters(cfg.EvalReportFormats, cfg.EvalReportDir)
	if err != nil {
		return nil, err
	}
	scorer := judge.New(completer, embedder, judge.Options{
		RatePerSecond: cfg.EvalRatePerSecond,
		Logger:        logger,
	})
	app.Evaluator = usecase.NewEvaluateUseCase(app.Answers, scorer, usecase.EvaluateOptions{
		Writers: writers,
		Metrics: metrics,
		Logger:  logger,
	})

	logger.Info("bootstrap_completed",
		"llm_provider", cfg.LLMProvider,
		"vector_backend", cfg.VectorBackend,
		"chat_store", cfg.ChatStore,
		"ingest_mode", cfg.IngestMode,
		"neo4j", provenance != nil,
		"evaluation_cases", len(app.Cases),
	)
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Retry.MaxAttempts = cfg.RetryMaxAttempts
	rc.Breaker.Enabled = cfg.BreakerEnabled
	rc.Breaker.OpenTimeout = cfg.BreakerOpenTimeout
	return rc
}

func newLLM(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.Completer, error) {
	switch cfg.LLMProvider {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewEmbedder(client), ollama.NewCompleter(client), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
		client := openai.New(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, executor)
		return openai.NewEmbedder(client), openai.NewCompleter(client), nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func (a *App) openVectorIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "local":
		index, err := local.Open(cfg.VectorIndexDir)
		if err != nil {
			return nil, fmt.Errorf("open local vector index: %w", err)
		}
		a.closers = append(a.closers, func() { _ = index.Close() })
		return index, nil
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	default:
		return nil, fmt.Errorf("unsupported VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func (a *App) openChatStore(ctx context.Context, cfg config.Config) (ports.ChatHistoryStore, error) {
	switch cfg.ChatStore {
	case "sqlite":
		store, err := sqlite.Open(cfg.ChatDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite chat store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case "postgres":
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := postgres.OpenDB(schemaCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewChatRepository(db)
		if err := repo.EnsureSchema(schemaCtx); err != nil {
			return nil, fmt.Errorf("ensure chat schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported CHAT_STORE %q", cfg.ChatStore)
	}
}

func evaluationMetrics(extra []string) ([]domain.MetricName, error) {
	metrics := append([]domain.MetricName(nil), domain.DefaultMetrics...)
	for _, name := range extra {
		metric := domain.MetricName(name)
		if !metric.Valid() {
			return nil, fmt.Errorf("unknown evaluation metric %q", name)
		}
		if !containsMetric(metrics, metric) {
			metrics = append(metrics, metric)
		}
	}
	return metrics, nil
}

func containsMetric(metrics []domain.MetricName, m domain.MetricName) bool {
	for _, have := range metrics {
		if have == m {
			return true
		}
	}
	return false
}

func reportWriters(formats []string, dir string) ([]ports.ReportWriter, error) {
	writers := make([]ports.ReportWriter, 0, len(formats))
	for _, format := range formats {
		switch format {
		case "csv":
			writers = append(writers, csvreport.New(dir))
		case "txt":
			writers = append(writers, narrative.New(dir))
		case "xlsx":
			writers = append(writers, xlsxreport.New(dir))
		default:
			return nil, fmt.Errorf("unknown evaluation report format %q", format)
		}
	}
	return writers, nil
}
