package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/kirillkom/legal-assistant/internal/config"
	"github.com/kirillkom/legal-assistant/internal/core/ports"
	"github.com/kirillkom/legal-assistant/internal/core/usecase"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/glossary"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/source/localfs"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/source/postgres"
	"github.com/kirillkom/legal-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/legal-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Assistant *usecase.AnswerUseCase
	Indexer   *usecase.IndexUseCase
	// Queue is nil when NATS_URL is empty.
	Queue   *nats.Queue
	Metrics *metrics.HTTPServerMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Metrics = metrics.NewHTTPServerMetrics(service)
	indexMetrics := metrics.NewIndexMetrics(service, app.Metrics.Registerer())

	llmResilience := resilience.ModelBackendConfig().WithLimits(cfg.LLMRetryMaxAttempts, cfg.LLMBreakerEnabled)
	executor := resilience.NewExecutor(llmResilience, logger).WithStateObserver(indexMetrics.ObserveBreakerState)

	embedder, generator, err := app.newBackends(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	chunkCfg, err := chunking.Resolve(cfg.ChunkPreset, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunk settings: %w", err)
	}
	splitter, err := chunking.NewSplitter(chunkCfg)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.EmbedRateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateLimitRPS), max(cfg.EmbedRateLimitBurst, 1))
	}
	index := memory.New(embedder, splitter, memory.Options{
		Concurrency: cfg.IndexBuildConcurrency,
		BatchSize:   cfg.EmbedBatchSize,
		Limiter:     limiter,
		Logger:      logger,
	})

	terms, err := glossary.Load(cfg.GlossaryPath)
	if err != nil {
		return nil, fmt.Errorf("load glossary: %w", err)
	}
	resolver := usecase.NewGlossaryResolver(generator, terms, logger)
	metrics.RegisterGlossaryStats(app.Metrics.Registerer(), service, resolver.Stats)

	source, err := app.newDocumentSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSRebuildSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.MessagingConfig(), logger),
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init rebuild queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	app.Assistant = usecase.NewAnswerUseCase(
		usecase.NewIntentClassifier(generator, logger),
		resolver,
		index,
		generator,
		logger,
	)
	app.Indexer = usecase.NewIndexUseCase(index, source, indexMetrics, logger)

	logger.Info("app_initialized",
		"llm_provider", cfg.LLMProvider,
		"document_source", cfg.DocumentSource,
		"chunk_preset", cfg.ChunkPreset,
		"chunk_size", chunkCfg.ChunkSize,
		"chunk_overlap", chunkCfg.ChunkOverlap,
		"glossary_terms", len(terms),
		"rebuild_queue", app.Queue != nil,
	)
	ok = true
	return app, nil
}

// RebuildQueue returns the queue as a port, or nil when messaging is disabled.
func (a *App) RebuildQueue() ports.RebuildQueue {
	if a.Queue == nil {
		return nil
	}
	return a.Queue
}

func (a *App) newBackends(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.Generator, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiGenModel, cfg.GeminiEmbedModel, gemini.Options{Executor: executor})
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = client.Close() })
		return gemini.NewEmbedder(client), gemini.NewGenerator(client), nil
	default:
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			Timeout:  cfg.OllamaTimeout,
			Executor: executor,
		})
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	}
}

func (a *App) newDocumentSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.DocumentSource, error) {
	switch cfg.DocumentSource {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { _ = db.Close() })
		source := postgres.New(db, logger)
		if err := source.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return source, nil
	default:
		return localfs.New(cfg.DocumentsPath, logger), nil
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
