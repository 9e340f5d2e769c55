// Command brain boots the cognitive orchestrator: it loads configuration,
// connects every collaborator (inference backends, Qdrant, Redis, the
// sandbox), starts the surprise pipeline's background workers, and serves
// the orchestrator's HTTP surface until signaled to stop. This is the
// composition root the rest of this codebase's packages are assembled from.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/observability"
	"manifold/internal/orchestrator"
	"manifold/internal/reasoning"
	"manifold/internal/surprise"
	"manifold/internal/vectormemory"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("brain")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build inference gateway: %w", err)
	}
	gw.PerBackendTimeout = cfg.BackendTimeout

	embedder := llm.NewHTTPEmbedder(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.VectorDim)

	memoryStore, err := vectormemory.Open(ctx, cfg.QdrantDSN, cfg.QdrantMemoryCollection, cfg.VectorDim, cfg.QdrantMetric)
	if err != nil {
		return fmt.Errorf("open memory namespace: %w", err)
	}
	documentStore, err := vectormemory.Open(ctx, cfg.QdrantDSN, cfg.QdrantDocumentCollection, cfg.VectorDim, cfg.QdrantMetric)
	if err != nil {
		return fmt.Errorf("open document namespace: %w", err)
	}
	mirror, err := vectormemory.NewRawMirror(cfg.RedisAddr, cfg.MemoryKeyPrefix)
	if err != nil {
		return fmt.Errorf("open raw mirror: %w", err)
	}
	memories := vectormemory.NewMirroredStore(memoryStore, mirror)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	capture := surprise.NewStream(redisClient, cfg.CaptureStreamKey, cfg.CaptureStreamCap)
	scoring := surprise.NewScoringWorker(redisClient, capture, memories, embedder, gw, surprise.ScoringWorkerConfig{
		CheckpointKey:   cfg.CheckpointKey,
		Threshold:       cfg.SurpriseThreshold,
		Weights:         surprise.Weights{Perplexity: cfg.SurpriseWeightPerplexity, Novelty: cfg.SurpriseWeightNovelty},
		StartFromLatest: cfg.MemoryStartFromLatest,
		Retries:         cfg.PerplexityRetries,
		RetryDelay:      cfg.PerplexityRetryDelay,
		BatchSize:       cfg.ScoringBatchSize,
		BlockTimeout:    cfg.ScoringBlockTimeout,
	})
	archival := surprise.NewArchivalWorker(memories, surprise.ArchiveConfig{
		Root:             cfg.ArchiveRoot,
		RetainMostRecent: cfg.ArchiveRetainMin,
		RetainNewerThan:  time.Duration(cfg.ArchiveRetainDays) * 24 * time.Hour,
		MaxFileBytes:     cfg.ArchiveMaxFileBytes,
	})

	sandbox := reasoning.NewSandboxClient(cfg.SandboxURL)
	askLLMURL := cfg.SelfBaseURL + "/internal/complete"
	basicTools := buildBasicTools(embedder, memories, documentStore, sandbox)
	advancedTools := buildAdvancedTools(basicTools, gw, sandbox, askLLMURL, cfg)

	agent := reasoning.NewReActAgent(gw, basicTools, cfg.AgentMaxSteps)
	advancedAgent := reasoning.NewReActAgent(gw, advancedTools, cfg.AgentMaxSteps)
	cov := reasoning.NewChainOfVerification(gw)
	recursive := reasoning.NewRecursiveAgent(gw, sandbox, askLLMURL, cfg.AgentMaxSteps)

	personas, err := orchestrator.NewPersonaStore(cfg.DataRoot, cfg.PersonasFile)
	if err != nil {
		return fmt.Errorf("open persona store: %w", err)
	}

	server := orchestrator.NewServer(orchestrator.Deps{
		Config:        cfg,
		Gateway:       gw,
		Embedder:      embedder,
		Memories:      memories,
		Documents:     documentStore,
		Capture:       capture,
		Scoring:       scoring,
		Archival:      archival,
		Agent:         agent,
		AdvancedAgent: advancedAgent,
		BasicTools:    basicTools,
		AdvancedTools: advancedTools,
		CoV:           cov,
		Recursive:     recursive,
		Sandbox:       sandbox,
		Personas:      personas,
		Redis:         redisClient,
	})

	if cfg.AsyncMemory {
		go scoring.Run(ctx)
	}
	if cfg.ArchiveEnabled {
		go runArchivalSchedule(ctx, archival, cfg)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("brain: listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("brain: shutting down")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutCancel()
		if err := httpServer.Shutdown(shutCtx); err != nil {
			log.Error().Err(err).Msg("brain: graceful shutdown failed")
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// buildGateway constructs the ordered fallback chain of inference backends
// from cfg.Backends, cfg.Backends[0] as primary.
func buildGateway(ctx context.Context, cfg config.Config) (*llm.Gateway, error) {
	backends := make([]llm.Backend, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		switch b.Kind {
		case "openai", "":
			backends = append(backends, llm.NewOpenAIBackend(b.Name, b.BaseURL, b.APIKey, b.Model))
		case "anthropic":
			backends = append(backends, llm.NewAnthropicBackend(b.Name, b.APIKey, b.Model))
		case "google":
			backend, err := llm.NewGoogleBackend(ctx, b.Name, b.APIKey, b.Model)
			if err != nil {
				return nil, fmt.Errorf("backend %q: %w", b.Name, err)
			}
			backends = append(backends, backend)
		default:
			return nil, fmt.Errorf("backend %q: unknown kind %q", b.Name, b.Kind)
		}
	}
	return llm.NewGateway(backends...)
}

// storeSearcher/mirroredSearcher adapt vectormemory.Store's richer Record
// shape to reasoning.Searcher's narrower SearchHit, so the reasoning package
// never needs to import vectormemory.
type storeSearcher struct{ store *vectormemory.Store }

func (s storeSearcher) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]reasoning.SearchHit, error) {
	recs, err := s.store.Search(ctx, vector, k, vectormemory.Filter(filter))
	if err != nil {
		return nil, err
	}
	hits := make([]reasoning.SearchHit, len(recs))
	for i, r := range recs {
		hits[i] = reasoning.SearchHit{ID: r.ID, Text: r.Text, Score: r.Score}
	}
	return hits, nil
}

type mirroredSearcher struct{ store *vectormemory.MirroredStore }

func (s mirroredSearcher) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]reasoning.SearchHit, error) {
	recs, err := s.store.Search(ctx, vector, k, vectormemory.Filter(filter))
	if err != nil {
		return nil, err
	}
	hits := make([]reasoning.SearchHit, len(recs))
	for i, r := range recs {
		hits[i] = reasoning.SearchHit{ID: r.ID, Text: r.Text, Score: r.Score}
	}
	return hits, nil
}

// buildBasicTools registers the standard tool set every engine shares:
// arithmetic, string/JSON/datetime utilities, memory and library search, and
// sandboxed code execution.
func buildBasicTools(embedder llm.Embedder, memories *vectormemory.MirroredStore, documents *vectormemory.Store, sandbox *reasoning.SandboxClient) *reasoning.Registry {
	reg := reasoning.NewRegistry()
	mustRegister(reg, reasoning.NewArithmeticTool())
	mustRegister(reg, reasoning.NewStringUtilTool())
	mustRegister(reg, reasoning.NewJSONTool())
	mustRegister(reg, reasoning.NewDatetimeTool(time.Now))
	mustRegister(reg, reasoning.NewMemorySearchTool(embedder, mirroredSearcher{memories}, 5))
	mustRegister(reg, reasoning.NewLibrarySearchTool(embedder, storeSearcher{documents}, 5))
	mustRegister(reg, reasoning.NewCodeExecutionTool(sandbox))
	return reg
}

// buildAdvancedTools extends the basic set with web search and recursive
// corpus reading, the richer roster behind /agent/advanced.
func buildAdvancedTools(basic *reasoning.Registry, gw *llm.Gateway, sandbox *reasoning.SandboxClient, askLLMURL string, cfg config.Config) *reasoning.Registry {
	reg := reasoning.NewRegistry()
	for _, name := range basic.Names() {
		tool, _ := basic.Get(name)
		mustRegister(reg, tool)
	}
	mustRegister(reg, reasoning.NewWebSearchTool(cfg.SearchBackendURLs, 10))
	mustRegister(reg, reasoning.NewRecursiveReadTool(gw, sandbox, askLLMURL, cfg.AgentMaxSteps))
	return reg
}

func mustRegister(reg *reasoning.Registry, tool reasoning.Tool) {
	if err := reg.Register(tool); err != nil {
		log.Fatal().Err(err).Str("tool", tool.Name()).Msg("brain: duplicate tool registration")
	}
}

// runArchivalSchedule wakes once a minute and runs the archival job exactly
// at cfg.ArchiveHour:cfg.ArchiveMinute each day. The worker itself holds a
// run-wide mutex, so a manually-triggered admin run never overlaps this one.
func runArchivalSchedule(ctx context.Context, archival *surprise.ArchivalWorker, cfg config.Config) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	lastRun := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Hour() != cfg.ArchiveHour || now.Minute() != cfg.ArchiveMinute {
				continue
			}
			if lastRun.Year() == now.Year() && lastRun.YearDay() == now.YearDay() {
				continue
			}
			lastRun = now
			result, err := archival.ArchiveOldMemories(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("brain: scheduled archival failed")
				continue
			}
			log.Info().Int("archived", result.Archived).Int("kept_in_redis", result.KeptInRedis).
				Int("files_created", result.FilesCreated).Msg("brain: scheduled archival complete")
		}
	}
}
