// Package config loads runtime configuration for the brain service from the
// environment: plain os.Getenv plus defaults, no struct-tag env library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend describes one inference backend in the gateway's fallback chain.
type Backend struct {
	Name    string
	Kind    string // openai|anthropic|google
	BaseURL string
	APIKey  string
	Model   string
}

// Config holds every environment-derived setting the service needs.
type Config struct {
	// HTTP
	ListenAddr string

	// Logging
	LogLevel string
	LogPath  string

	// Backends, in fallback order. Backends[0] is primary.
	Backends []Backend

	// Embeddings
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
	VectorDim       int

	// Qdrant
	QdrantDSN                string
	QdrantMemoryCollection   string
	QdrantDocumentCollection string
	QdrantMetric             string

	// Redis
	RedisAddr        string
	CaptureStreamKey string
	CaptureStreamCap int64
	CheckpointKey    string
	MemoryKeyPrefix  string

	// Surprise pipeline
	SurpriseThreshold        float64
	SurpriseWeightPerplexity float64
	SurpriseWeightNovelty    float64
	MemoryStartFromLatest    bool
	PerplexityRetries        int
	PerplexityRetryDelay     time.Duration
	ScoringBatchSize         int64
	ScoringBlockTimeout      time.Duration

	// Archival
	ArchiveRoot         string
	ArchiveHour         int
	ArchiveMinute       int
	ArchiveRetainDays   int
	ArchiveRetainMin    int
	ArchiveMaxFileBytes int64

	// Reasoning
	AgentMaxSteps int
	SandboxURL    string
	CovTimeout    time.Duration
	AgentTimeout  time.Duration

	// Per-backend inference attempt bound; a backend that exceeds it is
	// skipped and the next one in the chain is tried.
	BackendTimeout time.Duration

	// Orchestrator
	RateLimitPerMinute int
	// SelfBaseURL is how collaborators (the sandbox's ask_llm callback)
	// reach this process back over HTTP.
	SelfBaseURL          string
	PersonasFile         string
	DataRoot             string
	MetricsHistoryKey    string
	HealthCheckTimeout   time.Duration
	MetricsScrapeTimeout time.Duration
	// BackendMetricsURLs maps a backend name to its own Prometheus text
	// endpoint, used for the rolling tokens/second estimate.
	BackendMetricsURLs map[string]string

	// Voice and search collaborators
	VoiceURL          string
	SearchBackendURLs []string

	// Feature flags
	AsyncMemory    bool
	EnableVoice    bool
	ArchiveEnabled bool

	// HTTP server write timeout and outbound proxy client timeout
	RequestTimeout time.Duration
}

// Load reads .env (if present, ignored if missing) then the process
// environment, validates required settings, and applies defaults for
// everything else.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:               getenv("LISTEN_ADDR", ":8080"),
		LogLevel:                 getenv("LOG_LEVEL", "info"),
		LogPath:                  os.Getenv("LOG_PATH"),
		EmbeddingURL:             os.Getenv("EMBEDDING_URL"),
		EmbeddingAPIKey:          os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:           getenv("EMBEDDING_MODEL", "nomic-embed-text-v1.5"),
		VectorDim:                getenvInt("VECTOR_DIMENSIONS", 768),
		QdrantDSN:                getenv("QDRANT_DSN", "http://localhost:6334"),
		QdrantMemoryCollection:   getenv("QDRANT_MEMORY_COLLECTION", "memories"),
		QdrantDocumentCollection: getenv("QDRANT_DOCUMENT_COLLECTION", "documents"),
		QdrantMetric:             getenv("QDRANT_METRIC", "cosine"),
		RedisAddr:                getenv("REDIS_ADDR", "localhost:6379"),
		CaptureStreamKey:         getenv("CAPTURE_STREAM_KEY", "brain:capture"),
		CaptureStreamCap:         int64(getenvInt("CAPTURE_STREAM_CAP", 10000)),
		CheckpointKey:            getenv("CHECKPOINT_KEY", "brain:scoring:checkpoint"),
		MemoryKeyPrefix:          getenv("MEMORY_KEY_PREFIX", "brain:memory:"),
		SurpriseThreshold:        getenvFloat("SURPRISE_THRESHOLD", 0.7),
		SurpriseWeightPerplexity: getenvFloat("SURPRISE_W_PERPLEXITY", 0.6),
		SurpriseWeightNovelty:    getenvFloat("SURPRISE_W_NOVELTY", 0.4),
		MemoryStartFromLatest:    getenvBool("MEMORY_START_FROM_LATEST", false),
		PerplexityRetries:        getenvInt("PERPLEXITY_RETRIES", 3),
		PerplexityRetryDelay:     time.Duration(getenvInt("PERPLEXITY_RETRY_DELAY_MS", 500)) * time.Millisecond,
		ScoringBatchSize:         int64(getenvInt("SCORING_BATCH_SIZE", 10)),
		ScoringBlockTimeout:      time.Duration(getenvInt("SCORING_BLOCK_MS", 5000)) * time.Millisecond,
		ArchiveRoot:              getenv("ARCHIVE_ROOT", "./data/archive"),
		ArchiveHour:              getenvInt("ARCHIVE_HOUR", 3),
		ArchiveMinute:            getenvInt("ARCHIVE_MINUTE", 0),
		ArchiveRetainDays:        getenvInt("ARCHIVE_DAYS_THRESHOLD", 30),
		ArchiveRetainMin:         getenvInt("ARCHIVE_KEEP_RECENT", 500),
		ArchiveMaxFileBytes:      int64(getenvInt("ARCHIVE_MAX_FILE_BYTES", 50*1024*1024)),
		AgentMaxSteps:            getenvInt("AGENT_MAX_STEPS", 10),
		SandboxURL:               getenv("SANDBOX_URL", "http://localhost:8800"),
		CovTimeout:               time.Duration(getenvInt("COV_TIMEOUT_SECONDS", 30)) * time.Second,
		AgentTimeout:             time.Duration(getenvInt("AGENT_TIMEOUT_SECONDS", 60)) * time.Second,
		BackendTimeout:           time.Duration(getenvInt("BACKEND_TIMEOUT_SECONDS", 60)) * time.Second,
		RateLimitPerMinute:       getenvInt("RATE_LIMIT_PER_MINUTE", 30),
		SelfBaseURL:              getenv("SELF_BASE_URL", "http://localhost:8080"),
		PersonasFile:             os.Getenv("PERSONAS_FILE"),
		DataRoot:                 getenv("DATA_ROOT", "./data"),
		MetricsHistoryKey:        getenv("METRICS_HISTORY_KEY", "metrics:history"),
		BackendMetricsURLs:       splitPairs(os.Getenv("BACKEND_METRICS_URLS")),
		HealthCheckTimeout:       time.Duration(getenvInt("HEALTH_CHECK_TIMEOUT_SECONDS", 2)) * time.Second,
		MetricsScrapeTimeout:     time.Duration(getenvInt("METRICS_SCRAPE_TIMEOUT_SECONDS", 2)) * time.Second,
		VoiceURL:                 os.Getenv("VOICE_URL"),
		SearchBackendURLs:        splitCSV(os.Getenv("SEARCH_BACKEND_URLS")),
		AsyncMemory:              getenvBool("ASYNC_MEMORY", true),
		EnableVoice:              getenvBool("ENABLE_VOICE", false),
		ArchiveEnabled:           getenvBool("ARCHIVE_ENABLED", true),
		RequestTimeout:           time.Duration(getenvInt("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	backends, err := loadBackends()
	if err != nil {
		return Config{}, err
	}
	cfg.Backends = backends

	if len(cfg.Backends) == 0 {
		return Config{}, fmt.Errorf("config: no inference backends configured; set LLM_BACKENDS")
	}
	if cfg.VectorDim <= 0 {
		return Config{}, fmt.Errorf("config: VECTOR_DIMENSIONS must be > 0")
	}
	return cfg, nil
}

// loadBackends parses LLM_BACKENDS, a comma-separated list of
// "name:kind:baseURL" triples (e.g. "primary:openai:http://localhost:8000/v1,
// fallback:anthropic:https://api.anthropic.com"). Per-backend API keys and
// models are read from NAME_API_KEY / NAME_MODEL (name upper-cased).
func loadBackends() ([]Backend, error) {
	raw := strings.TrimSpace(os.Getenv("LLM_BACKENDS"))
	if raw == "" {
		return nil, nil
	}
	var backends []Backend
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("config: malformed LLM_BACKENDS entry %q, want name:kind[:baseURL]", entry)
		}
		name := parts[0]
		kind := parts[1]
		baseURL := ""
		if len(parts) == 3 {
			baseURL = parts[2]
		}
		upper := strings.ToUpper(name)
		backends = append(backends, Backend{
			Name:    name,
			Kind:    kind,
			BaseURL: baseURL,
			APIKey:  os.Getenv(upper + "_API_KEY"),
			Model:   os.Getenv(upper + "_MODEL"),
		})
	}
	return backends, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitPairs parses "name=url,name2=url2" into a map, skipping malformed
// entries.
func splitPairs(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		name, url, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" || url == "" {
			continue
		}
		out[name] = url
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func getenvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
