// Package orchestrator implements the stateless HTTP surface: it composes
// the inference gateway, vector memory, surprise pipeline, and reasoning
// engines behind a net/http ServeMux, applying rate limiting and persona
// injection ahead of every engine dispatch.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/observability"
	"manifold/internal/ratelimit"
	"manifold/internal/reasoning"
	"manifold/internal/surprise"
	"manifold/internal/vectormemory"
)

// Server holds every collaborator a request can fan out to.
type Server struct {
	cfg config.Config

	gw       *llm.Gateway
	embedder llm.Embedder

	memories  *vectormemory.MirroredStore
	documents *vectormemory.Store

	capture  *surprise.Stream
	scoring  *surprise.ScoringWorker
	archival *surprise.ArchivalWorker

	agent           *reasoning.ReActAgent
	advancedAgent   *reasoning.ReActAgent
	basicTools      *reasoning.Registry
	advancedTools   *reasoning.Registry
	cov             *reasoning.ChainOfVerification
	recursive       *reasoning.RecursiveAgent
	sandbox         *reasoning.SandboxClient
	maxStepsDefault int

	personas *PersonaStore
	limiter  *ratelimit.KeyedLimiter
	redis    *redis.Client

	httpClient *http.Client
	metrics    *metricsCollector

	mux *http.ServeMux
}

// Deps bundles every component Server needs, assembled by cmd/brain.
type Deps struct {
	Config        config.Config
	Gateway       *llm.Gateway
	Embedder      llm.Embedder
	Memories      *vectormemory.MirroredStore
	Documents     *vectormemory.Store
	Capture       *surprise.Stream
	Scoring       *surprise.ScoringWorker
	Archival      *surprise.ArchivalWorker
	Agent         *reasoning.ReActAgent
	AdvancedAgent *reasoning.ReActAgent
	BasicTools    *reasoning.Registry
	AdvancedTools *reasoning.Registry
	CoV           *reasoning.ChainOfVerification
	Recursive     *reasoning.RecursiveAgent
	Sandbox       *reasoning.SandboxClient
	Personas      *PersonaStore
	Redis         *redis.Client
}

// NewServer wires Deps into a Server with routes registered.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:             d.Config,
		gw:              d.Gateway,
		embedder:        d.Embedder,
		memories:        d.Memories,
		documents:       d.Documents,
		capture:         d.Capture,
		scoring:         d.Scoring,
		archival:        d.Archival,
		agent:           d.Agent,
		advancedAgent:   d.AdvancedAgent,
		basicTools:      d.BasicTools,
		advancedTools:   d.AdvancedTools,
		cov:             d.CoV,
		recursive:       d.Recursive,
		sandbox:         d.Sandbox,
		personas:        d.Personas,
		redis:           d.Redis,
		maxStepsDefault: d.Config.AgentMaxSteps,
		limiter:         ratelimit.NewKeyedLimiter(d.Config.RateLimitPerMinute, time.Minute/time.Duration(max(1, d.Config.RateLimitPerMinute))),
		httpClient:      observability.NewHTTPClient(&http.Client{Timeout: d.Config.RequestTimeout}),
	}
	s.metrics = newMetricsCollector(d.Config, d.Gateway, d.Redis)
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /chat", s.withRateLimit(s.handleChat))
	s.mux.HandleFunc("POST /verify", s.withRateLimit(s.handleVerify))
	s.mux.HandleFunc("POST /agent", s.withRateLimit(s.handleAgent(s.agent)))
	s.mux.HandleFunc("POST /agent/advanced", s.withRateLimit(s.handleAgent(s.advancedAgent)))
	s.mux.HandleFunc("POST /agent/recursive", s.withRateLimit(s.handleAgentRecursive))
	s.mux.HandleFunc("POST /code_assist", s.withRateLimit(s.handleCodeAssist))

	s.mux.HandleFunc("GET /memories", s.handleListMemories)
	s.mux.HandleFunc("POST /memories/search", s.handleSearchMemories)
	s.mux.HandleFunc("GET /memories/{id}", s.handleGetMemory)
	s.mux.HandleFunc("DELETE /memories/{id}", s.handleDeleteMemory)

	s.mux.HandleFunc("POST /library/search", s.handleLibrarySearch)
	s.mux.HandleFunc("GET /library/stats", s.handleLibraryStats)

	s.mux.HandleFunc("POST /research", s.withRateLimit(s.handleResearch))
	s.mux.HandleFunc("POST /research/multi", s.withRateLimit(s.handleResearchMulti))

	s.mux.HandleFunc("POST /voice/transcribe", s.handleVoiceTranscribe)
	s.mux.HandleFunc("POST /voice/synthesize", s.handleVoiceSynthesize)

	s.mux.HandleFunc("POST /admin/archive_old_memories", s.handleArchiveOldMemories)
	s.mux.HandleFunc("GET /admin/archive_stats", s.handleArchiveStats)
	s.mux.HandleFunc("POST /admin/search_archive", s.handleSearchArchive)
	s.mux.HandleFunc("POST /admin/restore_archive", s.handleRestoreArchive)

	// The sandbox's ask_llm callback posts here; not rate-limited, since
	// nested completions during one recursive-agent run would starve the
	// client's own bucket.
	s.mux.HandleFunc("POST /internal/complete", s.handleInternalComplete)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /metrics/", s.handleMetricsHistory)

	s.mux.HandleFunc("GET /personas", s.handleListPersonas)
	s.mux.HandleFunc("POST /personas", s.handleCreatePersona)
	s.mux.HandleFunc("GET /personas/{id}", s.handleGetPersona)
	s.mux.HandleFunc("PUT /personas/{id}", s.handleUpdatePersona)
	s.mux.HandleFunc("DELETE /personas/{id}", s.handleDeletePersona)
	s.mux.HandleFunc("POST /personas/activate/{id}", s.handleActivatePersona)
}

// ServeHTTP tags every inbound request with a fresh request id before
// routing, so logs emitted anywhere down the call chain correlate back to
// the request that caused them.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := observability.WithRequestID(r.Context(), uuid.NewString())
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// withRateLimit enforces the 30/min (default) token-bucket limit keyed by
// client address ahead of any handler that fans out to an inference engine.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientAddr(r)) {
			rateLimited(w)
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// captureTurn appends the inbound message to the capture stream off the
// request's critical path and returns immediately; memory bookkeeping never
// blocks the response.
func (s *Server) captureTurn(sessionID, message string, metadata map[string]string) {
	if !s.cfg.AsyncMemory {
		return
	}
	go s.capture.Append(context.Background(), surprise.Turn{
		Message:   message,
		SessionID: sessionID,
		Metadata:  metadata,
	})
}

// personaPrefix returns the active persona's system prompt and history
// (if any) as leading chat messages.
func (s *Server) personaPrefix() []llm.Message {
	if s.personas == nil {
		return nil
	}
	p, ok := s.personas.Active()
	if !ok {
		return nil
	}
	msgs := []llm.Message{{Role: "system", Content: p.SystemPrompt}}
	if p.History != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: p.History})
	}
	return msgs
}
