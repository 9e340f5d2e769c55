package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"

	"manifold/internal/config"
	"manifold/internal/llm"
	"manifold/internal/observability"
)

// historyMaxEntries bounds the metrics:history sorted set; the oldest
// snapshots are trimmed as new ones land.
const historyMaxEntries = 1000

// metricsCollector samples process resource usage, backend health, and a
// rolling tokens/second estimate on demand for /metrics, and persists
// snapshots to a bounded Redis sorted set for /metrics/?hours=.
type metricsCollector struct {
	gw    *llm.Gateway
	redis *redis.Client
	key   string
	proc  *process.Process

	httpClient *http.Client
	scrapeURLs map[string]string // backend name -> Prometheus text endpoint

	mu   sync.Mutex
	prev map[string]tokenSample
}

// tokenSample remembers one backend's last observed *_tokens_total sum, for
// differencing into a rate on the next scrape.
type tokenSample struct {
	total float64
	at    time.Time
}

func newMetricsCollector(cfg config.Config, gw *llm.Gateway, redisClient *redis.Client) *metricsCollector {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("orchestrator: process introspection unavailable")
	}
	return &metricsCollector{
		gw:         gw,
		redis:      redisClient,
		key:        cfg.MetricsHistoryKey,
		proc:       proc,
		httpClient: observability.NewHTTPClient(&http.Client{Timeout: cfg.MetricsScrapeTimeout}),
		scrapeURLs: cfg.BackendMetricsURLs,
		prev:       make(map[string]tokenSample),
	}
}

// Snapshot is one point-in-time resource/health reading.
type Snapshot struct {
	Timestamp       int64              `json:"timestamp"`
	CPUPercent      float64            `json:"cpu_percent"`
	MemoryRSS       uint64             `json:"memory_rss_bytes"`
	Backends        []backendStatus    `json:"backends"`
	TokensPerSecond map[string]float64 `json:"tokens_per_second,omitempty"`
}

type backendStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func (m *metricsCollector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{Timestamp: time.Now().Unix()}

	if m.proc != nil {
		if cpuPct, err := m.proc.CPUPercentWithContext(ctx); err == nil {
			snap.CPUPercent = cpuPct
		}
		if memInfo, err := m.proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
			snap.MemoryRSS = memInfo.RSS
		}
	}

	for _, h := range m.gw.Health(ctx) {
		snap.Backends = append(snap.Backends, backendStatus{Name: h.Name, Healthy: h.Healthy, Error: h.Error})
	}
	snap.TokensPerSecond = m.sampleTokenRates(ctx)
	return snap
}

// sampleTokenRates scrapes each backend's Prometheus text exposition, sums
// its *_tokens_total counters, and differences against the previous scrape
// to produce a tokens/second estimate. A first scrape (or a counter reset)
// yields no rate for that backend.
func (m *metricsCollector) sampleTokenRates(ctx context.Context) map[string]float64 {
	if len(m.scrapeURLs) == 0 {
		return nil
	}
	rates := make(map[string]float64)
	now := time.Now()
	for name, url := range m.scrapeURLs {
		total, err := m.scrapeTokensTotal(ctx, url)
		if err != nil {
			log.Warn().Str("backend", name).Err(err).Msg("orchestrator: backend metrics scrape failed")
			continue
		}
		m.mu.Lock()
		last, seen := m.prev[name]
		m.prev[name] = tokenSample{total: total, at: now}
		m.mu.Unlock()
		if !seen || total < last.total {
			continue
		}
		elapsed := now.Sub(last.at).Seconds()
		if elapsed <= 0 {
			continue
		}
		rates[name] = (total - last.total) / elapsed
	}
	if len(rates) == 0 {
		return nil
	}
	return rates
}

func (m *metricsCollector) scrapeTokensTotal(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("metrics endpoint status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}
	return sumTokensTotal(string(raw)), nil
}

// sumTokensTotal adds every *_tokens_total counter in a Prometheus text
// exposition. Labels are ignored; all series of all matching metrics count
// toward one total.
func sumTokensTotal(text string) float64 {
	var sum float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		metric := fields[0]
		if i := strings.IndexByte(metric, '{'); i != -1 {
			metric = metric[:i]
		}
		if !strings.HasSuffix(metric, "_tokens_total") {
			continue
		}
		if v, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			sum += v
		}
	}
	return sum
}

// Record persists a snapshot into the metrics:history sorted set, scored by
// timestamp so a range query by hours-back is a single ZRANGEBYSCORE, then
// trims the set to its ring-buffer bound.
func (m *metricsCollector) Record(ctx context.Context, snap Snapshot) error {
	if m.redis == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal metrics snapshot: %w", err)
	}
	if err := m.redis.ZAdd(ctx, m.key, redis.Z{Score: float64(snap.Timestamp), Member: payload}).Err(); err != nil {
		return err
	}
	return m.redis.ZRemRangeByRank(ctx, m.key, 0, int64(-historyMaxEntries-1)).Err()
}

// History returns every snapshot recorded in the last `hours`.
func (m *metricsCollector) History(ctx context.Context, hours float64) ([]Snapshot, error) {
	if m.redis == nil {
		return nil, nil
	}
	since := time.Now().Add(-time.Duration(hours * float64(time.Hour))).Unix()
	members, err := m.redis.ZRangeByScore(ctx, m.key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: query metrics history: %w", err)
	}

	out := make([]Snapshot, 0, len(members))
	for _, raw := range members {
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			log.Warn().Err(err).Msg("orchestrator: skipping unreadable metrics snapshot")
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
