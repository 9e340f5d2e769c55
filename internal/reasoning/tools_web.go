package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"manifold/internal/observability"
	"manifold/internal/ratelimit"
)

// webSearchTool queries one or more configured SearXNG-compatible search
// backends in order, falling back to the next on error, and self-throttles
// outbound requests with a token bucket.
type webSearchTool struct {
	httpClient  *http.Client
	backendURLs []string
	limiter     *ratelimit.Bucket
}

// NewWebSearchTool builds a web-search tool over the given SearXNG-compatible
// backend URLs, tried in order on failure, rate limited to reqsPerMinute.
func NewWebSearchTool(backendURLs []string, reqsPerMinute int) Tool {
	if reqsPerMinute <= 0 {
		reqsPerMinute = 10
	}
	return &webSearchTool{
		httpClient:  observability.NewHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		backendURLs: backendURLs,
		limiter:     ratelimit.NewBucket(reqsPerMinute, time.Minute/time.Duration(reqsPerMinute)),
	}
}

func (*webSearchTool) Name() string { return "web_search" }
func (*webSearchTool) Describe() string {
	return `search the web; input is the search query`
}

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *webSearchTool) Execute(ctx context.Context, input string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	if len(t.backendURLs) == 0 {
		return "", fmt.Errorf("web_search: no search backends configured")
	}

	var lastErr error
	for _, base := range t.backendURLs {
		result, err := t.queryOne(ctx, base, input)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("web_search: all backends failed: %w", lastErr)
}

func (t *webSearchTool) queryOne(ctx context.Context, base, query string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend %s returned status %d", base, resp.StatusCode)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "no results found", nil
	}

	out := ""
	limit := 5
	if len(parsed.Results) < limit {
		limit = len(parsed.Results)
	}
	for _, r := range parsed.Results[:limit] {
		out += fmt.Sprintf("- %s (%s): %s\n", r.Title, r.URL, r.Content)
	}
	return out, nil
}
