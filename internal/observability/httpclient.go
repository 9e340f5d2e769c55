package observability

import "net/http"

// NewHTTPClient returns base unchanged, or a fresh zero-value client if base
// is nil. Every outbound collaborator call (inference, embeddings,
// sandbox, voice) goes through a client built this way so timeouts and
// headers stay uniform.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	return base
}

type headerRoundTripper struct {
	next    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		if cloned.Header.Get(k) == "" {
			cloned.Header.Set(k, v)
		}
	}
	return h.next.RoundTrip(cloned)
}

// WithHeaders wraps client's transport so every outbound request carries
// headers that aren't already set, used for backend-specific extra headers
// (e.g. an OpenAI-compatible proxy's auth header).
func WithHeaders(client *http.Client, headers map[string]string) *http.Client {
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	out := *client
	out.Transport = &headerRoundTripper{next: next, headers: headers}
	return &out
}
