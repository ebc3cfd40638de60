package geocode

import (
	"net/http"
	"strings"
	"time"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

// multiRewriteTransport rewrites requests to different test servers keyed by
// URL prefix, so one client can route both providers.
type multiRewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string // target prefix -> test server URL
}

func (t *multiRewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, server := range t.rewrites {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		suffix := origURL[len(prefix):]
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(server + suffix)
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}

// newInstantResolver wires a resolver from explicit providers with pacing
// disabled and retry backoff shrunk, so tests run at full speed.
func newInstantResolver(primary, fallback Provider) *Resolver {
	return NewResolver(
		WithPrimary(primary),
		WithFallback(fallback),
		WithMinInterval(0),
		WithRetry(resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		}),
	)
}
