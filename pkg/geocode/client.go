// Package geocode resolves free-form street addresses to coordinates via
// Nominatim (primary) and Photon (fallback), pacing every outbound call
// through a shared token bucket.
package geocode

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/resilience"
)

// Point is a single coordinate pair returned by a provider.
type Point struct {
	Lat float64
	Lng float64
}

// Provider represents a single geocoding backend. Lookup returns an empty
// slice when the query matched nothing; errors are reserved for transport
// and protocol failures.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, query string) ([]Point, error)
}

// Result holds the outcome of resolving one address.
type Result struct {
	Lat      float64
	Lng      float64
	Provider string // provider that produced the match
	Query    string // query variant that matched
	Matched  bool
}

// Client resolves a free-form address to coordinates.
type Client interface {
	Resolve(ctx context.Context, address string) (*Result, error)
}

// Option configures the resolver.
type Option func(*Resolver)

// WithPrimary replaces the default Nominatim primary provider.
func WithPrimary(p Provider) Option {
	return func(r *Resolver) {
		r.primary = p
	}
}

// WithFallback replaces the default Photon fallback provider.
func WithFallback(p Provider) Option {
	return func(r *Resolver) {
		r.fallback = p
	}
}

// WithHTTPClient sets a custom HTTP client for the built-in providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = hc
	}
}

// WithEndpoints points the built-in providers at alternate base URLs, for
// self-hosted Nominatim or Photon instances. Empty strings keep the public
// defaults.
func WithEndpoints(primaryURL, fallbackURL string) Option {
	return func(r *Resolver) {
		r.primaryURL = primaryURL
		r.fallbackURL = fallbackURL
	}
}

// WithUserAgent sets the User-Agent header sent by the built-in providers.
// Nominatim's usage policy requires an identifying value.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// WithMinInterval sets the minimum spacing between outbound provider calls.
// Zero or negative disables pacing.
func WithMinInterval(d time.Duration) Option {
	return func(r *Resolver) {
		r.throttle = NewThrottle(d)
	}
}

// WithRetry overrides the per-call retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Resolver) {
		r.retry = cfg
	}
}

// Resolver implements Client over a primary and a fallback provider. One
// throttle is shared by every call the resolver makes, so a run's request
// rate stays within provider policies regardless of how many variants or
// fallbacks a single address burns through.
type Resolver struct {
	primary  Provider
	fallback Provider
	throttle *Throttle
	retry    resilience.RetryConfig

	httpClient  *http.Client
	userAgent   string
	primaryURL  string
	fallbackURL string
}

const defaultUserAgent = "mapyard-marker-ingest/1.0"

// NewResolver creates a resolver with the given options. Without options it
// talks to the public Nominatim and Photon instances at the default pace.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  defaultUserAgent,
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.throttle == nil {
		r.throttle = NewThrottle(DefaultMinInterval)
	}
	if r.primary == nil {
		r.primary = NewNominatim(r.primaryURL, r.httpClient, r.userAgent)
	}
	if r.fallback == nil {
		r.fallback = NewPhoton(r.fallbackURL, r.httpClient, r.userAgent)
	}
	return r
}

// Resolve tries the query-variant ladder against the primary provider, then
// the full ladder against the fallback. The fallback is never consulted
// while the primary still has variants left to try. An address no provider
// can place is not an error, just unmatched.
func (r *Resolver) Resolve(ctx context.Context, address string) (*Result, error) {
	variants := QueryVariants(address)
	if len(variants) == 0 {
		return &Result{Matched: false}, nil
	}

	for _, provider := range []Provider{r.primary, r.fallback} {
		if provider == nil {
			continue
		}
		for _, q := range variants {
			pts, err := r.lookup(ctx, provider, q)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				zap.L().Debug("geocode: provider error, trying next variant",
					zap.String("provider", provider.Name()),
					zap.String("query", q),
					zap.Error(err),
				)
				continue
			}
			if len(pts) == 0 {
				continue
			}
			return &Result{
				Lat:      pts[0].Lat,
				Lng:      pts[0].Lng,
				Provider: provider.Name(),
				Query:    q,
				Matched:  true,
			}, nil
		}
	}

	return &Result{Matched: false}, nil
}

// lookup paces one provider call through the shared throttle and retries it
// once on transient failure.
func (r *Resolver) lookup(ctx context.Context, p Provider, query string) ([]Point, error) {
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]Point, error) {
		if err := r.throttle.Wait(ctx); err != nil {
			return nil, err
		}
		return p.Lookup(ctx, query)
	})
}
