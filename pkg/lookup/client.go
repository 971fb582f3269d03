// Package lookup provides the screenshare lookup client. One call checks one
// identifier with exactly one outbound request and classifies the answer.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/screenshare-scanner/pkg/cache"
	"github.com/Sternrassler/screenshare-scanner/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the screenshare.lol search API.
const DefaultEndpoint = "https://screenshare.lol/api/search"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

// Prometheus metrics for lookup operations.
var (
	lookupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_requests_total",
		Help: "Total lookups by outcome (clean, detected, rate_limited, transport_error, cached)",
	}, []string{"status"})

	lookupRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lookup_request_duration_seconds",
		Help:    "Lookup duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_errors_total",
		Help: "Total lookup errors by class",
	}, []string{"class"})
)

// Client checks identifiers against the lookup service.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	limiter    *ratelimit.Limiter
	matcher    *ratelimit.Matcher
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint of the search API
	Endpoint string

	// APIKey is sent as the api_key query parameter (REQUIRED)
	APIKey string

	// User-Agent header
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// RequestsPerSecond caps outbound requests on top of batch pacing.
	// 0 disables the client-side limiter.
	RequestsPerSecond float64

	// RateLimitMarkers override the failure message substrings that mean
	// the provider is throttling (default: "rate limit")
	RateLimitMarkers []string

	// Caching (optional, disabled when Redis is nil)
	Redis    *redis.Client
	CacheTTL time.Duration
}

// DefaultConfig returns the default client configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		APIKey:    apiKey,
		UserAgent: "screenshare-scanner/0.1.0",
		Timeout:   30 * time.Second,
		CacheTTL:  6 * time.Hour,
	}
}

// New creates a new lookup client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an absolute URL (got %q)", ErrInvalidConfig, cfg.Endpoint)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("%w: user-agent is required", ErrInvalidConfig)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: endpoint,
		limiter:  ratelimit.NewLimiter(cfg.RequestsPerSecond, 1),
		matcher:  ratelimit.NewMatcher(cfg.RateLimitMarkers...),
		config:   cfg,
		logger:   log.With().Str("component", "lookup-client").Logger(),
	}

	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		c.cache = cache.NewManager(cfg.Redis)
	}

	c.logger.Debug().
		Str("endpoint", endpoint.Host).
		Strs("rate_limit_markers", c.matcher.Markers()).
		Bool("cache", c.cache != nil).
		Msg("Lookup client ready")

	return c, nil
}

// response is the search API's JSON envelope.
type response struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Data    *Payload `json:"data"`
}

// Check performs one lookup for id. It never retries and never returns a
// Go error; failures are reported as a KindTransportError outcome.
func (c *Client) Check(ctx context.Context, id string) Outcome {
	startTime := time.Now()

	if outcome, ok := c.fromCache(ctx, id); ok {
		lookupRequestsTotal.WithLabelValues("cached").Inc()
		return outcome
	}

	outcome, conclusive := c.do(ctx, id)
	lookupRequestsTotal.WithLabelValues(outcome.Kind.String()).Inc()
	lookupRequestDuration.Observe(time.Since(startTime).Seconds())

	if conclusive {
		c.toCache(ctx, id, outcome)
	}

	return outcome
}

// do performs the outbound request. conclusive is false unless the provider
// answered successfully.
func (c *Client) do(ctx context.Context, id string) (outcome Outcome, conclusive bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.failure(id, &Error{
			Identifier: id,
			Class:      ErrorClassNetwork,
			Message:    "request limiter",
			Err:        err,
		}), false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(id), nil)
	if err != nil {
		return c.failure(id, &Error{
			Identifier: id,
			Class:      ErrorClassNetwork,
			Message:    "create request",
			Err:        err,
		}), false
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("member_id", id).Msg("Executing lookup")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure(id, &Error{
			Identifier: id,
			Class:      ErrorClassNetwork,
			Message:    "request failed",
			Err:        redactURL(err),
		}), false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.failure(id, &Error{
			Identifier: id,
			Class:      ErrorClassNetwork,
			StatusCode: resp.StatusCode,
			Message:    "read response",
			Err:        err,
		}), false
	}

	return c.classify(id, resp.StatusCode, body)
}

// classify interprets one response body. Only a successful answer is
// conclusive; a provider failure counts as clean for this scan alone.
func (c *Client) classify(id string, statusCode int, body []byte) (Outcome, bool) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		if statusCode == http.StatusTooManyRequests {
			ratelimit.RecordSignal(ratelimit.SourceStatus)
			c.logger.Warn().Str("member_id", id).Int("status", statusCode).Msg("Rate limit hit")
			return RateLimited(&Error{
				Identifier:  id,
				Class:       ErrorClassRateLimit,
				StatusCode:  statusCode,
				Message:     http.StatusText(statusCode),
				RateLimited: true,
			}), false
		}
		return c.failure(id, &Error{
			Identifier: id,
			Class:      ErrorClassDecode,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("decode response body %q", truncateBody(body)),
			Err:        err,
		}), false
	}

	if !r.Success {
		if c.matcher.Matches(r.Error) || statusCode == http.StatusTooManyRequests {
			source := ratelimit.SourceResponse
			if !c.matcher.Matches(r.Error) {
				source = ratelimit.SourceStatus
			}
			ratelimit.RecordSignal(source)
			c.logger.Warn().
				Str("member_id", id).
				Int("status", statusCode).
				Str("provider_error", r.Error).
				Msg("Rate limit hit")
			return RateLimited(&Error{
				Identifier:  id,
				Class:       ErrorClassRateLimit,
				StatusCode:  statusCode,
				Message:     r.Error,
				RateLimited: true,
			}), false
		}

		// A failure that is not a throttle carries no detection.
		c.logger.Debug().
			Str("member_id", id).
			Int("status", statusCode).
			Str("provider_error", r.Error).
			Msg("Provider reported failure")
		return Clean(), false
	}

	if r.Data.HasRecords() {
		c.logger.Info().
			Str("member_id", id).
			Float64("confidence", r.Data.Confidence()).
			Msg("Detection found")
		return Detected(r.Data), true
	}

	return Clean(), true
}

// failure records a transport error and checks it for rate limit markers.
func (c *Client) failure(id string, lookupErr *Error) Outcome {
	if c.matcher.Matches(lookupErr.Error()) {
		lookupErr.RateLimited = true
		ratelimit.RecordSignal(ratelimit.SourceTransport)
	}

	lookupErrorsTotal.WithLabelValues(string(lookupErr.Class)).Inc()

	c.logger.Error().
		Err(lookupErr).
		Str("member_id", id).
		Str("error_class", string(lookupErr.Class)).
		Bool("rate_limited", lookupErr.RateLimited).
		Msg("Lookup failed")

	return TransportFailure(lookupErr)
}

// requestURL builds the search URL for id.
func (c *Client) requestURL(id string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("discord_id", id)
	q.Set("api_key", c.config.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// redactURL strips the request URL (which carries the API key) from
// transport errors.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}

// fromCache returns a cached outcome for id, if any.
func (c *Client) fromCache(ctx context.Context, id string) (Outcome, bool) {
	if c.cache == nil {
		return Outcome{}, false
	}

	entry, err := c.cache.Get(ctx, c.cacheKey(id))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("member_id", id).Msg("Cache get error")
		}
		return Outcome{}, false
	}

	if !entry.Detected {
		return Clean(), true
	}

	var payload Payload
	if err := json.Unmarshal(entry.Data, &payload); err != nil {
		c.logger.Warn().Err(err).Str("member_id", id).Msg("Cached payload invalid")
		return Outcome{}, false
	}

	c.logger.Debug().Str("member_id", id).Msg("Lookup served from cache")
	return Detected(&payload), true
}

// toCache stores a conclusive outcome. Cache faults never fail the lookup.
func (c *Client) toCache(ctx context.Context, id string, outcome Outcome) {
	if c.cache == nil {
		return
	}

	entry := cache.NewEntry(outcome.Kind == KindDetected, outcome.Payload.Raw(), c.config.CacheTTL)
	if err := c.cache.Set(ctx, c.cacheKey(id), entry); err != nil {
		c.logger.Warn().Err(err).Str("member_id", id).Msg("Failed to cache lookup")
	}
}

func (c *Client) cacheKey(id string) cache.Key {
	return cache.Key{Provider: c.endpoint.Host, Identifier: id}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
