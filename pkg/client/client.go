// Package client provides the core USAspending HTTP client with rate limiting,
// retries, response caching and session handles for lazily loaded records.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/cache"
	"github.com/planetary-society/usaspending-orm/pkg/metrics"
	"github.com/planetary-society/usaspending-orm/pkg/ratelimit"
	"github.com/planetary-society/usaspending-orm/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "requests_total",
		Help:      "Total requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request duration in seconds by endpoint",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "errors_total",
		Help:      "Total request errors by class",
	}, []string{"class"})
)

// DetailEndpoint maps a resource instance id to the endpoint of its detail document.
type DetailEndpoint func(id string) string

// Client is the main USAspending client. It is safe for concurrent use.
type Client struct {
	config    Config
	baseURL   *url.URL
	transport Transport
	limiter   ratelimit.Acquirer
	retry     *RetryPolicy
	cache     *cache.Manager
	flight    singleflight.Group
	redis     *redis.Client
	ownsRedis bool
	logger    zerolog.Logger

	sessions *session.Registry
	handle   session.Handle

	mu      sync.RWMutex
	details map[string]DetailEndpoint
	closed  bool
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	logger := log.With().Str("component", "usaspending-client").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "usaspending-client").Logger()
	}

	if cfg.PageSize > MaxPageSize {
		logger.Warn().
			Int("page_size", cfg.PageSize).
			Int("max", MaxPageSize).
			Msg("Page size capped")
		cfg.PageSize = MaxPageSize
	}

	c := &Client{
		config:    cfg,
		baseURL:   baseURL,
		transport: cfg.Transport,
		limiter:   cfg.Limiter,
		retry:     NewRetryPolicy(cfg.retryConfig(), logger),
		redis:     cfg.Redis,
		logger:    logger,
		sessions:  cfg.Sessions,
		details:   make(map[string]DetailEndpoint),
	}

	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}

	if err := c.setupRedis(); err != nil {
		return nil, err
	}

	if c.limiter == nil {
		if c.limiter, err = c.newLimiter(); err != nil {
			c.closeRedis()
			return nil, err
		}
	}

	if cfg.CacheEnabled {
		store, err := cache.OpenStore(cache.StoreOptions{
			Backend:  cfg.CacheBackend,
			Location: cfg.CacheLocation,
			Redis:    c.redis,
			TTL:      cfg.CacheTTL,
			Logger:   logger,
		})
		if err != nil {
			c.closeRedis()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		c.cache = cache.NewManager(store, cfg.CacheTTL, logger)
	}

	if c.sessions == nil {
		c.sessions = session.NewRegistry(logger)
	}
	c.handle = c.sessions.Open(c)

	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Bool("cache", cfg.CacheEnabled).
		Str("cache_backend", cfg.CacheBackend).
		Int("rate_limit_calls", cfg.RateLimitCalls).
		Dur("rate_limit_period", cfg.RateLimitPeriod).
		Msg("Client initialized")

	return c, nil
}

// setupRedis dials RedisAddr when a Redis-backed feature is enabled and no client was given.
func (c *Client) setupRedis() error {
	if c.redis != nil || c.config.RedisAddr == "" {
		return nil
	}
	backend, _ := cache.NormalizeBackend(c.config.CacheBackend)
	needsRedis := c.config.SharedRateLimit || (c.config.CacheEnabled && backend == cache.BackendRedis)
	if !needsRedis {
		return nil
	}
	c.redis = redis.NewClient(&redis.Options{Addr: c.config.RedisAddr})
	c.ownsRedis = true
	return nil
}

func (c *Client) closeRedis() {
	if c.ownsRedis && c.redis != nil {
		_ = c.redis.Close()
	}
}

func (c *Client) newLimiter() (ratelimit.Acquirer, error) {
	if c.config.SharedRateLimit && c.redis != nil {
		return ratelimit.NewRedisLimiter(c.redis, "api", c.config.RateLimitCalls, c.config.RateLimitPeriod, c.logger)
	}
	return ratelimit.NewLimiter(c.config.RateLimitCalls, c.config.RateLimitPeriod, c.logger)
}

// Do performs a request through the cache, the rate limiter, the transport
// and the retry policy. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	req.Method = strings.ToUpper(req.Method)
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	endpoint := normalizeEndpoint(req.Endpoint)

	if c.cache == nil || !cache.Cacheable(req.Method) {
		return c.send(ctx, req, endpoint)
	}

	fp := cache.RequestKey{
		Method:   req.Method,
		Endpoint: endpoint,
		Query:    req.Query,
		Payload:  req.Body,
	}.Fingerprint()

	entry, err := c.cache.Get(ctx, fp)
	switch {
	case err == nil:
		requestsTotal.WithLabelValues(endpoint, "cached").Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("fingerprint", fp.Short()).
			Msg("Cache hit")
		return &Response{StatusCode: entry.StatusCode, Body: entry.Body, Cached: true}, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
	}

	// Identical concurrent misses share one network call. The call runs
	// detached from the caller that started it so that one caller giving up
	// does not fail the others; each caller still waits on its own ctx.
	ch := c.flight.DoChan(fp.String(), func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		resp, err := c.send(sctx, req, endpoint)
		if err != nil {
			return nil, err
		}
		if cache.Storable(req.Method, resp.StatusCode) {
			if err := c.cache.Put(sctx, fp, resp.StatusCode, resp.Body); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
			}
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s %s: %w", req.Method, endpoint, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp := res.Val.(*Response)
		if res.Shared {
			cp := *resp
			cp.Body = bytes.Clone(resp.Body)
			return &cp, nil
		}
		return resp, nil
	}
}

// send runs the retrying network path for one request.
func (c *Client) send(ctx context.Context, req Request, endpoint string) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	target := c.resolve(endpoint, req.Query)
	header := http.Header{}
	header.Set("User-Agent", c.config.UserAgent)
	header.Set("Accept", "application/json")
	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	return c.retry.Execute(ctx, func(ctx context.Context, attempt int) (*Response, error) {
		// Every attempt, retries included, consumes a rate limit slot.
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("acquire rate limit: %w", err)
		}

		c.logger.Debug().
			Str("method", req.Method).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Msg("Executing request")

		start := time.Now()
		resp, err := c.transport.Send(ctx, TransportRequest{
			Method:  req.Method,
			URL:     target,
			Header:  header,
			Body:    body,
			Timeout: c.config.RequestTimeout,
		})
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Request failed")
			return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := newStatusError(resp.StatusCode, resp.Header, resp.Body)
			errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(apiErr.ErrorClass)).
				Str("detail", apiErr.Detail).
				Msg("Request error")
			return nil, apiErr
		}

		if apiErr := checkPayload(resp.StatusCode, resp.Body); apiErr != nil {
			errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
			return nil, apiErr
		}
		c.logMessages(endpoint, resp.Body)

		return resp, nil
	})
}

// logMessages surfaces the informational "messages" the API attaches to results.
func (c *Client) logMessages(endpoint string, body []byte) {
	messages := gjson.GetBytes(body, "messages")
	switch {
	case messages.IsArray():
		for _, m := range messages.Array() {
			c.logger.Info().Str("endpoint", endpoint).Msgf("API message: %s", m.String())
		}
	case messages.Type == gjson.String && messages.String() != "":
		c.logger.Info().Str("endpoint", endpoint).Msgf("API message: %s", messages.String())
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Query: query})
}

// Post performs a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: payload})
}

// RegisterDetail sets how detail documents of resource are located for lazy loading.
func (c *Client) RegisterDetail(resource string, endpoint DetailEndpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[resource] = endpoint
}

// Fetch loads the detail document of a resource instance. It implements session.Fetcher.
func (c *Client) Fetch(ctx context.Context, resource, id string) (json.RawMessage, error) {
	c.mu.RLock()
	endpoint, ok := c.details[resource]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no detail endpoint registered for %q", resource)
	}

	resp, err := c.Get(ctx, endpoint(id), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

// Handle returns the session handle records produced by this client are bound to.
func (c *Client) Handle() session.Handle {
	return c.handle
}

// Sessions returns the registry the client is registered with.
func (c *Client) Sessions() *session.Registry {
	return c.sessions
}

// PageSize returns the configured default page size.
func (c *Client) PageSize() int {
	return c.config.PageSize
}

// Limiter returns the rate limiter.
func (c *Client) Limiter() ratelimit.Acquirer {
	return c.limiter
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// Close ends the client's session and releases the cache. Records bound to the
// client become detached. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.sessions.Close(c.handle)

	var errs []error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.ownsRedis {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	c.logger.Debug().Msg("Client closed")
	return errors.Join(errs...)
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// resolve joins endpoint onto the base URL and appends the query.
func (c *Client) resolve(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + endpoint
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// normalizeEndpoint ensures a leading slash.
func normalizeEndpoint(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		return "/" + endpoint
	}
	return endpoint
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		return data, nil
	}
}
