package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/cache"
	"github.com/planetary-society/usaspending-orm/pkg/ratelimit"
	"github.com/planetary-society/usaspending-orm/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// MaxPageSize is the largest page the search endpoints accept.
const MaxPageSize = 100

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.usaspending.gov/api/v2"
	BaseURL string `yaml:"base_url"`

	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent"`

	// Rate Limiting: at most RateLimitCalls requests start within any RateLimitPeriod
	RateLimitCalls  int           `yaml:"rate_limit_calls"`
	RateLimitPeriod time.Duration `yaml:"rate_limit_period"`

	// SharedRateLimit keeps the rate window in Redis when Redis is set
	SharedRateLimit bool `yaml:"shared_rate_limit"`

	// Retry
	MaxRetries         int           `yaml:"max_retries"`
	RetryBaseDelay     time.Duration `yaml:"retry_delay"`
	RetryBackoffFactor float64       `yaml:"retry_backoff"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay"`
	RetryJitter        float64       `yaml:"retry_jitter"`

	// RequestTimeout bounds one network exchange
	RequestTimeout time.Duration `yaml:"timeout"`

	// Caching
	CacheEnabled  bool          `yaml:"cache_enabled"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheBackend  string        `yaml:"cache_backend"`
	CacheLocation string        `yaml:"cache_dir"`

	// PageSize is the default page size for queries (capped at MaxPageSize)
	PageSize int `yaml:"page_size"`

	// RedisAddr is dialled when Redis is nil and the redis backend or shared limit is used
	RedisAddr string `yaml:"redis_addr"`

	// Redis client for the redis cache backend and the shared rate limiter
	Redis *redis.Client `yaml:"-"`

	// Transport overrides the HTTP transport (tests)
	Transport Transport `yaml:"-"`

	// Limiter overrides the rate limiter
	Limiter ratelimit.Acquirer `yaml:"-"`

	// Sessions is the registry the client registers with. A private one is created when nil.
	Sessions *session.Registry `yaml:"-"`

	// Logger defaults to the global zerolog logger
	Logger *zerolog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.usaspending.gov/api/v2",
		UserAgent:          "usaspending-orm-go/0.1.0",
		RateLimitCalls:     30,
		RateLimitPeriod:    1 * time.Second,
		MaxRetries:         3,
		RetryBaseDelay:     1 * time.Second,
		RetryBackoffFactor: 2.0,
		RetryMaxDelay:      60 * time.Second,
		RetryJitter:        0.25,
		RequestTimeout:     30 * time.Second,
		CacheEnabled:       true,
		CacheTTL:           time.Hour,
		CacheBackend:       cache.BackendFile,
		CacheLocation:      ".usaspending_cache",
		PageSize:           MaxPageSize,
	}
}

// LoadConfig reads a YAML file over DefaultConfig and applies USASPENDING_*
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from USASPENDING_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := getEnv(key, ""); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(key string, dst *bool) {
		if v := getEnv(key, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := getEnv(key, ""); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("USASPENDING_BASE_URL", &c.BaseURL)
	setString("USASPENDING_USER_AGENT", &c.UserAgent)
	setInt("USASPENDING_RATE_LIMIT_CALLS", &c.RateLimitCalls)
	setDuration("USASPENDING_RATE_LIMIT_PERIOD", &c.RateLimitPeriod)
	setBool("USASPENDING_SHARED_RATE_LIMIT", &c.SharedRateLimit)
	setInt("USASPENDING_MAX_RETRIES", &c.MaxRetries)
	setDuration("USASPENDING_RETRY_DELAY", &c.RetryBaseDelay)
	setFloat("USASPENDING_RETRY_BACKOFF", &c.RetryBackoffFactor)
	setDuration("USASPENDING_TIMEOUT", &c.RequestTimeout)
	setBool("USASPENDING_CACHE_ENABLED", &c.CacheEnabled)
	setDuration("USASPENDING_CACHE_TTL", &c.CacheTTL)
	setString("USASPENDING_CACHE_BACKEND", &c.CacheBackend)
	setString("USASPENDING_CACHE_DIR", &c.CacheLocation)
	setInt("USASPENDING_PAGE_SIZE", &c.PageSize)
	setString("USASPENDING_REDIS_ADDR", &c.RedisAddr)

	return errors.Join(errs...)
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url must be an absolute URL (got %q)", c.BaseURL))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("user_agent is required"))
	}
	if c.Limiter == nil {
		if c.RateLimitCalls <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit_calls must be positive (got %d)", c.RateLimitCalls))
		}
		if c.RateLimitPeriod <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit_period must be positive (got %s)", c.RateLimitPeriod))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_delay must be >= 0 (got %s)", c.RetryBaseDelay))
	}
	if c.RetryBackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("retry_backoff must be >= 1 (got %g)", c.RetryBackoffFactor))
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		errs = append(errs, fmt.Errorf("retry_jitter must be within [0, 1] (got %g)", c.RetryJitter))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive (got %s)", c.RequestTimeout))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be >= 1 (got %d)", c.PageSize))
	}
	if c.CacheEnabled {
		backend, err := cache.NormalizeBackend(c.CacheBackend)
		if err != nil {
			errs = append(errs, err)
		}
		if c.CacheTTL <= 0 {
			errs = append(errs, fmt.Errorf("cache_ttl must be positive (got %s)", c.CacheTTL))
		}
		if backend == cache.BackendRedis && c.Redis == nil && c.RedisAddr == "" {
			errs = append(errs, errors.New("redis cache backend needs a redis client or redis_addr"))
		}
	}

	return errors.Join(errs...)
}

// retryConfig extracts the retry settings.
func (c Config) retryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    c.MaxRetries,
		BaseDelay:     c.RetryBaseDelay,
		BackoffFactor: c.RetryBackoffFactor,
		MaxDelay:      c.RetryMaxDelay,
		Jitter:        c.RetryJitter,
	}
}

// parseDuration accepts Go durations ("1.5s") and plain seconds ("30").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
