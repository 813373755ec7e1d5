package cache

import (
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long responses stay fresh when no TTL is configured
	DefaultTTL = time.Hour
)

// Cacheable reports whether responses to method may be read from the cache.
// Only GET is idempotent enough to be served from storage; POST searches always
// go to the network.
func Cacheable(method string) bool {
	return strings.EqualFold(method, http.MethodGet)
}

// Storable reports whether a response should be written to the cache.
// Only successful GET responses are stored.
func Storable(method string, statusCode int) bool {
	return Cacheable(method) && statusCode >= 200 && statusCode < 300
}
