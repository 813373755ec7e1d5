package cache

import (
	"time"
)

// Entry is a cached response body.
type Entry struct {
	// Body is the raw response body
	Body []byte `json:"body"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// StoredAt is when the entry was written
	StoredAt time.Time `json:"stored_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Expired reports whether the entry outlived ttl at now.
// An entry whose age equals ttl is still fresh.
func (e *Entry) Expired(ttl time.Duration, now time.Time) bool {
	return e.Age(now) > ttl
}

// Remaining returns the time until expiry. Returns 0 if already expired.
func (e *Entry) Remaining(ttl time.Duration, now time.Time) time.Duration {
	if d := ttl - e.Age(now); d > 0 {
		return d
	}
	return 0
}
