// Package ratelimit bounds the outbound call rate of the USAspending client with a
// rolling window: at most Max calls may start within any trailing Period.
// Callers over budget are delayed, never rejected.
package ratelimit

import (
	"time"
)

// Redis key prefix for shared windows.
const (
	RedisKeyPrefix = "usaspending:ratelimit:"
)

// State is a point-in-time snapshot of a rolling window.
type State struct {
	// Max is the number of calls allowed per Period.
	Max int `json:"max"`

	// Period is the length of the trailing window.
	Period time.Duration `json:"period"`

	// InWindow is the number of calls recorded within the trailing Period.
	InWindow int `json:"in_window"`

	// NextAvailable is when the next call may start. Zero when a call may start now.
	NextAvailable time.Time `json:"next_available"`

	// TakenAt is when the snapshot was taken.
	TakenAt time.Time `json:"taken_at"`
}

// Available returns the number of calls that can start immediately.
func (s State) Available() int {
	if n := s.Max - s.InWindow; n > 0 {
		return n
	}
	return 0
}

// Saturated reports whether the next call would have to wait.
func (s State) Saturated() bool {
	return s.InWindow >= s.Max
}

// TimeUntilAvailable returns how long a caller would wait for a slot.
// Returns 0 if a slot is free.
func (s State) TimeUntilAvailable() time.Duration {
	if s.NextAvailable.IsZero() {
		return 0
	}
	d := s.NextAvailable.Sub(s.TakenAt)
	if d < 0 {
		return 0
	}
	return d
}
