package cache

import (
	"testing"
	"time"
)

func TestEntry_Expired(t *testing.T) {
	stored := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{StoredAt: stored}
	ttl := time.Hour

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"just stored", stored, false},
		{"half way", stored.Add(30 * time.Minute), false},
		{"exactly ttl", stored.Add(ttl), false},
		{"past ttl", stored.Add(ttl + time.Nanosecond), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.Expired(ttl, tt.now); got != tt.expected {
				t.Errorf("Expired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEntry_Remaining(t *testing.T) {
	stored := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{StoredAt: stored}

	if got := entry.Remaining(time.Hour, stored.Add(15*time.Minute)); got != 45*time.Minute {
		t.Errorf("Remaining() = %v, want 45m", got)
	}
	if got := entry.Remaining(time.Hour, stored.Add(2*time.Hour)); got != 0 {
		t.Errorf("Remaining() after expiry = %v, want 0", got)
	}
}
