package cache

import (
	"testing"
)

func TestCacheable(t *testing.T) {
	tests := []struct {
		method   string
		expected bool
	}{
		{"GET", true},
		{"get", true},
		{"POST", false},
		{"DELETE", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			if got := Cacheable(tt.method); got != tt.expected {
				t.Errorf("Cacheable(%q) = %v, want %v", tt.method, got, tt.expected)
			}
		})
	}
}

func TestStorable(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		status   int
		expected bool
	}{
		{"GET 200", "GET", 200, true},
		{"GET 204", "GET", 204, true},
		{"GET 404", "GET", 404, false},
		{"GET 500", "GET", 500, false},
		{"POST 200", "POST", 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Storable(tt.method, tt.status); got != tt.expected {
				t.Errorf("Storable(%q, %d) = %v, want %v", tt.method, tt.status, got, tt.expected)
			}
		})
	}
}
