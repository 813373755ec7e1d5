// Package testutil provides testing utilities for the USAspending client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Endpoints served by the synthetic award dataset.
const (
	AwardSearchPath = "/search/spending_by_award/"
	AwardCountPath  = "/search/spending_by_award_count/"
	AwardDetailPath = "/awards/"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request seen by the server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// MockAPI is a configurable mock USAspending server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	prefixes map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI creates a new mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		prefixes: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler := mock.lookup(r.URL.Path)
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, `{"detail": "Not found."}`)
	}))

	return mock
}

// lookup finds the exact handler for path, then the longest matching prefix. Caller holds mu.
func (m *MockAPI) lookup(path string) http.HandlerFunc {
	if h, ok := m.handlers[path]; ok {
		return h
	}
	var (
		best    http.HandlerFunc
		bestLen int
	)
	for prefix, h := range m.prefixes {
		if strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
			best, bestLen = h, len(prefix)
		}
	}
	return best
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for an exact path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetPrefixHandler sets a handler for every path starting with prefix.
func (m *MockAPI) SetPrefixHandler(prefix string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes[prefix] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves responses in order; the last one repeats.
func (m *MockAPI) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		resp.write(w, r)
	})
}

func (resp MockResponse) write(w http.ResponseWriter, _ *http.Request) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// Requests returns a copy of every recorded request.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// PathCount returns the number of requests made to path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// ServeAwards installs a synthetic dataset of total contract awards on the
// search, count and detail endpoints. Search accepts page/limit, offset/limit
// and last_record_unique_id/limit positions in the JSON body.
func (m *MockAPI) ServeAwards(total int) {
	m.SetHandler(AwardSearchPath, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		limit := int(gjson.GetBytes(body, "limit").Int())
		if limit <= 0 {
			limit = 10
		}

		page := int(gjson.GetBytes(body, "page").Int())
		start := 0
		switch {
		case gjson.GetBytes(body, "last_record_unique_id").Exists():
			start = int(gjson.GetBytes(body, "last_record_unique_id").Int())
		case gjson.GetBytes(body, "offset").Exists():
			start = int(gjson.GetBytes(body, "offset").Int())
		case page > 0:
			start = (page - 1) * limit
		}
		if page <= 0 {
			page = start/limit + 1
		}

		end := min(start+limit, total)
		results := make([]json.RawMessage, 0, max(end-start, 0))
		for i := start + 1; i <= end; i++ {
			results = append(results, AwardRecord(i))
		}

		meta := map[string]any{
			"page":    page,
			"hasNext": end < total,
		}
		if end > start {
			meta["last_record_unique_id"] = end
			meta["last_record_sort_value"] = fmt.Sprintf("%d", end*1000)
		}
		out, _ := json.Marshal(map[string]any{
			"results":       results,
			"page_metadata": meta,
			"messages":      []string{},
		})
		writeJSON(w, http.StatusOK, string(out))
	})

	m.SetHandler(AwardCountPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(
			`{"results": {"contracts": %d, "idvs": 0, "grants": 0, "direct_payments": 0, "loans": 0, "other": 0}, "messages": []}`,
			total))
	})

	m.SetPrefixHandler(AwardDetailPath, func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, AwardDetailPath), "/")
		var n int
		if _, err := fmt.Sscanf(id, "CONT_AWD_%d", &n); err != nil || n < 1 || n > total {
			writeJSON(w, http.StatusNotFound, `{"detail": "No award found with this id"}`)
			return
		}
		writeJSON(w, http.StatusOK, string(AwardDetail(n)))
	})
}

// AwardRecord is the search row for award n.
func AwardRecord(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"internal_id": %d,
		"generated_internal_id": "CONT_AWD_%d",
		"Award ID": "NNX%05d",
		"Recipient Name": "RECIPIENT %d",
		"Award Amount": %d,
		"Description": null,
		"recipient_id": "r-%d"
	}`, n, n, n, n, n*1000, n))
}

// AwardDetail is the detail document for award n.
func AwardDetail(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"id": %d,
		"generated_unique_award_id": "CONT_AWD_%d",
		"piid": "NNX%05d",
		"description": "RESEARCH AWARD %d",
		"total_obligation": %d.5,
		"recipient": {
			"recipient_hash": "r-%d",
			"recipient_name": "RECIPIENT %d",
			"recipient_uei": "UEI%07d"
		}
	}`, n, n, n, n, n*1000, n, n, n))
}

// NewJSONResponse creates a 200 OK response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
	}
	if retryAfter != "" {
		resp.Headers = map[string]string{"Retry-After": retryAfter}
	}
	return resp
}

// NewServerErrorResponse creates a 5xx response.
func NewServerErrorResponse(status int) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       `{"detail": "Internal server error"}`,
	}
}

// NewClientErrorResponse creates a 400 response carrying detail.
func NewClientErrorResponse(detail string) MockResponse {
	body, _ := json.Marshal(map[string]string{"detail": detail})
	return MockResponse{StatusCode: http.StatusBadRequest, Body: string(body)}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
