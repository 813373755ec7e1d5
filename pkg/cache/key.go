package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint identifies a logical request. Two requests with the same method,
// endpoint, query parameters and JSON payload share a fingerprint regardless of
// parameter or key order.
type Fingerprint string

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated digest for log lines.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// RequestKey holds the parts of a request that determine its fingerprint.
type RequestKey struct {
	// Method is the HTTP method (GET or POST)
	Method string

	// Endpoint is the API path relative to the base URL (e.g., "/awards/CONT_AWD_123/")
	Endpoint string

	// Query are the URL query parameters
	Query url.Values

	// Payload is the JSON request body. It may be a Go value, []byte or json.RawMessage.
	Payload any
}

// Fingerprint returns the SHA-256 digest of the normalized request.
//
// Format before hashing, one part per line:
//
//	GET
//	awards/CONT_AWD_123
//	page=2&sort=Award+Amount
//	{"filters":{...}}
func (k RequestKey) Fingerprint() Fingerprint {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(k.Method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Trim(k.Endpoint, "/")))
	h.Write([]byte{'\n'})
	h.Write([]byte(sortedQuery(k.Query)))
	h.Write([]byte{'\n'})

	payload, err := CanonicalJSON(k.Payload)
	if err != nil {
		// Unencodable payloads cannot be sent either; hash the error so the
		// fingerprint stays deterministic.
		payload = []byte(err.Error())
	}
	h.Write(payload)

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// CanonicalJSON encodes v with object keys sorted at every level.
// A nil payload encodes as an empty slice.
func CanonicalJSON(v any) ([]byte, error) {
	var raw []byte
	switch p := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical payload: %w", err)
	}
	return out, nil
}

// sortedQuery renders query parameters sorted by key, keeping value order per key.
func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, v := range q[key] {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
