package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTransport_Send(t *testing.T) {
	var (
		gotMethod string
		gotHeader http.Header
		gotBody   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	tr := NewHTTPTransport(nil)
	header := http.Header{}
	header.Set("User-Agent", "transport-test")

	resp, err := tr.Send(context.Background(), TransportRequest{
		Method:  http.MethodPost,
		URL:     server.URL + "/search/",
		Header:  header,
		Body:    []byte(`{"limit": 1}`),
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotHeader.Get("User-Agent") != "transport-test" {
		t.Errorf("User-Agent = %q", gotHeader.Get("User-Agent"))
	}
	if gotBody != `{"limit": 1}` {
		t.Errorf("body = %q", gotBody)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if resp.Header.Get("X-Test") != "yes" {
		t.Error("response header missing")
	}
	if string(resp.Body) != `{"ok": true}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if resp.Cached {
		t.Error("network response marked cached")
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	tr := NewHTTPTransport(nil)
	start := time.Now()
	_, err := tr.Send(context.Background(), TransportRequest{
		Method:  http.MethodGet,
		URL:     server.URL,
		Timeout: 20 * time.Millisecond,
	})

	if err == nil {
		t.Fatal("Send() should time out")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Send() took %s, timeout not enforced", elapsed)
	}
}

func TestHTTPTransport_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPTransport(nil).Send(ctx, TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("Send() with cancelled context should fail")
	}
}
