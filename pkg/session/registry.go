package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Fetcher loads the detail document of one resource instance.
type Fetcher interface {
	Fetch(ctx context.Context, resource, id string) (json.RawMessage, error)
}

// Handle is an opaque reference to a live session. The zero Handle is never attached.
type Handle struct {
	id  uuid.UUID
	reg *Registry
}

// ID returns the session identifier.
func (h Handle) ID() uuid.UUID { return h.id }

// IsZero reports whether h was never issued by a Registry.
func (h Handle) IsZero() bool { return h.reg == nil }

func (h Handle) String() string {
	if h.IsZero() {
		return "detached"
	}
	return h.id.String()
}

// Lookup resolves h to its Fetcher. Returns false once the session is closed.
func (h Handle) Lookup() (Fetcher, bool) {
	if h.reg == nil {
		return nil, false
	}
	return h.reg.Lookup(h)
}

// Registry tracks live sessions. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	live   map[uuid.UUID]Fetcher
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		live:   make(map[uuid.UUID]Fetcher),
		logger: logger,
	}
}

// Open registers f and returns its handle.
func (r *Registry) Open(f Fetcher) Handle {
	h := Handle{id: uuid.New(), reg: r}

	r.mu.Lock()
	r.live[h.id] = f
	r.mu.Unlock()

	r.logger.Debug().Str("session", h.id.String()).Msg("Session opened")
	return h
}

// Close ends the session behind h. Records bound to it become detached.
// Returns false if h was unknown or already closed.
func (r *Registry) Close(h Handle) bool {
	if h.reg != r {
		return false
	}

	r.mu.Lock()
	_, ok := r.live[h.id]
	delete(r.live, h.id)
	r.mu.Unlock()

	if ok {
		r.logger.Debug().Str("session", h.id.String()).Msg("Session closed")
	}
	return ok
}

// Lookup returns the Fetcher for h while its session is open.
func (r *Registry) Lookup(h Handle) (Fetcher, bool) {
	if h.reg != r {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.live[h.id]
	return f, ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}
