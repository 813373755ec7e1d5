package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDetached is returned when a record needs its session after the session closed.
var ErrDetached = errors.New("record is detached from its session")

// DetachedStateError identifies the record that could not reach its session.
type DetachedStateError struct {
	Resource string
	ID       string
	Handle   Handle
}

func (e *DetachedStateError) Error() string {
	return fmt.Sprintf("%s %q: %v (session %s); reattach it to an open client",
		e.Resource, e.ID, ErrDetached, e.Handle)
}

// Unwrap allows errors.Is(err, ErrDetached).
func (e *DetachedStateError) Unwrap() error {
	return ErrDetached
}

// Binding is a record's mutable reference to its session.
type Binding struct {
	mu     sync.RWMutex
	handle Handle
}

// NewBinding binds to h.
func NewBinding(h Handle) *Binding {
	return &Binding{handle: h}
}

// Handle returns the current handle.
func (b *Binding) Handle() Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle
}

// Attached reports whether the bound session is still open.
func (b *Binding) Attached() bool {
	_, ok := b.Handle().Lookup()
	return ok
}

// Rebind points the binding at h.
func (b *Binding) Rebind(h Handle) {
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()
}

// EnsureAttached returns the live Fetcher or a *DetachedStateError.
func (b *Binding) EnsureAttached(resource, id string) (Fetcher, error) {
	h := b.Handle()
	f, ok := h.Lookup()
	if !ok {
		return nil, &DetachedStateError{Resource: resource, ID: id, Handle: h}
	}
	return f, nil
}
