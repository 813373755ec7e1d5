package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FieldState tells whether a field value is known locally.
type FieldState int

const (
	// Unresolved fields are missing or null and may be filled by a detail fetch.
	Unresolved FieldState = iota
	// Resolved fields hold a non-null value.
	Resolved
)

func (s FieldState) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "unresolved"
}

// Field is a single value of a record and whether it is resolved.
type Field struct {
	Path  string
	State FieldState
	Value gjson.Result
}

// Record is a JSON object whose missing fields are loaded on first access
// through the session it is bound to. At most one detail fetch is made per record.
type Record struct {
	resource string
	id       string
	binding  *Binding

	mu       sync.Mutex
	raw      []byte
	loaded   bool
	children map[string]*Record
}

// NewRecord wraps raw (a JSON object) for resource id, bound to h.
func NewRecord(resource, id string, raw json.RawMessage, h Handle) *Record {
	data := []byte(raw)
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	return &Record{
		resource: resource,
		id:       id,
		binding:  NewBinding(h),
		raw:      append([]byte(nil), data...),
		children: make(map[string]*Record),
	}
}

// NewLoadedRecord is NewRecord for a document that already is the full
// detail, so no lazy fetch will be made.
func NewLoadedRecord(resource, id string, raw json.RawMessage, h Handle) *Record {
	r := NewRecord(resource, id, raw, h)
	r.loaded = true
	return r
}

func (r *Record) Resource() string { return r.resource }
func (r *Record) ID() string       { return r.id }

// Handle returns the session handle the record is bound to.
func (r *Record) Handle() Handle { return r.binding.Handle() }

// Attached reports whether the record's session is open.
func (r *Record) Attached() bool { return r.binding.Attached() }

// Loaded reports whether the detail document was already merged.
func (r *Record) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Raw returns a copy of the current JSON document.
func (r *Record) Raw() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(json.RawMessage(nil), r.raw...)
}

// MarshalJSON encodes the current document.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Raw(), nil
}

// Field returns the first of paths holding a non-null value, without network access.
func (r *Record) Field(paths ...string) Field {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.field(paths)
}

func (r *Record) field(paths []string) Field {
	for _, p := range paths {
		v := gjson.GetBytes(r.raw, p)
		if v.Exists() && v.Type != gjson.Null {
			return Field{Path: p, State: Resolved, Value: v}
		}
	}
	f := Field{State: Unresolved}
	if len(paths) > 0 {
		f.Path = paths[0]
	}
	return f
}

// Get returns the first of paths holding a non-null value. When none does and
// the detail document was not loaded yet, it is fetched through the session
// and merged, then the lookup is repeated. A value still missing afterwards is
// returned as a non-existent result without error.
func (r *Record) Get(ctx context.Context, paths ...string) (gjson.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f := r.field(paths); f.State == Resolved || r.loaded {
		return f.Value, nil
	}
	if err := r.load(ctx); err != nil {
		return gjson.Result{}, err
	}
	return r.field(paths).Value, nil
}

// Load fetches and merges the detail document if that has not happened yet.
func (r *Record) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}
	return r.load(ctx)
}

// load runs with mu held.
func (r *Record) load(ctx context.Context) error {
	fetcher, err := r.binding.EnsureAttached(r.resource, r.id)
	if err != nil {
		lazyFetchesTotal.WithLabelValues(r.resource, "detached").Inc()
		return err
	}
	if r.id == "" {
		return fmt.Errorf("%s record has no identifier to load details with", r.resource)
	}

	detail, err := fetcher.Fetch(ctx, r.resource, r.id)
	if err != nil {
		lazyFetchesTotal.WithLabelValues(r.resource, "error").Inc()
		return fmt.Errorf("load %s %q: %w", r.resource, r.id, err)
	}

	merged, err := mergeObject(r.raw, detail)
	if err != nil {
		lazyFetchesTotal.WithLabelValues(r.resource, "error").Inc()
		return fmt.Errorf("merge %s %q: %w", r.resource, r.id, err)
	}

	r.raw = merged
	r.loaded = true
	lazyFetchesTotal.WithLabelValues(r.resource, "ok").Inc()
	return nil
}

// Child returns the nested object at path as a record of its own, identified by
// the value at idPath inside it. The child starts bound to the parent's current
// handle. Returns nil without error when path holds no object.
func (r *Record) Child(ctx context.Context, path, resource, idPath string) (*Record, error) {
	r.mu.Lock()
	if c, ok := r.children[path]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	v, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !v.IsObject() {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.children[path]; ok {
		return c, nil
	}
	c := NewRecord(resource, v.Get(idPath).String(), json.RawMessage(v.Raw), r.binding.Handle())
	r.children[path] = c
	return c, nil
}

// ChildFrom adopts doc as the child record at path, identified by id, unless a
// child is already materialised there. Use it for nested entities that are
// assembled from flat fields rather than read from a nested object. The child
// starts bound to the parent's current handle and follows recursive Reattach.
func (r *Record) ChildFrom(path, resource, id string, doc json.RawMessage) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.children[path]; ok {
		return c
	}
	c := NewRecord(resource, id, doc, r.binding.Handle())
	r.children[path] = c
	return c
}

// Reattach binds the record to h. With recursive set, every child materialised
// so far is rebound too.
func (r *Record) Reattach(h Handle, recursive bool) {
	r.binding.Rebind(h)
	if !recursive {
		return
	}

	r.mu.Lock()
	children := make([]*Record, 0, len(r.children))
	for _, c := range r.children {
		children = append(children, c)
	}
	r.mu.Unlock()

	for _, c := range children {
		c.Reattach(h, true)
	}
}

// mergeObject copies every top-level key of src over dst.
func mergeObject(dst []byte, src json.RawMessage) ([]byte, error) {
	res := gjson.ParseBytes(src)
	if !gjson.ValidBytes(src) || !res.IsObject() {
		return nil, errors.New("detail document is not a JSON object")
	}

	out := dst
	var setErr error
	res.ForEach(func(key, value gjson.Result) bool {
		out, setErr = sjson.SetRawBytes(out, escapeKey(key.String()), []byte(value.Raw))
		return setErr == nil
	})
	if setErr != nil {
		return nil, setErr
	}
	return out, nil
}

// escapeKey quotes characters that gjson/sjson treat as path syntax.
func escapeKey(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
