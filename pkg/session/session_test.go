package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves detail documents keyed by resource/id and counts calls.
type stubFetcher struct {
	mu      sync.Mutex
	details map[string]string
	calls   int
	err     error
}

func (f *stubFetcher) Fetch(_ context.Context, resource, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.details[resource+"/"+id]
	if !ok {
		return nil, errors.New("not found")
	}
	return json.RawMessage(doc), nil
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func awardDetails() map[string]string {
	return map[string]string{
		"award/CONT_AWD_1": `{
			"generated_unique_award_id": "CONT_AWD_1",
			"description": "LUNAR LANDER",
			"total_obligation": 1500000.5,
			"recipient": {"recipient_hash": "r-1", "recipient_name": "ACME SPACE"}
		}`,
		"recipient/r-1": `{"recipient_hash": "r-1", "recipient_name": "ACME SPACE", "duns": "123456789"}`,
	}
}

func TestRegistry_OpenCloseLookup(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	f := &stubFetcher{}

	h := reg.Open(f)
	require.False(t, h.IsZero())
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Lookup(h)
	require.True(t, ok)
	assert.Same(t, f, got)

	assert.True(t, reg.Close(h))
	assert.False(t, reg.Close(h), "second Close should report unknown handle")

	_, ok = h.Lookup()
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ForeignHandle(t *testing.T) {
	a := NewRegistry(zerolog.Nop())
	b := NewRegistry(zerolog.Nop())
	h := a.Open(&stubFetcher{})

	_, ok := b.Lookup(h)
	assert.False(t, ok)
	assert.False(t, b.Close(h))
}

func TestHandle_Zero(t *testing.T) {
	var h Handle
	assert.True(t, h.IsZero())
	assert.Equal(t, "detached", h.String())
	_, ok := h.Lookup()
	assert.False(t, ok)
}

func TestRecord_PresentFieldNeedsNoSession(t *testing.T) {
	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{"Award Amount": 42}`), Handle{})

	v, err := rec.Get(context.Background(), "Award Amount")
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Float())
}

func TestRecord_LazyLoadFetchesOnce(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	f := &stubFetcher{details: awardDetails()}
	h := reg.Open(f)
	ctx := context.Background()

	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{"generated_unique_award_id":"CONT_AWD_1","description":null}`), h)
	assert.Equal(t, Unresolved, rec.Field("description").State)

	v, err := rec.Get(ctx, "description")
	require.NoError(t, err)
	assert.Equal(t, "LUNAR LANDER", v.String())
	assert.True(t, rec.Loaded())
	assert.Equal(t, Resolved, rec.Field("description").State)

	// A key absent from the detail document does not trigger a second fetch.
	missing, err := rec.Get(ctx, "no_such_field")
	require.NoError(t, err)
	assert.False(t, missing.Exists())
	assert.Equal(t, 1, f.Calls())
}

func TestRecord_AlternativePaths(t *testing.T) {
	rec := NewRecord("award", "x", json.RawMessage(`{"total_obligation": 7}`), Handle{})

	f := rec.Field("Award Amount", "total_obligation")
	assert.Equal(t, Resolved, f.State)
	assert.Equal(t, "total_obligation", f.Path)
	assert.Equal(t, int64(7), f.Value.Int())
}

func TestRecord_DetachedAfterClose(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	f := &stubFetcher{details: awardDetails()}
	h := reg.Open(f)
	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{}`), h)

	reg.Close(h)

	_, err := rec.Get(context.Background(), "description")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDetached))

	var detached *DetachedStateError
	require.True(t, errors.As(err, &detached))
	assert.Equal(t, "award", detached.Resource)
	assert.Equal(t, "CONT_AWD_1", detached.ID)
	assert.Equal(t, 0, f.Calls())
	assert.False(t, rec.Loaded(), "failed load must allow a retry after reattach")
}

func TestRecord_ReattachRestoresLazyLoading(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	old := reg.Open(&stubFetcher{})
	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{}`), old)
	reg.Close(old)

	f := &stubFetcher{details: awardDetails()}
	rec.Reattach(reg.Open(f), false)

	v, err := rec.Get(context.Background(), "description")
	require.NoError(t, err)
	assert.Equal(t, "LUNAR LANDER", v.String())
	assert.True(t, rec.Attached())
}

func TestRecord_RecursiveReattach(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	ctx := context.Background()
	f := &stubFetcher{details: awardDetails()}
	h := reg.Open(f)

	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{"recipient":{"recipient_hash":"r-1"}}`), h)
	child, err := rec.Child(ctx, "recipient", "recipient", "recipient_hash")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, "r-1", child.ID())

	again, err := rec.Child(ctx, "recipient", "recipient", "recipient_hash")
	require.NoError(t, err)
	assert.Same(t, child, again)

	reg.Close(h)
	next := reg.Open(f)

	rec.Reattach(next, false)
	_, err = child.Get(ctx, "duns")
	assert.ErrorIs(t, err, ErrDetached, "non-recursive reattach leaves children detached")

	rec.Reattach(next, true)
	v, err := child.Get(ctx, "duns")
	require.NoError(t, err)
	assert.Equal(t, "123456789", v.String())
}

func TestRecord_ChildFromFollowsReattach(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	ctx := context.Background()
	f := &stubFetcher{details: awardDetails()}
	h := reg.Open(f)

	rec := NewRecord("award", "CONT_AWD_1", json.RawMessage(`{"recipient_id":"r-1"}`), h)
	child := rec.ChildFrom("recipient", "recipient", "r-1", json.RawMessage(`{"recipient_hash":"r-1"}`))
	assert.Same(t, child, rec.ChildFrom("recipient", "recipient", "r-1", json.RawMessage(`{}`)))

	nested, err := rec.Child(ctx, "recipient", "recipient", "recipient_hash")
	require.NoError(t, err)
	assert.Same(t, child, nested, "Child returns the adopted record at the same path")

	reg.Close(h)
	_, err = child.Get(ctx, "duns")
	assert.ErrorIs(t, err, ErrDetached)

	rec.Reattach(reg.Open(f), true)
	v, err := child.Get(ctx, "duns")
	require.NoError(t, err)
	assert.Equal(t, "123456789", v.String())
}

func TestRecord_ChildAbsent(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	h := reg.Open(&stubFetcher{details: map[string]string{"award/a": `{"other": 1}`}})
	rec := NewRecord("award", "a", json.RawMessage(`{}`), h)

	child, err := rec.Child(context.Background(), "recipient", "recipient", "recipient_hash")
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestRecord_FetchErrorPropagates(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	boom := errors.New("upstream 500")
	h := reg.Open(&stubFetcher{err: boom})
	rec := NewRecord("award", "a", nil, h)

	_, err := rec.Get(context.Background(), "description")
	assert.ErrorIs(t, err, boom)
}

func TestRecord_NoIdentifier(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	rec := NewRecord("award", "", nil, reg.Open(&stubFetcher{}))

	_, err := rec.Get(context.Background(), "description")
	assert.Error(t, err)
}

func TestMergeObject_KeysWithPathSyntax(t *testing.T) {
	out, err := mergeObject([]byte(`{"a":1}`), json.RawMessage(`{"a":2,"Total.Outlays":3,"b":{"c":4}}`))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]any{
		"a":             2.0,
		"Total.Outlays": 3.0,
		"b":             map[string]any{"c": 4.0},
	}, got)
}

func TestMergeObject_RejectsNonObject(t *testing.T) {
	_, err := mergeObject([]byte(`{}`), json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestRecord_MarshalJSON(t *testing.T) {
	rec := NewRecord("award", "a", json.RawMessage(`{"x":1}`), Handle{})
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(out))
}

func TestNewLoadedRecord_NeverFetches(t *testing.T) {
	f := &stubFetcher{details: awardDetails()}
	reg := NewRegistry(zerolog.Nop())
	h := reg.Open(f)

	rec := NewLoadedRecord("award", "CONT_AWD_1", json.RawMessage(`{"description": "FULL"}`), h)

	v, err := rec.Get(context.Background(), "total_obligation")
	require.NoError(t, err)
	assert.False(t, v.Exists())
	assert.True(t, rec.Loaded())
	assert.Zero(t, f.Calls())
}
