package query

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/planetary-society/usaspending-orm/pkg/cache"
	"github.com/planetary-society/usaspending-orm/pkg/client"
	"github.com/planetary-society/usaspending-orm/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Accumulator turns the effective filters into a request payload.
type Accumulator func(filters Filters) (map[string]any, error)

// Spec describes how a resource is searched, counted and decoded.
type Spec[T any] struct {
	// Resource names the result type in logs and errors.
	Resource string

	// Endpoint is the paginated search endpoint.
	Endpoint string

	// Method defaults to POST.
	Method string

	// Payload builds the search body. Nil means {"filters": filters}.
	Payload Accumulator

	// CountEndpoint is used by Count. Empty means Count is unsupported.
	CountEndpoint string

	// CountPayload builds the count body. Nil means {"filters": filters}.
	CountPayload Accumulator

	// CountPath locates the count in the count response (gjson syntax).
	// Nil means "count".
	CountPath func(filters Filters) (string, error)

	// Validate checks the filters before any request is built.
	Validate func(filters Filters) error

	// Transform decodes one raw record.
	Transform func(raw json.RawMessage) (T, error)

	// Cursor defaults to pagination.NewPageCursor.
	Cursor pagination.CursorFactory
}

// Query is an immutable query. Every builder method returns a new value and
// leaves the receiver unchanged.
type Query[T any] struct {
	spec   *Spec[T]
	engine *pagination.Engine
	doer   pagination.Doer
	logger zerolog.Logger

	filters    *filterNode
	orderField string
	orderDir   Direction
	limit      int
	hasLimit   bool
	pageSize   int
	maxPages   int
	err        *ValidationError
}

// New creates an empty query over spec.
func New[T any](doer pagination.Doer, spec Spec[T], logger zerolog.Logger) Query[T] {
	logger = logger.With().Str("resource", spec.Resource).Logger()
	return Query[T]{
		spec:     &spec,
		engine:   pagination.NewEngine(doer, logger),
		doer:     doer,
		logger:   logger,
		pageSize: client.MaxPageSize,
	}
}

func (q Query[T]) invalid(err *ValidationError) Query[T] {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Invalidate records err on the returned query unless an earlier error is
// already recorded. Resources use it for input checks of their own.
func (q Query[T]) Invalidate(err *ValidationError) Query[T] {
	if err == nil {
		return q
	}
	return q.invalid(err)
}

// WithFilter sets filter key to value, replacing any earlier value.
func (q Query[T]) WithFilter(key string, value any) Query[T] {
	if strings.TrimSpace(key) == "" {
		return q.invalid(Invalid("filter", "key must not be empty"))
	}
	q.filters = q.filters.push(key, value, false)
	return q
}

// ExtendFilter appends values to the list held by filter key. Slice
// arguments are flattened.
func (q Query[T]) ExtendFilter(key string, values ...any) Query[T] {
	if strings.TrimSpace(key) == "" {
		return q.invalid(Invalid("filter", "key must not be empty"))
	}
	var flat []any
	for _, v := range values {
		flat = append(flat, toList(v)...)
	}
	q.filters = q.filters.push(key, flat, true)
	return q
}

// OrderBy sorts results by field.
func (q Query[T]) OrderBy(field string, dir Direction) Query[T] {
	if strings.TrimSpace(field) == "" {
		return q.invalid(Invalid("order_by", "field must not be empty"))
	}
	d := Direction(strings.ToLower(string(dir)))
	if d != Asc && d != Desc {
		return q.invalid(Invalid("order_by", "direction must be asc or desc (got %q)", dir))
	}
	q.orderField, q.orderDir = field, d
	return q
}

// Limit caps the total number of results across all pages.
func (q Query[T]) Limit(n int) Query[T] {
	if n < 0 {
		return q.invalid(Invalid("limit", "must be >= 0 (got %d)", n))
	}
	q.limit, q.hasLimit = n, true
	return q
}

// PageSize sets the number of records per request, capped at client.MaxPageSize.
func (q Query[T]) PageSize(n int) Query[T] {
	if n < 1 {
		return q.invalid(Invalid("page_size", "must be >= 1 (got %d)", n))
	}
	q.pageSize = min(n, client.MaxPageSize)
	return q
}

// MaxPages stops pagination after n fetches. Zero removes the bound.
func (q Query[T]) MaxPages(n int) Query[T] {
	if n < 0 {
		return q.invalid(Invalid("max_pages", "must be >= 0 (got %d)", n))
	}
	q.maxPages = n
	return q
}

// Err returns the recorded validation error, if any.
func (q Query[T]) Err() error {
	if q.err == nil {
		return nil
	}
	return q.err
}

// Filters returns the effective filter set.
func (q Query[T]) Filters() Filters {
	return q.filters.materialize()
}

// check runs builder and resource validation and returns the effective filters.
func (q Query[T]) check() (Filters, error) {
	if q.err != nil {
		return nil, q.err
	}
	filters := q.Filters()
	if q.spec.Validate != nil {
		if err := q.spec.Validate(filters); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

// plan builds the pagination plan for the records in [offset, offset+limit).
// A zero limit means unbounded.
func (q Query[T]) plan(offset, limit int) (pagination.Plan, error) {
	filters, err := q.check()
	if err != nil {
		return pagination.Plan{}, err
	}

	payload, err := accumulate(q.spec.Payload, filters)
	if err != nil {
		return pagination.Plan{}, err
	}
	if q.orderField != "" {
		payload["sort"] = q.orderField
		payload["order"] = string(q.orderDir)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pagination.Plan{}, fmt.Errorf("encode %s payload: %w", q.spec.Resource, err)
	}

	return pagination.Plan{
		Endpoint: q.spec.Endpoint,
		Method:   q.spec.Method,
		Payload:  body,
		PageSize: q.pageSize,
		Offset:   offset,
		Limit:    limit,
		MaxPages: q.maxPages,
		Cursor:   q.spec.Cursor,
	}, nil
}

// window clamps [start, stop) to the query limit. stop < 0 means open ended.
func (q Query[T]) window(start, stop int) (offset, limit int, empty bool) {
	if q.hasLimit && (stop < 0 || stop > q.limit) {
		stop = q.limit
	}
	if stop >= 0 && stop <= start {
		return 0, 0, true
	}
	if stop < 0 {
		return start, 0, false
	}
	return start, stop - start, false
}

// Count returns the total number of matching records with one request to the
// count endpoint. It ignores Limit.
func (q Query[T]) Count(ctx context.Context) (int, error) {
	filters, err := q.check()
	if err != nil {
		return 0, err
	}
	if q.spec.CountEndpoint == "" {
		return 0, fmt.Errorf("%s: %w", q.spec.Resource, ErrCountUnsupported)
	}

	payload, err := accumulate(q.spec.CountPayload, filters)
	if err != nil {
		return 0, err
	}
	path := "count"
	if q.spec.CountPath != nil {
		if path, err = q.spec.CountPath(filters); err != nil {
			return 0, err
		}
	}

	resp, err := q.doer.Do(ctx, client.Request{
		Method:   http.MethodPost,
		Endpoint: q.spec.CountEndpoint,
		Body:     payload,
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.spec.Resource, err)
	}

	v := gjson.ParseBytes(resp.Body)
	if path != "" {
		v = v.Get(path)
	}
	if v.Type != gjson.Number {
		return 0, &client.APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: client.ErrorClassPayload,
			Message:    fmt.Sprintf("count response has no number at %q", path),
		}
	}

	q.logger.Debug().Int64("count", v.Int()).Str("path", path).Msg("Count fetched")
	return int(v.Int()), nil
}

// First fetches one page holding a single record and returns it. ok is false
// when the result set is empty.
func (q Query[T]) First(ctx context.Context) (item T, ok bool, err error) {
	items, err := q.Slice(ctx, 0, 1)
	if err != nil || len(items) == 0 {
		return item, false, err
	}
	return items[0], true, nil
}

// At returns the record at index i. Negative indices count from the end and
// are resolved with Count. Only the page holding i is fetched when the cursor
// can seek.
func (q Query[T]) At(ctx context.Context, i int) (T, error) {
	var zero T

	if i < 0 {
		total, err := q.total(ctx)
		if err != nil {
			return zero, err
		}
		i += total
		if i < 0 {
			return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i-total)
		}
	}

	items, err := q.Slice(ctx, i, i+1)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return items[0], nil
}

// Slice returns the records in [start, stop), fetching only the pages that
// cover the range. Negative bounds count from the end and are resolved with Count.
func (q Query[T]) Slice(ctx context.Context, start, stop int) ([]T, error) {
	if _, err := q.check(); err != nil {
		return nil, err
	}
	if start < 0 || stop < 0 {
		total, err := q.total(ctx)
		if err != nil {
			return nil, err
		}
		if start < 0 {
			start = max(start+total, 0)
		}
		if stop < 0 {
			stop = max(stop+total, 0)
		}
	}

	offset, limit, empty := q.window(start, stop)
	if empty {
		return nil, nil
	}
	return q.collect(ctx, offset, limit)
}

// All fetches every record, respecting Limit and MaxPages.
func (q Query[T]) All(ctx context.Context) ([]T, error) {
	offset, limit, empty := q.window(0, -1)
	if empty {
		if _, err := q.check(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	items, err := q.collect(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	q.logger.Debug().Int("results", len(items)).Msg("Query returned all results")
	return items, nil
}

// Records returns a lazy sequence over the results. Every iteration starts
// again from the first page.
func (q Query[T]) Records(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		offset, limit, empty := q.window(0, -1)
		plan, err := q.plan(offset, limit)
		if err != nil {
			yield(zero, err)
			return
		}
		if empty {
			return
		}
		for raw, err := range q.engine.Records(ctx, plan) {
			if err != nil {
				yield(zero, err)
				return
			}
			item, err := q.transform(raw)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Fingerprint identifies the request that fetches the page holding offset.
// Queries built from the same filters in any order share fingerprints.
func (q Query[T]) Fingerprint(offset int) (cache.Fingerprint, error) {
	start, limit, _ := q.window(offset, -1)
	plan, err := q.plan(start, limit)
	if err != nil {
		return "", err
	}
	req, err := pagination.FirstRequest(plan)
	if err != nil {
		return "", err
	}
	return cache.RequestKey{
		Method:   req.Method,
		Endpoint: req.Endpoint,
		Query:    req.Query,
		Payload:  req.Body,
	}.Fingerprint(), nil
}

func (q Query[T]) collect(ctx context.Context, offset, limit int) ([]T, error) {
	plan, err := q.plan(offset, limit)
	if err != nil {
		return nil, err
	}
	raws, err := q.engine.Collect(ctx, plan)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raws))
	for _, raw := range raws {
		item, err := q.transform(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// total is Count clamped to Limit.
func (q Query[T]) total(ctx context.Context) (int, error) {
	n, err := q.Count(ctx)
	if err != nil {
		return 0, err
	}
	if q.hasLimit {
		n = min(n, q.limit)
	}
	return n, nil
}

func (q Query[T]) transform(raw json.RawMessage) (T, error) {
	if q.spec.Transform == nil {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return item, fmt.Errorf("decode %s record: %w", q.spec.Resource, err)
		}
		return item, nil
	}
	item, err := q.spec.Transform(raw)
	if err != nil {
		return item, fmt.Errorf("transform %s record: %w", q.spec.Resource, err)
	}
	return item, nil
}

func accumulate(acc Accumulator, filters Filters) (map[string]any, error) {
	if acc == nil {
		return map[string]any{"filters": map[string]any(filters)}, nil
	}
	payload, err := acc(filters)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}
