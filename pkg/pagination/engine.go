package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/client"
	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"
)

// Doer executes one API request. *client.Client implements it.
type Doer interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Plan describes one paginated result set.
type Plan struct {
	// Endpoint is the API path, e.g. "/search/spending_by_award/".
	Endpoint string

	// Method is POST (default) or GET.
	Method string

	// Payload is the JSON body for POST requests. Cursor fields are merged into it.
	Payload json.RawMessage

	// Query holds GET parameters. Cursor fields are added to a copy.
	Query url.Values

	// PageSize is capped at client.MaxPageSize; zero means the maximum.
	PageSize int

	// Offset is the index of the first record to emit.
	Offset int

	// Limit caps the number of emitted records; zero means unbounded.
	Limit int

	// MaxPages stops the run after that many fetches; zero means unbounded.
	MaxPages int

	// Cursor creates the position descriptor; nil means NewPageCursor.
	Cursor CursorFactory
}

func (p Plan) method() string {
	if p.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(p.Method)
}

func (p Plan) pageSize() int {
	if p.PageSize <= 0 || p.PageSize > client.MaxPageSize {
		return client.MaxPageSize
	}
	return p.PageSize
}

func (p Plan) cursor() Cursor {
	if p.Cursor == nil {
		return NewPageCursor()
	}
	return p.Cursor()
}

// Engine runs plans against a Doer.
type Engine struct {
	doer   Doer
	logger zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(doer Doer, logger zerolog.Logger) *Engine {
	return &Engine{
		doer:   doer,
		logger: logger.With().Str("component", "pagination").Logger(),
	}
}

// Records returns a lazy sequence over the plan. Each iteration starts a new
// run from the first page. Iteration ends after the first error.
func (e *Engine) Records(ctx context.Context, plan Plan) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		stopped := false
		_, err := e.Run(ctx, plan, func(rec json.RawMessage) bool {
			if !yield(rec, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// Collect runs the plan and returns every emitted record.
func (e *Engine) Collect(ctx context.Context, plan Plan) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if _, err := e.Run(ctx, plan, func(rec json.RawMessage) bool {
		out = append(out, rec)
		return true
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Run fetches pages in cursor order and passes each record to yield until the
// result set is exhausted, the limit is reached, MaxPages is hit or yield
// returns false.
func (e *Engine) Run(ctx context.Context, plan Plan, yield func(json.RawMessage) bool) (Result, error) {
	start := time.Now()
	pageSize := plan.pageSize()
	cursor := plan.cursor()

	skip, remaining := begin(plan, cursor)

	var res Result
	state := StateStart
	logger := e.logger.With().
		Str("endpoint", plan.Endpoint).
		Str("cursor", cursor.Kind()).
		Logger()

	finish := func(s State, reason StopReason) (Result, error) {
		res.Reason = reason
		paginationStopsTotal.WithLabelValues(string(reason)).Inc()
		logger.Debug().
			Str("state", s.String()).
			Str("reason", string(reason)).
			Int("pages", res.Pages).
			Int("emitted", res.Emitted).
			Dur("duration", time.Since(start)).
			Msg("Pagination finished")
		return res, nil
	}

	for {
		if plan.MaxPages > 0 && res.Pages >= plan.MaxPages {
			return finish(state, StopMaxPages)
		}

		state = StateFetchPage
		size := cursor.Size(pageSize, remaining)
		page, err := e.fetch(ctx, plan, cursor, size)
		if err != nil {
			return res, fmt.Errorf("fetch page %d of %s: %w", res.Pages+1, plan.Endpoint, err)
		}
		res.Pages++
		pagesFetchedTotal.WithLabelValues(plan.Endpoint).Inc()

		logger.Debug().
			Int("page", res.Pages).
			Int("requested", size).
			Int("received", len(page.Records)).
			Bool("has_more", page.HasMore).
			Msg("Page fetched")

		for _, rec := range page.Records {
			if remaining == 0 {
				break
			}
			if remaining > 0 {
				remaining--
			}
			if skip > 0 {
				skip--
				continue
			}
			res.Emitted++
			if !yield(rec) {
				return finish(StateDone, StopConsumer)
			}
		}

		switch {
		case remaining == 0:
			return finish(StateLimitReached, StopLimitReached)
		case !page.HasMore, len(page.Records) == 0:
			return finish(StateExhausted, StopExhausted)
		case page.Short():
			logger.Warn().
				Int("page", res.Pages).
				Int("requested", size).
				Int("received", len(page.Records)).
				Msg("Short page with hasNext set, stopping")
			return finish(StateExhausted, StopShortPage)
		}

		if err := cursor.Advance(page, size); err != nil {
			return res, fmt.Errorf("advance cursor after page %d of %s: %w", res.Pages, plan.Endpoint, err)
		}
		state = StateHasMore
	}
}

// fetch requests and parses one page.
func (e *Engine) fetch(ctx context.Context, plan Plan, cursor Cursor, size int) (*Page, error) {
	req, err := BuildRequest(plan, cursor.Params(size))
	if err != nil {
		return nil, err
	}
	resp, err := e.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParsePage(resp.Body, size)
}

// FirstRequest returns the request a run of plan starts with.
func FirstRequest(plan Plan) (client.Request, error) {
	cursor := plan.cursor()
	_, remaining := begin(plan, cursor)
	return BuildRequest(plan, cursor.Params(cursor.Size(plan.pageSize(), remaining)))
}

// begin positions cursor at the plan's offset. remaining counts records still
// needed from upstream, skipped ones included, and is negative when unbounded.
func begin(plan Plan, cursor Cursor) (skip, remaining int) {
	want := -1
	if plan.Limit > 0 {
		want = plan.Limit
	}
	skip = cursor.Begin(max(plan.Offset, 0), plan.pageSize(), want)
	remaining = -1
	if want >= 0 {
		remaining = skip + want
	}
	return skip, remaining
}

// BuildRequest merges cursor params into the plan's payload (POST) or query (GET).
func BuildRequest(plan Plan, params []Param) (client.Request, error) {
	req := client.Request{Method: plan.method(), Endpoint: plan.Endpoint}

	if req.Method == http.MethodGet {
		query := url.Values{}
		for k, vs := range plan.Query {
			query[k] = append([]string(nil), vs...)
		}
		for _, p := range params {
			query.Set(p.Key, p.Text())
		}
		req.Query = query
		return req, nil
	}

	body := []byte("{}")
	if len(plan.Payload) > 0 {
		body = append([]byte(nil), plan.Payload...)
	}
	for _, p := range params {
		var err error
		if body, err = sjson.SetRawBytes(body, p.Key, p.Value); err != nil {
			return client.Request{}, fmt.Errorf("set %s: %w", p.Key, err)
		}
	}
	req.Body = json.RawMessage(body)
	return req, nil
}
