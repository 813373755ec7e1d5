package pagination

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrMissingToken is returned when a page announces more results but carries
// no continuation token.
var ErrMissingToken = errors.New("page_metadata has no last_record_unique_id")

// Param is one position field sent with a page request.
type Param struct {
	Key   string
	Value json.RawMessage
}

// Text returns the value as it appears in a query string.
func (p Param) Text() string {
	return gjson.ParseBytes(p.Value).String()
}

// Cursor is an opaque position descriptor for one run. Cursors are stateful
// and must not be shared between runs; use a CursorFactory.
type Cursor interface {
	// Kind names the cursor in logs and fingerprints.
	Kind() string

	// Begin positions the cursor so the first emitted record is at offset.
	// want is the number of records the run needs after offset, negative
	// when unbounded. It returns how many leading records of the fetched
	// pages must be discarded to reach offset.
	Begin(offset, pageSize, want int) (skip int)

	// Size returns how many records to request next. remaining is the number
	// of records the run still needs from upstream, negative when unbounded.
	Size(pageSize, remaining int) int

	// Params returns the position fields for a request of size records.
	Params(size int) []Param

	// Advance moves past a fetched page that was requested with size records.
	Advance(page *Page, size int) error
}

// CursorFactory creates a fresh cursor for each run.
type CursorFactory func() Cursor

// PageCursor addresses pages by number. The page size is fixed for a whole
// run so that page numbers stay aligned with offsets.
type PageCursor struct {
	page int
	size int
}

// NewPageCursor returns a cursor using "page" and "limit".
func NewPageCursor() Cursor { return &PageCursor{page: 1} }

func (c *PageCursor) Kind() string { return "page" }

func (c *PageCursor) Begin(offset, pageSize, want int) int {
	c.size = pageSize
	if want >= 0 {
		c.size = min(pageSize, max(offset+want, 1))
	}
	c.page = offset/c.size + 1
	return offset % c.size
}

func (c *PageCursor) Size(int, int) int { return c.size }

func (c *PageCursor) Params(size int) []Param {
	return []Param{
		{Key: "page", Value: json.RawMessage(strconv.Itoa(c.page))},
		{Key: "limit", Value: json.RawMessage(strconv.Itoa(size))},
	}
}

func (c *PageCursor) Advance(*Page, int) error {
	c.page++
	return nil
}

// OffsetCursor addresses records by absolute offset.
type OffsetCursor struct {
	offset int
}

// NewOffsetCursor returns a cursor using "offset" and "limit".
func NewOffsetCursor() Cursor { return &OffsetCursor{} }

func (c *OffsetCursor) Kind() string { return "offset" }

func (c *OffsetCursor) Begin(offset, _, _ int) int {
	c.offset = offset
	return 0
}

func (c *OffsetCursor) Size(pageSize, remaining int) int {
	return boundedSize(pageSize, remaining)
}

func (c *OffsetCursor) Params(size int) []Param {
	return []Param{
		{Key: "offset", Value: json.RawMessage(strconv.Itoa(c.offset))},
		{Key: "limit", Value: json.RawMessage(strconv.Itoa(size))},
	}
}

func (c *OffsetCursor) Advance(_ *Page, size int) error {
	c.offset += size
	return nil
}

// TokenCursor continues from the last record of the previous page. It cannot
// seek, so a run starting at an offset walks the preceding records.
type TokenCursor struct {
	lastID    json.RawMessage
	lastValue json.RawMessage
}

// NewTokenCursor returns a cursor using "last_record_unique_id" and
// "last_record_sort_value" from page_metadata.
func NewTokenCursor() Cursor { return &TokenCursor{} }

func (c *TokenCursor) Kind() string { return "token" }

func (c *TokenCursor) Begin(offset, _, _ int) int {
	c.lastID, c.lastValue = nil, nil
	return offset
}

func (c *TokenCursor) Size(pageSize, remaining int) int {
	return boundedSize(pageSize, remaining)
}

func (c *TokenCursor) Params(size int) []Param {
	params := []Param{{Key: "limit", Value: json.RawMessage(strconv.Itoa(size))}}
	if c.lastID != nil {
		params = append(params,
			Param{Key: "last_record_unique_id", Value: c.lastID},
			Param{Key: "last_record_sort_value", Value: c.lastValue},
		)
	}
	return params
}

func (c *TokenCursor) Advance(page *Page, _ int) error {
	id := page.Meta.Get("last_record_unique_id")
	if !id.Exists() || id.Type == gjson.Null {
		return ErrMissingToken
	}
	c.lastID = json.RawMessage(id.Raw)
	c.lastValue = json.RawMessage("null")
	if v := page.Meta.Get("last_record_sort_value"); v.Exists() {
		c.lastValue = json.RawMessage(v.Raw)
	}
	return nil
}

func boundedSize(pageSize, remaining int) int {
	if remaining >= 0 && remaining < pageSize {
		return remaining
	}
	return pageSize
}
