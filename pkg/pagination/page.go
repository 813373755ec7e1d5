package pagination

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedPage is returned when a response is not a paginated result body.
var ErrMalformedPage = errors.New("malformed page")

// Page is one fetched unit of a paginated result.
type Page struct {
	// Records in upstream order.
	Records []json.RawMessage

	// HasMore is the upstream "hasNext" flag.
	HasMore bool

	// Total is the upstream total count hint, valid when HasTotal is set.
	Total    int
	HasTotal bool

	// Requested is the page size that was asked for.
	Requested int

	// Meta is the raw page_metadata object.
	Meta gjson.Result
}

// ParsePage decodes a paginated body:
//
//	{"results": [...], "page_metadata": {"hasNext": bool, "page": int, "total": int}}
func ParsePage(body []byte, requested int) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPage)
	}
	doc := gjson.ParseBytes(body)

	results := doc.Get("results")
	if !results.IsArray() {
		return nil, fmt.Errorf("%w: missing results array", ErrMalformedPage)
	}

	meta := doc.Get("page_metadata")
	page := &Page{
		Records:   make([]json.RawMessage, 0, len(results.Array())),
		Requested: requested,
		Meta:      meta,
		HasMore:   firstOf(meta, "hasNext", "has_next_page").Bool(),
	}
	results.ForEach(func(_, rec gjson.Result) bool {
		page.Records = append(page.Records, json.RawMessage(rec.Raw))
		return true
	})

	if total := firstOf(meta, "total", "count"); total.Type == gjson.Number {
		page.Total = int(total.Int())
		page.HasTotal = true
	}
	return page, nil
}

// Short reports whether the upstream returned fewer records than requested.
func (p *Page) Short() bool {
	return len(p.Records) < p.Requested
}

func firstOf(doc gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if v := doc.Get(path); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
