package resources

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/planetary-society/usaspending-orm/pkg/cache"
	"github.com/planetary-society/usaspending-orm/pkg/client"
	"github.com/planetary-society/usaspending-orm/pkg/query"
	"github.com/tidwall/gjson"
)

// AgencyType selects awarding or funding agencies.
type AgencyType string

const (
	Awarding AgencyType = "awarding"
	Funding  AgencyType = "funding"
)

// AgencyTier selects top tier departments or sub tier agencies.
type AgencyTier string

const (
	Toptier AgencyTier = "toptier"
	Subtier AgencyTier = "subtier"
)

// AmountRange bounds award amounts. Nil bounds are open.
type AmountRange struct {
	Lower *float64
	Upper *float64
}

// AwardSearch is an immutable award query.
type AwardSearch struct {
	awards *Awards
	q      query.Query[*Award]
}

func (s AwardSearch) with(q query.Query[*Award]) AwardSearch {
	s.q = q
	return s
}

// Query returns the underlying generic query.
func (s AwardSearch) Query() query.Query[*Award] { return s.q }

// WithFilter sets a raw API filter.
func (s AwardSearch) WithFilter(key string, value any) AwardSearch {
	return s.with(s.q.WithFilter(key, value))
}

// WithAwardTypes adds award type codes. All codes must share a category.
func (s AwardSearch) WithAwardTypes(codes ...string) AwardSearch {
	return s.with(s.q.ExtendFilter("award_type_codes", codes))
}

// Contracts restricts the search to contract awards.
func (s AwardSearch) Contracts() AwardSearch {
	return s.WithAwardTypes(CategoryContracts.Codes()...)
}

// IDVs restricts the search to indefinite delivery vehicles.
func (s AwardSearch) IDVs() AwardSearch {
	return s.WithAwardTypes(CategoryIDVs.Codes()...)
}

func (s AwardSearch) Loans() AwardSearch {
	return s.WithAwardTypes(CategoryLoans.Codes()...)
}

func (s AwardSearch) Grants() AwardSearch {
	return s.WithAwardTypes(CategoryGrants.Codes()...)
}

func (s AwardSearch) DirectPayments() AwardSearch {
	return s.WithAwardTypes(CategoryDirectPayments.Codes()...)
}

func (s AwardSearch) OtherAssistance() AwardSearch {
	return s.WithAwardTypes(CategoryOtherAssistance.Codes()...)
}

// InTimePeriod adds an action date range.
func (s AwardSearch) InTimePeriod(start, end time.Time) AwardSearch {
	if end.Before(start) {
		return s.with(s.q.Invalidate(query.Invalid("time_period", "end %s is before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))))
	}
	return s.with(s.q.ExtendFilter("time_period", map[string]any{
		"start_date": start.Format(time.DateOnly),
		"end_date":   end.Format(time.DateOnly),
	}))
}

// ForFiscalYear adds the federal fiscal year, October 1 of year-1 to September 30 of year.
func (s AwardSearch) ForFiscalYear(year int) AwardSearch {
	start := time.Date(year-1, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
	return s.InTimePeriod(start, end)
}

// ForAgency adds an agency by name.
func (s AwardSearch) ForAgency(name string, agencyType AgencyType, tier AgencyTier) AwardSearch {
	switch {
	case name == "":
		return s.with(s.q.Invalidate(query.Invalid("agencies", "name must not be empty")))
	case agencyType != Awarding && agencyType != Funding:
		return s.with(s.q.Invalidate(query.Invalid("agencies", "type must be awarding or funding (got %q)", agencyType)))
	case tier != Toptier && tier != Subtier:
		return s.with(s.q.Invalidate(query.Invalid("agencies", "tier must be toptier or subtier (got %q)", tier)))
	}
	return s.with(s.q.ExtendFilter("agencies", map[string]any{
		"type": string(agencyType),
		"tier": string(tier),
		"name": name,
	}))
}

// WithKeywords adds keyword search terms.
func (s AwardSearch) WithKeywords(keywords ...string) AwardSearch {
	return s.with(s.q.ExtendFilter("keywords", keywords))
}

// WithRecipientSearchText adds recipient name, UEI or DUNS search terms.
func (s AwardSearch) WithRecipientSearchText(terms ...string) AwardSearch {
	return s.with(s.q.ExtendFilter("recipient_search_text", terms))
}

// WithAwardIDs adds award identifiers (PIID, FAIN or URI).
func (s AwardSearch) WithAwardIDs(ids ...string) AwardSearch {
	return s.with(s.q.ExtendFilter("award_ids", ids))
}

// WithAwardAmounts adds award amount ranges.
func (s AwardSearch) WithAwardAmounts(ranges ...AmountRange) AwardSearch {
	out := make([]any, 0, len(ranges))
	for _, r := range ranges {
		if r.Lower != nil && r.Upper != nil && *r.Upper < *r.Lower {
			return s.with(s.q.Invalidate(query.Invalid("award_amounts", "upper bound %g is below lower bound %g", *r.Upper, *r.Lower)))
		}
		bound := map[string]any{}
		if r.Lower != nil {
			bound["lower_bound"] = *r.Lower
		}
		if r.Upper != nil {
			bound["upper_bound"] = *r.Upper
		}
		out = append(out, bound)
	}
	return s.with(s.q.ExtendFilter("award_amounts", out))
}

// OrderBy sorts by an API field name such as "Award Amount".
func (s AwardSearch) OrderBy(field string, dir query.Direction) AwardSearch {
	return s.with(s.q.OrderBy(field, dir))
}

// Limit caps the number of awards returned.
func (s AwardSearch) Limit(n int) AwardSearch {
	return s.with(s.q.Limit(n))
}

func (s AwardSearch) PageSize(n int) AwardSearch {
	return s.with(s.q.PageSize(n))
}

func (s AwardSearch) MaxPages(n int) AwardSearch {
	return s.with(s.q.MaxPages(n))
}

// Err returns the first builder validation error.
func (s AwardSearch) Err() error {
	return s.q.Err()
}

func (s AwardSearch) Filters() query.Filters {
	return s.q.Filters()
}

// Count returns the number of matching awards in the searched category.
func (s AwardSearch) Count(ctx context.Context) (int, error) {
	return s.q.Count(ctx)
}

func (s AwardSearch) First(ctx context.Context) (*Award, bool, error) {
	return s.q.First(ctx)
}

// At returns the award at index i. Negative indices count from the end.
func (s AwardSearch) At(ctx context.Context, i int) (*Award, error) {
	return s.q.At(ctx, i)
}

func (s AwardSearch) Slice(ctx context.Context, start, stop int) ([]*Award, error) {
	return s.q.Slice(ctx, start, stop)
}

func (s AwardSearch) All(ctx context.Context) ([]*Award, error) {
	return s.q.All(ctx)
}

// Records iterates lazily over matching awards, one page at a time.
func (s AwardSearch) Records(ctx context.Context) iter.Seq2[*Award, error] {
	return s.q.Records(ctx)
}

// Fingerprint is the cache fingerprint of the page request at offset.
func (s AwardSearch) Fingerprint(offset int) (cache.Fingerprint, error) {
	return s.q.Fingerprint(offset)
}

// CountByType returns the number of matching awards in every category. Unlike
// Count it does not require an award type filter.
func (s AwardSearch) CountByType(ctx context.Context) (map[Category]int, error) {
	if err := s.q.Err(); err != nil {
		return nil, err
	}
	resp, err := s.awards.client.Do(ctx, client.Request{
		Method:   http.MethodPost,
		Endpoint: AwardCountEndpoint,
		Body:     map[string]any{"filters": map[string]any(s.q.Filters())},
	})
	if err != nil {
		return nil, fmt.Errorf("count awards by type: %w", err)
	}

	results := gjson.GetBytes(resp.Body, "results")
	out := make(map[Category]int, len(categoryOrder))
	for _, cat := range categoryOrder {
		out[cat] = int(results.Get(cat.CountKey()).Int())
	}
	return out, nil
}

func validateFilters(f query.Filters) error {
	_, err := CategoryOf(f.Strings("award_type_codes"))
	return err
}

func searchPayload(f query.Filters) (map[string]any, error) {
	cat, err := CategoryOf(f.Strings("award_type_codes"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"filters": map[string]any(f),
		"fields":  searchFields(cat),
	}, nil
}

func countPath(f query.Filters) (string, error) {
	cat, err := CategoryOf(f.Strings("award_type_codes"))
	if err != nil {
		return "", err
	}
	return "results." + cat.CountKey(), nil
}

var baseSearchFields = []string{
	"Award ID",
	"Recipient Name",
	"Description",
	"Awarding Agency",
	"Awarding Sub Agency",
	"generated_internal_id",
	"internal_id",
	"recipient_id",
}

var categorySearchFields = map[Category][]string{
	CategoryContracts: {"Start Date", "End Date", "Award Amount", "Total Outlays", "Contract Award Type", "NAICS", "PSC"},
	CategoryIDVs:      {"Start Date", "Last Date to Order", "Award Amount", "Total Outlays", "Contract Award Type", "NAICS", "PSC"},
	CategoryLoans:     {"Issued Date", "Loan Value", "Subsidy Cost", "SAI Number", "CFDA Number", "Assistance Listings", "primary_assistance_listing"},
}

var assistanceSearchFields = []string{
	"Start Date", "End Date", "Award Amount", "Total Outlays", "Award Type", "SAI Number", "CFDA Number", "Assistance Listings",
	"primary_assistance_listing",
}

// searchFields returns the columns requested for cat. The API rejects
// columns that do not apply to the category.
func searchFields(cat Category) []string {
	extra, ok := categorySearchFields[cat]
	if !ok {
		extra = assistanceSearchFields
	}
	fields := make([]string, 0, len(baseSearchFields)+len(extra))
	fields = append(fields, baseSearchFields...)
	return append(fields, extra...)
}
