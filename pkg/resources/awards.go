package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/planetary-society/usaspending-orm/pkg/client"
	"github.com/planetary-society/usaspending-orm/pkg/query"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Resource names used for lazy loading.
const (
	AwardResource     = "award"
	RecipientResource = "recipient"
)

// Award endpoints.
const (
	AwardSearchEndpoint = "/search/spending_by_award/"
	AwardCountEndpoint  = "/search/spending_by_award_count/"
)

// AwardDetailEndpoint is the detail document of award id.
func AwardDetailEndpoint(id string) string {
	return "/awards/" + url.PathEscape(id) + "/"
}

// RecipientDetailEndpoint is the detail document of recipient id.
func RecipientDetailEndpoint(id string) string {
	return "/recipient/" + url.PathEscape(id) + "/"
}

// Awards is the award resource.
type Awards struct {
	client *client.Client
	logger zerolog.Logger
}

// NewAwards creates the award resource and registers its detail endpoints
// with the client for lazy loading.
func NewAwards(c *client.Client, logger zerolog.Logger) *Awards {
	c.RegisterDetail(AwardResource, AwardDetailEndpoint)
	c.RegisterDetail(RecipientResource, RecipientDetailEndpoint)
	return &Awards{
		client: c,
		logger: logger.With().Str("resource", AwardResource).Logger(),
	}
}

// Search starts an award search. An award type filter from a single category
// is required before any terminal operation.
func (a *Awards) Search() AwardSearch {
	spec := query.Spec[*Award]{
		Resource:      AwardResource,
		Endpoint:      AwardSearchEndpoint,
		CountEndpoint: AwardCountEndpoint,
		Payload:       searchPayload,
		CountPath:     countPath,
		Validate:      validateFilters,
		Transform: func(raw json.RawMessage) (*Award, error) {
			return newAward(raw, a.client.Handle(), false), nil
		},
	}
	return AwardSearch{
		awards: a,
		q:      query.New(a.client, spec, a.logger).PageSize(a.client.PageSize()),
	}
}

// Get fetches the award with the given generated unique award id.
func (a *Awards) Get(ctx context.Context, id string) (*Award, error) {
	if strings.TrimSpace(id) == "" {
		return nil, query.Invalid("award_id", "must not be empty")
	}
	doc, err := a.client.Fetch(ctx, AwardResource, id)
	if err != nil {
		return nil, fmt.Errorf("get award %q: %w", id, err)
	}
	if !gjson.GetBytes(doc, "generated_unique_award_id").Exists() {
		if doc, err = setString(doc, "generated_unique_award_id", id); err != nil {
			return nil, fmt.Errorf("get award %q: %w", id, err)
		}
	}
	return newAward(doc, a.client.Handle(), true), nil
}

// Ref returns an award that is loaded on first access.
func (a *Awards) Ref(id string) (*Award, error) {
	if strings.TrimSpace(id) == "" {
		return nil, query.Invalid("award_id", "must not be empty")
	}
	doc, err := setString(json.RawMessage("{}"), "generated_unique_award_id", id)
	if err != nil {
		return nil, fmt.Errorf("award reference %q: %w", id, err)
	}
	return newAward(doc, a.client.Handle(), false), nil
}
