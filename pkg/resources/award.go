package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/planetary-society/usaspending-orm/pkg/session"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// AwardURLBase is the public award page prefix.
const AwardURLBase = "https://www.usaspending.gov/award/"

// Award identifier paths, most specific first. Search rows carry
// generated_internal_id, detail documents generated_unique_award_id.
var awardIDPaths = []string{"generated_unique_award_id", "generated_internal_id"}

// Field paths for accessors. Search rows use display names, detail
// documents use snake_case keys.
var (
	primeAwardIDPaths    = []string{"Award ID", "piid", "fain", "uri"}
	descriptionPaths     = []string{"description", "Description"}
	totalObligationPaths = []string{"total_obligation", "Award Amount"}
	awardAmountPaths     = []string{"Award Amount", "Loan Amount", "Loan Value", "total_obligation"}
	totalOutlayPaths     = []string{"total_account_outlay", "Total Outlays"}
)

// Award is a spending award. Fields missing from a search row are loaded from
// the award detail endpoint on first access, once.
type Award struct {
	record *session.Record
}

func newAward(raw json.RawMessage, h session.Handle, loaded bool) *Award {
	id := ""
	for _, p := range awardIDPaths {
		if v := gjson.GetBytes(raw, p); v.Exists() && v.String() != "" {
			id = v.String()
			break
		}
	}
	if loaded {
		return &Award{record: session.NewLoadedRecord(AwardResource, id, raw, h)}
	}
	return &Award{record: session.NewRecord(AwardResource, id, raw, h)}
}

// ID returns the generated unique award id.
func (a *Award) ID() string { return a.record.ID() }

// Record exposes the underlying lazily loaded record.
func (a *Award) Record() *session.Record { return a.record }

// Attached reports whether the award's client is still open.
func (a *Award) Attached() bool { return a.record.Attached() }

// Reattach binds the award and its recipient to another client session.
func (a *Award) Reattach(h session.Handle) { a.record.Reattach(h, true) }

// Load fetches the full award detail if it has not been loaded yet.
func (a *Award) Load(ctx context.Context) error { return a.record.Load(ctx) }

func (a *Award) MarshalJSON() ([]byte, error) { return a.record.MarshalJSON() }

// PrimeAwardID returns the PIID, FAIN or URI of the award.
func (a *Award) PrimeAwardID(ctx context.Context) (string, error) {
	return a.str(ctx, primeAwardIDPaths)
}

func (a *Award) Description(ctx context.Context) (string, error) {
	return a.str(ctx, descriptionPaths)
}

// TotalObligation returns the obligated amount in dollars. Zero when unknown.
func (a *Award) TotalObligation(ctx context.Context) (float64, error) {
	return a.num(ctx, totalObligationPaths)
}

// AwardAmount returns the headline amount: obligation for most awards, face
// value for loans.
func (a *Award) AwardAmount(ctx context.Context) (float64, error) {
	return a.num(ctx, awardAmountPaths)
}

func (a *Award) TotalOutlay(ctx context.Context) (float64, error) {
	return a.num(ctx, totalOutlayPaths)
}

// URL returns the public usaspending.gov page of the award, or "" without an id.
func (a *Award) URL() string {
	if a.ID() == "" {
		return ""
	}
	return AwardURLBase + url.PathEscape(a.ID()) + "/"
}

// Recipient returns the award recipient. A nested recipient object is
// preferred; search rows only carry a flat name and id, which are wrapped
// instead of triggering a detail fetch. Returns nil when the award has no
// recipient after loading.
func (a *Award) Recipient(ctx context.Context) (*Recipient, error) {
	if a.record.Field("recipient").State == session.Resolved {
		return a.nestedRecipient(ctx)
	}

	flat := a.record.Field("Recipient Name", "recipient_id")
	if flat.State == session.Resolved {
		id := a.record.Field("recipient_id").Value.String()
		doc, err := sjson.SetBytes([]byte("{}"), "recipient_hash", id)
		if err != nil {
			return nil, fmt.Errorf("award %q recipient: %w", a.ID(), err)
		}
		if name := a.record.Field("Recipient Name"); name.State == session.Resolved {
			if doc, err = sjson.SetBytes(doc, "recipient_name", name.Value.String()); err != nil {
				return nil, fmt.Errorf("award %q recipient: %w", a.ID(), err)
			}
		}
		return &Recipient{record: a.record.ChildFrom("recipient", RecipientResource, id, doc)}, nil
	}
	return a.nestedRecipient(ctx)
}

func (a *Award) nestedRecipient(ctx context.Context) (*Recipient, error) {
	child, err := a.record.Child(ctx, "recipient", RecipientResource, "recipient_hash")
	if err != nil {
		return nil, fmt.Errorf("award %q recipient: %w", a.ID(), err)
	}
	if child == nil {
		return nil, nil
	}
	return &Recipient{record: child}, nil
}

func (a *Award) str(ctx context.Context, paths []string) (string, error) {
	v, err := a.record.Get(ctx, paths...)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (a *Award) num(ctx context.Context, paths []string) (float64, error) {
	v, err := a.record.Get(ctx, paths...)
	if err != nil {
		return 0, err
	}
	return v.Float(), nil
}

// Recipient is the entity receiving an award.
type Recipient struct {
	record *session.Record
}

// ID returns the recipient hash used by the recipient endpoint.
func (r *Recipient) ID() string { return r.record.ID() }

func (r *Recipient) Record() *session.Record { return r.record }

// Name returns the recipient's legal name.
func (r *Recipient) Name(ctx context.Context) (string, error) {
	v, err := r.record.Get(ctx, "recipient_name", "name")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// UEI returns the unique entity identifier.
func (r *Recipient) UEI(ctx context.Context) (string, error) {
	v, err := r.record.Get(ctx, "recipient_uei", "uei")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (r *Recipient) MarshalJSON() ([]byte, error) { return r.record.MarshalJSON() }

func setString(doc json.RawMessage, path, value string) (json.RawMessage, error) {
	out, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return doc, err
	}
	return out, nil
}
