package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/planetary-society/usaspending-orm/pkg/resources"
	"github.com/spf13/pflag"
)

// searchFlags are the award filters accepted by search and count.
type searchFlags struct {
	category   string
	codes      []string
	fiscalYear int
	agency     string
	agencyType string
	agencyTier string
	keywords   []string
	recipients []string
	awardIDs   []string
}

func (f *searchFlags) register(fs *pflag.FlagSet, categoryDefault string) {
	fs.StringVar(&f.category, "type", categoryDefault,
		"Award category ("+strings.Join(categoryNames(), ", ")+")")
	fs.StringSliceVar(&f.codes, "award-type", nil, "Award type codes (overrides --type)")
	fs.IntVar(&f.fiscalYear, "fiscal-year", 0, "Federal fiscal year")
	fs.StringVar(&f.agency, "agency", "", "Agency name")
	fs.StringVar(&f.agencyType, "agency-type", string(resources.Awarding), "Agency role (awarding, funding)")
	fs.StringVar(&f.agencyTier, "agency-tier", string(resources.Toptier), "Agency tier (toptier, subtier)")
	fs.StringSliceVar(&f.keywords, "keyword", nil, "Keyword search terms")
	fs.StringSliceVar(&f.recipients, "recipient", nil, "Recipient name, UEI or DUNS search terms")
	fs.StringSliceVar(&f.awardIDs, "award-id", nil, "PIID, FAIN or URI")
}

// apply adds the flags to s. The category is skipped when empty so that
// count --by-type can search every category.
func (f *searchFlags) apply(s resources.AwardSearch) (resources.AwardSearch, error) {
	switch {
	case len(f.codes) > 0:
		s = s.WithAwardTypes(f.codes...)
	case f.category != "":
		cat := resources.Category(f.category)
		if _, ok := resources.AwardTypeGroups[cat]; !ok {
			return s, fmt.Errorf("unknown award category %q (want one of %s)",
				f.category, strings.Join(categoryNames(), ", "))
		}
		s = s.WithAwardTypes(cat.Codes()...)
	}

	if f.fiscalYear != 0 {
		s = s.ForFiscalYear(f.fiscalYear)
	}
	if f.agency != "" {
		s = s.ForAgency(f.agency, resources.AgencyType(f.agencyType), resources.AgencyTier(f.agencyTier))
	}
	s = s.WithKeywords(f.keywords...).
		WithRecipientSearchText(f.recipients...).
		WithAwardIDs(f.awardIDs...)

	return s, s.Err()
}

func categoryNames() []string {
	names := make([]string, 0, len(resources.AwardTypeGroups))
	for cat := range resources.AwardTypeGroups {
		names = append(names, string(cat))
	}
	slices.Sort(names)
	return names
}
