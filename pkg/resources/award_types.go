package resources

import (
	"slices"
	"sort"
	"strings"

	"github.com/planetary-society/usaspending-orm/pkg/query"
)

// Category groups award type codes. The search API only accepts codes of a
// single category per request.
type Category string

const (
	CategoryContracts       Category = "contracts"
	CategoryIDVs            Category = "idvs"
	CategoryLoans           Category = "loans"
	CategoryGrants          Category = "grants"
	CategoryDirectPayments  Category = "direct_payments"
	CategoryOtherAssistance Category = "other_assistance"
)

// AwardTypeGroups maps each category to its award type codes and descriptions.
var AwardTypeGroups = map[Category]map[string]string{
	CategoryContracts: {
		"A": "BPA Call",
		"B": "Purchase Order",
		"C": "Delivery Order",
		"D": "Definitive Contract",
	},
	CategoryLoans: {
		"07": "Direct Loan",
		"08": "Guaranteed/Insured Loan",
	},
	CategoryIDVs: {
		"IDV_A":   "GWAC Government Wide Acquisition Contract",
		"IDV_B":   "IDC Multi-Agency Contract, Other Indefinite Delivery Contract",
		"IDV_B_A": "IDC Indefinite Delivery Contract / Requirements",
		"IDV_B_B": "IDC Indefinite Delivery Contract / Indefinite Quantity",
		"IDV_B_C": "IDC Indefinite Delivery Contract / Definite Quantity",
		"IDV_C":   "FSS Federal Supply Schedule",
		"IDV_D":   "BOA Basic Ordering Agreement",
		"IDV_E":   "BPA Blanket Purchase Agreement",
	},
	CategoryGrants: {
		"02": "Block Grant",
		"03": "Formula Grant",
		"04": "Project Grant",
		"05": "Cooperative Agreement",
	},
	CategoryDirectPayments: {
		"06": "Direct Payment for Specified Use",
		"10": "Direct Payment with Unrestricted Use",
	},
	CategoryOtherAssistance: {
		"09": "Insurance",
		"11": "Other Financial Assistance",
		"-1": "Not Specified",
	},
}

var categoryOrder = []Category{
	CategoryContracts,
	CategoryLoans,
	CategoryIDVs,
	CategoryGrants,
	CategoryDirectPayments,
	CategoryOtherAssistance,
}

// Codes returns the sorted award type codes of c.
func (c Category) Codes() []string {
	codes := make([]string, 0, len(AwardTypeGroups[c]))
	for code := range AwardTypeGroups[c] {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CountKey is the key of c in the spending_by_award_count response.
func (c Category) CountKey() string {
	if c == CategoryOtherAssistance {
		return "other"
	}
	return string(c)
}

// CategoryOf returns the single category codes belong to. Unknown codes,
// mixed categories and an empty list are validation errors.
func CategoryOf(codes []string) (Category, error) {
	if len(codes) == 0 {
		return "", query.Invalid("award_type_codes", "a filter for award_type_codes is required")
	}

	var found []Category
	for _, code := range codes {
		cat, ok := categoryOfCode(code)
		if !ok {
			return "", query.Invalid("award_type_codes", "unknown award type code %q", code)
		}
		if !slices.Contains(found, cat) {
			found = append(found, cat)
		}
	}
	if len(found) > 1 {
		names := make([]string, len(found))
		for i, c := range found {
			names[i] = string(c)
		}
		return "", query.Invalid("award_type_codes",
			"cannot mix award type categories: %s; use separate queries", strings.Join(names, ", "))
	}
	return found[0], nil
}

func categoryOfCode(code string) (Category, bool) {
	for _, cat := range categoryOrder {
		if _, ok := AwardTypeGroups[cat][code]; ok {
			return cat, true
		}
	}
	return "", false
}
