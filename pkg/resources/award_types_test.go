package resources

import (
	"errors"
	"testing"

	"github.com/planetary-society/usaspending-orm/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name    string
		codes   []string
		want    Category
		wantErr string
	}{
		{name: "contracts", codes: []string{"A", "B", "C", "D"}, want: CategoryContracts},
		{name: "single grant", codes: []string{"04"}, want: CategoryGrants},
		{name: "idv", codes: []string{"IDV_A", "IDV_E"}, want: CategoryIDVs},
		{name: "loans", codes: []string{"07", "08"}, want: CategoryLoans},
		{name: "empty", codes: nil, wantErr: "required"},
		{name: "unknown", codes: []string{"A", "ZZ"}, wantErr: `unknown award type code "ZZ"`},
		{name: "mixed", codes: []string{"A", "07"}, wantErr: "cannot mix award type categories: contracts, loans"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CategoryOf(tt.codes)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				var verr *query.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "award_type_codes", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategory_CodesAreSortedAndDisjoint(t *testing.T) {
	seen := map[string]Category{}
	for _, cat := range categoryOrder {
		codes := cat.Codes()
		assert.IsIncreasing(t, codes, "%s codes", cat)
		for _, code := range codes {
			prev, dup := seen[code]
			assert.False(t, dup, "code %s in both %s and %s", code, prev, cat)
			seen[code] = cat
		}
	}
	assert.Len(t, categoryOrder, len(AwardTypeGroups))
}

func TestCategory_CountKey(t *testing.T) {
	assert.Equal(t, "contracts", CategoryContracts.CountKey())
	assert.Equal(t, "direct_payments", CategoryDirectPayments.CountKey())
	assert.Equal(t, "other", CategoryOtherAssistance.CountKey())
}
