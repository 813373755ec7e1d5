package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoadAll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	details := map[string]string{}
	for i := 1; i <= 10; i++ {
		details[fmt.Sprintf("award/A%d", i)] = fmt.Sprintf(`{"description": "AWARD %d"}`, i)
	}
	f := &stubFetcher{details: details}
	reg := NewRegistry(zerolog.Nop())
	h := reg.Open(f)

	records := make([]*Record, 0, 11)
	for i := 1; i <= 10; i++ {
		records = append(records, NewRecord("award", fmt.Sprintf("A%d", i), nil, h))
	}
	records = append(records, nil)

	require.NoError(t, LoadAll(context.Background(), records, 3))

	assert.Equal(t, 10, f.Calls())
	for i, rec := range records[:10] {
		assert.True(t, rec.Loaded())
		assert.Equal(t, fmt.Sprintf("AWARD %d", i+1), rec.Field("description").Value.String())
	}

	require.NoError(t, LoadAll(context.Background(), records, 0))
	assert.Equal(t, 10, f.Calls(), "loaded records are skipped")
}

func TestLoadAll_Errors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reg := NewRegistry(zerolog.Nop())
	f := &stubFetcher{err: errors.New("upstream down")}
	h := reg.Open(f)

	records := []*Record{
		NewRecord("award", "A1", nil, h),
		NewRecord("award", "A2", nil, h),
	}
	err := LoadAll(context.Background(), records, 1)
	assert.ErrorContains(t, err, "upstream down")

	reg.Close(h)
	err = LoadAll(context.Background(), []*Record{NewRecord("award", "A3", nil, h)}, 2)
	assert.ErrorIs(t, err, ErrDetached)
}
