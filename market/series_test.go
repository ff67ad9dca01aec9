package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidateBars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bars    []Bar
		wantErr error
	}{
		{
			name:    "empty",
			bars:    nil,
			wantErr: ErrNoPriceData,
		},
		{
			name: "valid",
			bars: []Bar{
				{Date: day(2024, 1, 2), Close: 10},
				{Date: day(2024, 1, 3), Close: 11},
			},
		},
		{
			name: "duplicate date",
			bars: []Bar{
				{Date: day(2024, 1, 2), Close: 10},
				{Date: day(2024, 1, 2), Close: 11},
			},
			wantErr: ErrInvalidSeries,
		},
		{
			name: "out of order",
			bars: []Bar{
				{Date: day(2024, 1, 3), Close: 10},
				{Date: day(2024, 1, 2), Close: 11},
			},
			wantErr: ErrInvalidSeries,
		},
		{
			name:    "zero close",
			bars:    []Bar{{Date: day(2024, 1, 2), Close: 0}},
			wantErr: ErrInvalidSeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBars(tt.bars)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := []Bar{
		{Date: time.Date(2024, 1, 3, 13, 30, 0, 0, time.UTC), Close: 12},
		{Date: day(2024, 1, 2), Close: 10},
		{Date: day(2024, 1, 3), Close: 13},
		{Date: day(2024, 1, 4), Close: -1},
	}

	out := Normalize(in)
	require.Len(t, out, 2)
	assert.Equal(t, day(2024, 1, 2), out[0].Date)
	assert.Equal(t, day(2024, 1, 3), out[1].Date)
	assert.Equal(t, 13.0, out[1].Close, "last bar for a day wins")
	assert.NoError(t, ValidateBars(out))

	// input untouched
	assert.Equal(t, 12.0, in[0].Close)
}

func TestBetween(t *testing.T) {
	t.Parallel()

	bars := []Bar{
		{Date: day(2024, 1, 1), Close: 1},
		{Date: day(2024, 1, 2), Close: 2},
		{Date: day(2024, 1, 3), Close: 3},
		{Date: day(2024, 1, 4), Close: 4},
	}

	got := Between(bars, day(2024, 1, 2), day(2024, 1, 3))
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 3.0, got[1].Close)

	assert.Len(t, Between(bars, time.Time{}, time.Time{}), 4)
	assert.Len(t, Between(bars, day(2024, 1, 3), time.Time{}), 2)
	assert.Empty(t, Between(bars, day(2025, 1, 1), time.Time{}))
}

func TestSeriesBounds(t *testing.T) {
	t.Parallel()

	var empty Series
	assert.True(t, empty.Start().IsZero())
	assert.True(t, empty.End().IsZero())
	assert.ErrorIs(t, empty.Validate(), ErrNoPriceData)

	s := Series{Symbol: "2330.TW", Bars: []Bar{
		{Date: day(2024, 1, 1), Close: 1},
		{Date: day(2024, 1, 5), Close: 2},
	}}
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, day(2024, 1, 1), s.Start())
	assert.Equal(t, day(2024, 1, 5), s.End())
	assert.Equal(t, []float64{1, 2}, Closes(s.Bars))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2024-03-15", "2024/03/15", "20240315", "2024-03-15T10:00:00Z", " 2024-03-15 "} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, day(2024, 3, 15), got, in)
	}

	_, err := ParseDate("15 March")
	assert.Error(t, err)
}

func TestLookupInstrument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol  string
		kind    Kind
		taxRate float64
	}{
		{"2330.TW", Stock, 0.003},
		{"0050.tw", ETF, 0.001},
		{"00878.TW", ETF, 0.001},
		{"1101.TW", Stock, 0.003},
		{"SPY", ETF, 0.001},
		{"MSFT", Stock, 0.003},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			in := LookupInstrument(tt.symbol)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, tt.taxRate, in.Kind.TaxRate())
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, ok := ParseKind("ETF")
	assert.True(t, ok)
	assert.Equal(t, ETF, k)
	assert.Equal(t, "etf", k.String())

	k, ok = ParseKind("stock")
	assert.True(t, ok)
	assert.Equal(t, Stock, k)

	_, ok = ParseKind("bond")
	assert.False(t, ok)
}
