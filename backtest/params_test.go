package backtest

import (
	"math"
	"testing"

	"github.com/rustyeddy/macdtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 12, p.FastPeriod)
	assert.Equal(t, 26, p.SlowPeriod)
	assert.Equal(t, 9, p.SignalPeriod)
	assert.Equal(t, 0.001425, p.FeeRate)
	assert.Equal(t, 0.003, p.TaxRate)
	assert.Equal(t, 0.05, p.StopLossPct)
	assert.Equal(t, 0.10, p.TakeProfitPct)
	assert.NoError(t, p.Validate())

	etf := ParamsFor(market.ETF)
	assert.Equal(t, 0.001, etf.TaxRate)
	assert.NoError(t, etf.Validate())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		errMsg string
	}{
		{"zero fast", func(p *Params) { p.FastPeriod = 0 }, "periods must be >= 1"},
		{"fast not below slow", func(p *Params) { p.FastPeriod = 26 }, "require fast < slow"},
		{"zero signal", func(p *Params) { p.SignalPeriod = 0 }, "periods must be >= 1"},
		{"negative fee", func(p *Params) { p.FeeRate = -0.1 }, "fee_rate must be >= 0"},
		{"nan tax", func(p *Params) { p.TaxRate = math.NaN() }, "tax_rate must be >= 0"},
		{"costs eat everything", func(p *Params) { p.FeeRate, p.TaxRate = 0.5, 0.5 }, "must be < 1"},
		{"zero stop", func(p *Params) { p.StopLossPct = 0 }, "stop_loss_pct must be > 0"},
		{"inf take", func(p *Params) { p.TakeProfitPct = math.Inf(1) }, "take_profit_pct must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidParameters)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParamsZeroCostsAllowed(t *testing.T) {
	p := DefaultParams()
	p.FeeRate, p.TaxRate = 0, 0
	assert.NoError(t, p.Validate())
}

func TestParamsString(t *testing.T) {
	s := DefaultParams().String()
	assert.Contains(t, s, "MACD(fast=12, slow=26, signal=9)")
	assert.Contains(t, s, "stop=5.0%")
	assert.Contains(t, s, "take=10.0%")
}

func TestActionJSON(t *testing.T) {
	for _, a := range []Action{Buy, Sell, ForcedLiquidation} {
		b, err := a.MarshalJSON()
		require.NoError(t, err)

		var got Action
		require.NoError(t, got.UnmarshalJSON(b))
		assert.Equal(t, a, got)
	}

	var a Action
	assert.Error(t, a.UnmarshalJSON([]byte(`"hold"`)))
	assert.True(t, Sell.Closes())
	assert.True(t, ForcedLiquidation.Closes())
	assert.False(t, Buy.Closes())
}
