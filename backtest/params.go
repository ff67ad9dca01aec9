package backtest

import (
	"fmt"
	"math"

	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
)

var (
	// ErrInvalidParameters reports bad periods, rates or amounts. It is the
	// same sentinel the indicator engine uses, so errors.Is works across both.
	ErrInvalidParameters = indicators.ErrInvalidParameters

	// ErrNoPriceData reports an empty or unusable price series.
	ErrNoPriceData = market.ErrNoPriceData
)

// Default strategy parameters.
const (
	DefaultFast          = 12
	DefaultSlow          = 26
	DefaultSignal        = 9
	DefaultFeeRate       = 0.001425
	DefaultStopLossPct   = 0.05
	DefaultTakeProfitPct = 0.10
)

// Params configures the MACD crossover strategy and its transaction costs.
// Rates and percentages are fractions: 0.05 means 5%.
type Params struct {
	FastPeriod   int `json:"fast_period" yaml:"fast_period"`
	SlowPeriod   int `json:"slow_period" yaml:"slow_period"`
	SignalPeriod int `json:"signal_period" yaml:"signal_period"`

	FeeRate float64 `json:"fee_rate" yaml:"fee_rate"` // charged on buy and sell
	TaxRate float64 `json:"tax_rate" yaml:"tax_rate"` // charged on sell only

	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// DefaultParams returns 12/26/9 with stock transaction costs.
func DefaultParams() Params {
	return ParamsFor(market.Stock)
}

// ParamsFor returns the default parameters with the tax rate of kind.
func ParamsFor(kind market.Kind) Params {
	return Params{
		FastPeriod:    DefaultFast,
		SlowPeriod:    DefaultSlow,
		SignalPeriod:  DefaultSignal,
		FeeRate:       DefaultFeeRate,
		TaxRate:       kind.TaxRate(),
		StopLossPct:   DefaultStopLossPct,
		TakeProfitPct: DefaultTakeProfitPct,
	}
}

func (p Params) Validate() error {
	if err := indicators.ValidatePeriods(p.FastPeriod, p.SlowPeriod, p.SignalPeriod); err != nil {
		return err
	}
	if !finite(p.FeeRate) || p.FeeRate < 0 {
		return fmt.Errorf("%w: fee_rate must be >= 0 (got %v)", ErrInvalidParameters, p.FeeRate)
	}
	if !finite(p.TaxRate) || p.TaxRate < 0 {
		return fmt.Errorf("%w: tax_rate must be >= 0 (got %v)", ErrInvalidParameters, p.TaxRate)
	}
	if p.FeeRate+p.TaxRate >= 1 {
		return fmt.Errorf("%w: fee_rate + tax_rate must be < 1", ErrInvalidParameters)
	}
	if !finite(p.StopLossPct) || p.StopLossPct <= 0 {
		return fmt.Errorf("%w: stop_loss_pct must be > 0 (got %v)", ErrInvalidParameters, p.StopLossPct)
	}
	if !finite(p.TakeProfitPct) || p.TakeProfitPct <= 0 {
		return fmt.Errorf("%w: take_profit_pct must be > 0 (got %v)", ErrInvalidParameters, p.TakeProfitPct)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("MACD(fast=%d, slow=%d, signal=%d) fee=%.4f%% tax=%.3f%% stop=%.1f%% take=%.1f%%",
		p.FastPeriod, p.SlowPeriod, p.SignalPeriod,
		p.FeeRate*100, p.TaxRate*100, p.StopLossPct*100, p.TakeProfitPct*100)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
