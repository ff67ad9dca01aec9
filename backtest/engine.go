package backtest

import (
	"fmt"
	"math"

	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
)

// Engine replays a daily series with one long-only position:
//   - enter on a golden cross at the close, sized to the affordable whole shares
//   - exit on death cross, then stop-loss, then take-profit (first match wins)
//   - at most one transition per day
//   - anything still held after the last bar is liquidated at the final close
//
// An Engine may be reused; every Run starts from a fresh position.
type Engine struct {
	params      Params
	initialCash float64

	Pos    Position
	Trades []TradeRecord
	Equity []EquityPoint

	peak        float64
	maxDrawdown float64
}

func NewEngine(params Params, initialCash float64) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !finite(initialCash) || initialCash <= 0 {
		return nil, fmt.Errorf("%w: initial cash must be > 0 (got %v)", ErrInvalidParameters, initialCash)
	}
	return &Engine{params: params, initialCash: initialCash}, nil
}

func (e *Engine) Params() Params       { return e.params }
func (e *Engine) InitialCash() float64 { return e.initialCash }

func (e *Engine) reset() {
	e.Pos = Position{Cash: e.initialCash}
	e.Trades = nil
	e.Equity = nil
	e.peak = e.initialCash
	e.maxDrawdown = 0
}

// Run simulates bars against their precomputed indicator points.
func (e *Engine) Run(bars []market.Bar, points []indicators.MACDPoint) (*Result, error) {
	if len(bars) == 0 {
		return nil, ErrNoPriceData
	}
	if len(points) != len(bars) {
		return nil, fmt.Errorf("%w: %d bars but %d indicator points", ErrInvalidParameters, len(bars), len(points))
	}
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bars to detect a crossing, got %d", ErrNoPriceData, len(bars))
	}

	e.reset()
	e.mark(bars[0])

	for i := 1; i < len(bars); i++ {
		today, prev := points[i], points[i-1]
		bar := bars[i]

		if !e.Pos.Open() {
			if goldenCross(prev, today) {
				e.buy(bar)
			}
		} else if reason, ok := e.exitReason(prev, today, bar.Close); ok {
			e.sell(bar, Sell, reason)
		}

		e.mark(bar)
	}

	if e.Pos.Open() {
		e.sell(bars[len(bars)-1], ForcedLiquidation, ReasonForcedLiquidation)
	}

	return e.result(bars[0].Date, bars[len(bars)-1].Date), nil
}

func goldenCross(prev, today indicators.MACDPoint) bool {
	return prev.DIF < prev.Signal && today.DIF > today.Signal
}

func deathCross(prev, today indicators.MACDPoint) bool {
	return prev.DIF > prev.Signal && today.DIF < today.Signal
}

func (e *Engine) exitReason(prev, today indicators.MACDPoint, price float64) (string, bool) {
	change := (price - e.Pos.EntryPrice) / e.Pos.EntryPrice
	switch {
	case deathCross(prev, today):
		return ReasonDeathCross, true
	case change <= -e.params.StopLossPct:
		return ReasonStopLoss, true
	case change >= e.params.TakeProfitPct:
		return ReasonTakeProfit, true
	}
	return "", false
}

// MaxShares caps one position so that share counts convert to int64
// exactly and share costs stay exact in float64.
const MaxShares int64 = 1 << 53

func (e *Engine) buy(bar market.Bar) {
	price := bar.Close
	unit := price * (1 + e.params.FeeRate)

	qty := math.Floor(e.Pos.Cash / unit)
	if qty > float64(MaxShares) {
		qty = float64(MaxShares)
	}
	shares := int64(qty)
	// Floating point can push the floor one share past what cash covers.
	for shares > 0 && float64(shares)*unit > e.Pos.Cash {
		shares--
	}
	if shares <= 0 {
		return
	}

	e.Pos.Cash -= float64(shares) * unit
	e.Pos.Shares = shares
	e.Pos.EntryPrice = price
	e.Pos.EntryDate = bar.Date

	e.Trades = append(e.Trades, TradeRecord{
		Date:   bar.Date,
		Action: Buy,
		Reason: ReasonGoldenCross,
		Price:  price,
		Shares: shares,
		Cash:   e.Pos.Cash,
	})
}

func (e *Engine) sell(bar market.Bar, action Action, reason string) {
	p := e.Pos
	price := bar.Close
	shares := float64(p.Shares)

	net := shares * price * (1 - e.params.FeeRate - e.params.TaxRate)
	costBasis := shares * p.EntryPrice * (1 + e.params.FeeRate)
	profit := net - costBasis
	ret := 0.0
	if costBasis > 0 {
		ret = profit / costBasis * 100
	}

	e.Pos = Position{Cash: p.Cash + net}

	e.Trades = append(e.Trades, TradeRecord{
		Date:      bar.Date,
		Action:    action,
		Reason:    reason,
		Price:     price,
		Shares:    p.Shares,
		Cash:      e.Pos.Cash,
		ReturnPct: &ret,
		Profit:    &profit,
	})
}

// mark records the end-of-day equity and updates peak and drawdown.
func (e *Engine) mark(bar market.Bar) {
	equity := e.Pos.Equity(bar.Close)
	e.peak = math.Max(e.peak, equity)

	dd := 0.0
	if e.peak > 0 {
		dd = (e.peak - equity) / e.peak
	}
	e.maxDrawdown = math.Max(e.maxDrawdown, dd)

	e.Equity = append(e.Equity, EquityPoint{
		Date:        bar.Date,
		Equity:      equity,
		Peak:        e.peak,
		Drawdown:    dd,
		MaxDrawdown: e.maxDrawdown,
	})
}

// Run builds an Engine and simulates bars against points. Inputs are not
// modified.
func Run(bars []market.Bar, points []indicators.MACDPoint, params Params, initialCash float64) (*Result, error) {
	e, err := NewEngine(params, initialCash)
	if err != nil {
		return nil, err
	}
	return e.Run(bars, points)
}

// Backtest validates the series, computes the MACD indicators with the
// periods in params and runs the simulation.
func Backtest(s market.Series, params Params, initialCash float64) (*Result, []indicators.MACDPoint, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	e, err := NewEngine(params, initialCash)
	if err != nil {
		return nil, nil, err
	}

	points, err := indicators.Compute(s.Bars, params.FastPeriod, params.SlowPeriod, params.SignalPeriod)
	if err != nil {
		return nil, nil, err
	}

	res, err := e.Run(s.Bars, points)
	if err != nil {
		return nil, nil, err
	}
	res.Symbol = s.Symbol
	return res, points, nil
}
