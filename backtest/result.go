package backtest

import (
	"math"
	"time"
)

// Result summarises one backtest run. Percentages are in percent units
// (12.5 means 12.5%). Monetary values are unrounded.
type Result struct {
	Symbol string    `json:"symbol,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Params Params    `json:"params"`

	InitialCash float64 `json:"initial_cash"`
	FinalValue  float64 `json:"final_portfolio_value"`

	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	WinRatePct          float64 `json:"win_rate_pct"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	RiskReward          float64 `json:"risk_reward"`

	TradeCount int `json:"trade_count"` // closed trades
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`

	Trades []TradeRecord `json:"trades"`
	Equity []EquityPoint `json:"equity,omitempty"`
}

func (e *Engine) result(start, end time.Time) *Result {
	r := &Result{
		Start:          start,
		End:            end,
		Params:         e.params,
		InitialCash:    e.initialCash,
		FinalValue:     e.Pos.Cash,
		MaxDrawdownPct: e.maxDrawdown * 100,
		Trades:         append([]TradeRecord(nil), e.Trades...),
		Equity:         append([]EquityPoint(nil), e.Equity...),
	}

	r.TotalReturnPct = (r.FinalValue - r.InitialCash) / r.InitialCash * 100
	r.AnnualizedReturnPct = annualize(r.InitialCash, r.FinalValue, r.TotalReturnPct, start, end)

	var gain, loss float64
	for _, t := range r.Trades {
		if !t.Action.Closes() || t.Profit == nil {
			continue
		}
		r.TradeCount++
		switch p := *t.Profit; {
		case p > 0:
			r.Wins++
			gain += p
		case p < 0:
			r.Losses++
			loss += -p
		}
	}
	if r.TradeCount > 0 {
		r.WinRatePct = float64(r.Wins) / float64(r.TradeCount) * 100
	}
	if r.Wins > 0 && r.Losses > 0 {
		r.RiskReward = (gain / float64(r.Wins)) / (loss / float64(r.Losses))
	}
	return r
}

// DaysPerYear is the year length used to annualise returns.
const DaysPerYear = 365.25

// annualize returns the compound annual growth rate in percent. A zero or
// negative span falls back to the total return.
func annualize(initial, final, totalPct float64, start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	years := days / DaysPerYear
	if years <= 0 {
		return totalPct
	}
	return (math.Pow(final/initial, 1/years) - 1) * 100
}

// NetProfit is FinalValue - InitialCash.
func (r *Result) NetProfit() float64 {
	return r.FinalValue - r.InitialCash
}

// StatusKind describes where the strategy stood when the period ended.
type StatusKind int

const (
	StatusNone    StatusKind = iota // no trades at all
	StatusHolding                   // long at period end (then liquidated)
	StatusFlat                      // out of the market at period end
)

type Status struct {
	Kind  StatusKind
	Since time.Time
}

func (s Status) String() string {
	switch s.Kind {
	case StatusHolding:
		return "holding since " + s.Since.Format("2006-01-02")
	case StatusFlat:
		return "flat since " + s.Since.Format("2006-01-02")
	}
	return "no trades"
}

// Status reports the position at the end of the period. A forced
// liquidation means the strategy was still long, so Since is the entry date.
func (r *Result) Status() Status {
	n := len(r.Trades)
	if n == 0 {
		return Status{Kind: StatusNone}
	}
	last := r.Trades[n-1]
	switch last.Action {
	case ForcedLiquidation:
		since := last.Date
		if n >= 2 && r.Trades[n-2].Action == Buy {
			since = r.Trades[n-2].Date
		}
		return Status{Kind: StatusHolding, Since: since}
	case Buy:
		return Status{Kind: StatusHolding, Since: last.Date}
	}
	return Status{Kind: StatusFlat, Since: last.Date}
}
