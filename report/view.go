package report

import (
	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
)

// View is the JSON shape served to clients. Money is rounded to cents and
// percentages to two decimals.
type View struct {
	RunID  string `json:"run_id,omitempty"`
	Symbol string `json:"symbol"`
	Start  string `json:"start"`
	End    string `json:"end"`

	InitialCash         float64 `json:"initial_cash"`
	FinalValue          float64 `json:"final_portfolio_value"`
	NetProfit           float64 `json:"net_profit"`
	TotalReturnPct      float64 `json:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct"`
	WinRatePct          float64 `json:"win_rate_pct"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	RiskReward          float64 `json:"risk_reward"`
	TradeCount          int     `json:"trade_count"`

	Status string          `json:"status"`
	Params backtest.Params `json:"params"`
	Trades []TradeView     `json:"trades"`

	Chart []indicators.ChartPoint `json:"chart,omitempty"`
}

type TradeView struct {
	Date      string   `json:"date"`
	Action    string   `json:"action"`
	Reason    string   `json:"reason"`
	Price     float64  `json:"price"`
	Shares    int64    `json:"shares"`
	CashAfter float64  `json:"cash_balance_after"`
	ReturnPct *float64 `json:"return_pct,omitempty"`
	Profit    *float64 `json:"profit,omitempty"`
}

// NewView builds the client view of s. chart may be nil.
func NewView(s Summary, chart []indicators.ChartPoint) View {
	r := s.Result
	v := View{
		RunID:               s.RunID,
		Symbol:              r.Symbol,
		Start:               r.Start.Format(market.DateLayout),
		End:                 r.End.Format(market.DateLayout),
		InitialCash:         Round(r.InitialCash, 2),
		FinalValue:          Round(r.FinalValue, 2),
		NetProfit:           Round(r.NetProfit(), 2),
		TotalReturnPct:      Round(r.TotalReturnPct, 2),
		AnnualizedReturnPct: Round(r.AnnualizedReturnPct, 2),
		WinRatePct:          Round(r.WinRatePct, 2),
		MaxDrawdownPct:      Round(r.MaxDrawdownPct, 2),
		RiskReward:          Round(r.RiskReward, 2),
		TradeCount:          r.TradeCount,
		Status:              r.Status().String(),
		Params:              r.Params,
		Trades:              make([]TradeView, 0, len(r.Trades)),
		Chart:               chart,
	}
	for _, t := range r.Trades {
		v.Trades = append(v.Trades, TradeView{
			Date:      t.Date.Format(market.DateLayout),
			Action:    t.Action.String(),
			Reason:    t.Reason,
			Price:     Round(t.Price, 2),
			Shares:    t.Shares,
			CashAfter: Round(t.Cash, 2),
			ReturnPct: roundPtr(t.ReturnPct),
			Profit:    roundPtr(t.Profit),
		})
	}
	return v
}

func roundPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := Round(*p, 2)
	return &v
}
