package backtest

import (
	"encoding/json"
	"fmt"
	"time"
)

type Action int8

const (
	Buy Action = iota + 1
	Sell
	ForcedLiquidation
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case ForcedLiquidation:
		return "forced_liquidation"
	}
	return fmt.Sprintf("action(%d)", int8(a))
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	case "forced_liquidation":
		return ForcedLiquidation, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Closes reports whether the action ends a position.
func (a Action) Closes() bool {
	return a == Sell || a == ForcedLiquidation
}

// Trade reasons.
const (
	ReasonGoldenCross       = "golden cross"
	ReasonDeathCross        = "death cross"
	ReasonStopLoss          = "stop-loss"
	ReasonTakeProfit        = "take-profit"
	ReasonForcedLiquidation = "forced liquidation"
)

// TradeRecord is one entry of the append-only trade log.
type TradeRecord struct {
	Date   time.Time `json:"date"`
	Action Action    `json:"action"`
	Reason string    `json:"reason"`
	Price  float64   `json:"price"`
	Shares int64     `json:"shares"`
	Cash   float64   `json:"cash_balance_after"`

	// Set on closing trades only.
	ReturnPct *float64 `json:"return_pct,omitempty"`
	Profit    *float64 `json:"profit,omitempty"`
}

// Position is the simulation state for a single long-only holding.
// EntryPrice and EntryDate are meaningful only while Shares > 0.
type Position struct {
	Shares     int64
	EntryPrice float64
	EntryDate  time.Time
	Cash       float64
}

func (p Position) Open() bool { return p.Shares > 0 }

// Equity values the position at price.
func (p Position) Equity(price float64) float64 {
	return p.Cash + float64(p.Shares)*price
}

// EquityPoint is the portfolio value after one day's decision.
type EquityPoint struct {
	Date        time.Time `json:"date"`
	Equity      float64   `json:"equity"`
	Peak        float64   `json:"peak"`
	Drawdown    float64   `json:"drawdown"`     // (peak-equity)/peak for this day
	MaxDrawdown float64   `json:"max_drawdown"` // running maximum of Drawdown
}
