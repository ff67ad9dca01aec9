// Package journal records backtest runs so they can be listed, inspected
// and exported after the fact.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/internal/id"
	"github.com/rustyeddy/macdtrader/market"
)

// ErrRunNotFound is returned when a run ID has no journal entry.
var ErrRunNotFound = errors.New("run not found")

// Run is the summary row for one backtest.
type Run struct {
	RunID   string
	Created time.Time
	Dataset string // price source the bars came from

	Symbol string
	Kind   string
	Params backtest.Params

	Start time.Time
	End   time.Time

	// Results
	Trades int
	Wins   int
	Losses int

	InitialCash float64
	FinalValue  float64

	NetProfit           float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	WinRatePct          float64
	MaxDrawdownPct      float64
	RiskReward          float64
	Status              string

	Notes       []string
	NextActions []string
}

// NewRun summarises res under a fresh run ID.
func NewRun(res *backtest.Result, dataset string) Run {
	now := time.Now().UTC()
	return Run{
		RunID:               id.At(now),
		Created:             now,
		Dataset:             dataset,
		Symbol:              res.Symbol,
		Kind:                market.LookupInstrument(res.Symbol).Kind.String(),
		Params:              res.Params,
		Start:               res.Start,
		End:                 res.End,
		Trades:              res.TradeCount,
		Wins:                res.Wins,
		Losses:              res.Losses,
		InitialCash:         res.InitialCash,
		FinalValue:          res.FinalValue,
		NetProfit:           res.NetProfit(),
		TotalReturnPct:      res.TotalReturnPct,
		AnnualizedReturnPct: res.AnnualizedReturnPct,
		WinRatePct:          res.WinRatePct,
		MaxDrawdownPct:      res.MaxDrawdownPct,
		RiskReward:          res.RiskReward,
		Status:              res.Status().String(),
	}
}

type Journal interface {
	RecordRun(ctx context.Context, run Run, res *backtest.Result) error
	Close() error
}
