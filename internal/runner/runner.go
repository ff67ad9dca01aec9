// Package runner wires a price source, the backtest engine and the
// journal into one call shared by the CLI, the HTTP API and the chat flow.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
	"github.com/rustyeddy/macdtrader/pricedata"
)

// Request describes one backtest. Zero Start or End leaves that side of
// the date range open.
type Request struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Cash   float64
	Params backtest.Params

	// Notes and NextActions are stored with the journaled run.
	Notes       []string
	NextActions []string
}

// Outcome is everything a front end may want to show about a run.
type Outcome struct {
	Run    *journal.Run // nil unless journaled
	Series market.Series
	Points []indicators.MACDPoint
	Result *backtest.Result
}

// Chart returns the close and MACD tuples for charting.
func (o *Outcome) Chart() []indicators.ChartPoint {
	return indicators.ChartSeries(o.Series.Bars, o.Points)
}

// Runner drives a backtest from a data source. Journal is optional.
type Runner struct {
	Source  pricedata.Source
	Journal journal.Journal
	Dataset string
	Log     *slog.Logger
}

// Run loads bars for req, runs the strategy and records the run when a
// journal is configured. Every call is independent; a Runner holds no
// per-run state and may be used from many goroutines.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if r.Source == nil {
		return nil, fmt.Errorf("runner: Source is required")
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.End.Before(req.Start) {
		return nil, fmt.Errorf("end %s before start %s: %w",
			req.End.Format(market.DateLayout), req.Start.Format(market.DateLayout), backtest.ErrInvalidParameters)
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if !(req.Cash > 0) {
		return nil, fmt.Errorf("initial cash %v: %w", req.Cash, backtest.ErrInvalidParameters)
	}

	began := time.Now()
	series, err := pricedata.Load(ctx, r.Source, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded bars", "symbol", req.Symbol, "bars", series.Len(),
		"first", series.Start().Format(market.DateLayout), "last", series.End().Format(market.DateLayout))

	res, points, err := backtest.Backtest(series, req.Params, req.Cash)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Series: series, Points: points, Result: res}

	if r.Journal != nil {
		run := journal.NewRun(res, r.Dataset)
		run.Notes = req.Notes
		run.NextActions = req.NextActions
		if err := r.Journal.RecordRun(ctx, run, res); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		out.Run = &run
	}

	log.Info("backtest complete",
		"symbol", req.Symbol,
		"trades", res.TradeCount,
		"return_pct", res.TotalReturnPct,
		"final_value", res.FinalValue,
		"elapsed", time.Since(began).Round(time.Millisecond),
	)
	return out, nil
}
