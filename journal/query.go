package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market"
)

const runColumns = `run_id, created, dataset, symbol, kind, params, start_date, end_date,
	trades, wins, losses, initial_cash, final_value, net_profit,
	total_return_pct, annualized_return_pct, win_rate_pct, max_drawdown_pct,
	risk_reward, status, notes, next_actions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                Run
		created, params    string
		startDate, endDate string
		notes, nextActions string
	)
	err := s.Scan(
		&run.RunID, &created, &run.Dataset, &run.Symbol, &run.Kind, &params,
		&startDate, &endDate,
		&run.Trades, &run.Wins, &run.Losses,
		&run.InitialCash, &run.FinalValue, &run.NetProfit,
		&run.TotalReturnPct, &run.AnnualizedReturnPct, &run.WinRatePct, &run.MaxDrawdownPct,
		&run.RiskReward, &run.Status, &notes, &nextActions,
	)
	if err != nil {
		return Run{}, err
	}
	if run.Created, err = time.Parse(createdLayout, created); err != nil {
		return Run{}, fmt.Errorf("run %s created: %w", run.RunID, err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("run %s params: %w", run.RunID, err)
	}
	if err := unmarshalList(notes, &run.Notes); err != nil {
		return Run{}, fmt.Errorf("run %s notes: %w", run.RunID, err)
	}
	if err := unmarshalList(nextActions, &run.NextActions); err != nil {
		return Run{}, fmt.Errorf("run %s next actions: %w", run.RunID, err)
	}
	if run.Start, err = market.ParseDate(startDate); err != nil {
		return Run{}, err
	}
	if run.End, err = market.ParseDate(endDate); err != nil {
		return Run{}, err
	}
	return run, nil
}

// GetRun returns a single run summary by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns runs newest first. An empty symbol matches every run
// and limit <= 0 means no limit.
func (j *SQLite) ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created DESC, run_id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTrades returns the trade log of a run in execution order.
func (j *SQLite) ListTrades(ctx context.Context, runID string) ([]backtest.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, action, reason, price, shares, cash_after, return_pct, profit
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.TradeRecord
	for rows.Next() {
		var (
			rec            backtest.TradeRecord
			date, action   string
			retPct, profit sql.NullFloat64
		)
		if err := rows.Scan(&date, &action, &rec.Reason, &rec.Price, &rec.Shares, &rec.Cash, &retPct, &profit); err != nil {
			return nil, err
		}
		if rec.Date, err = market.ParseDate(date); err != nil {
			return nil, err
		}
		if rec.Action, err = backtest.ParseAction(action); err != nil {
			return nil, err
		}
		rec.ReturnPct = ptr(retPct)
		rec.Profit = ptr(profit)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns the daily equity curve of a run ordered by date.
func (j *SQLite) ListEquity(ctx context.Context, runID string) ([]backtest.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, equity, peak, drawdown, max_drawdown
		FROM equity
		WHERE run_id = ?
		ORDER BY date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquityPoint
	for rows.Next() {
		var (
			e    backtest.EquityPoint
			date string
		)
		if err := rows.Scan(&date, &e.Equity, &e.Peak, &e.Drawdown, &e.MaxDrawdown); err != nil {
			return nil, err
		}
		if e.Date, err = market.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadResult rebuilds a backtest result from the journal so it can be
// reported again without rerunning the simulation.
func (j *SQLite) LoadResult(ctx context.Context, runID string) (Run, *backtest.Result, error) {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	trades, err := j.ListTrades(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	equity, err := j.ListEquity(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	res := &backtest.Result{
		Symbol:              run.Symbol,
		Start:               run.Start,
		End:                 run.End,
		Params:              run.Params,
		InitialCash:         run.InitialCash,
		FinalValue:          run.FinalValue,
		TotalReturnPct:      run.TotalReturnPct,
		AnnualizedReturnPct: run.AnnualizedReturnPct,
		WinRatePct:          run.WinRatePct,
		MaxDrawdownPct:      run.MaxDrawdownPct,
		RiskReward:          run.RiskReward,
		TradeCount:          run.Trades,
		Wins:                run.Wins,
		Losses:              run.Losses,
		Trades:              trades,
		Equity:              equity,
	}
	return run, res, nil
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// unmarshalList decodes a JSON string array; an empty array yields nil.
func unmarshalList(s string, dst *[]string) error {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return err
	}
	if len(items) > 0 {
		*dst = items
	}
	return nil
}
