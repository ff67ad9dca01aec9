package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores the run summary together with its trade log and
// equity curve in a single transaction.
func (j *SQLite) RecordRun(ctx context.Context, run Run, res *backtest.Result) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	notes, err := marshalList(run.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	nextActions, err := marshalList(run.NextActions)
	if err != nil {
		return fmt.Errorf("marshal next actions: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, dataset, symbol, kind, params, start_date, end_date,
		 trades, wins, losses, initial_cash, final_value, net_profit,
		 total_return_pct, annualized_return_pct, win_rate_pct, max_drawdown_pct,
		 risk_reward, status, notes, next_actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Created.UTC().Format(createdLayout), run.Dataset, run.Symbol, run.Kind,
		string(params), fmtDate(run.Start), fmtDate(run.End),
		run.Trades, run.Wins, run.Losses, run.InitialCash, run.FinalValue, run.NetProfit,
		run.TotalReturnPct, run.AnnualizedReturnPct, run.WinRatePct, run.MaxDrawdownPct,
		run.RiskReward, run.Status, notes, nextActions,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}

	if res != nil {
		if err := insertTrades(ctx, tx, run.RunID, res.Trades); err != nil {
			return err
		}
		if err := insertEquity(ctx, tx, run.RunID, res.Equity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertTrades(ctx context.Context, tx *sql.Tx, runID string, trades []backtest.TradeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(run_id, seq, date, action, reason, price, shares, cash_after, return_pct, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range trades {
		_, err := stmt.ExecContext(ctx,
			runID, i, fmtDate(t.Date), t.Action.String(), t.Reason,
			t.Price, t.Shares, t.Cash, nullable(t.ReturnPct), nullable(t.Profit),
		)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}
	return nil
}

func insertEquity(ctx context.Context, tx *sql.Tx, runID string, curve []backtest.EquityPoint) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity
		(run_id, date, equity, peak, drawdown, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range curve {
		_, err := stmt.ExecContext(ctx, runID, fmtDate(e.Date), e.Equity, e.Peak, e.Drawdown, e.MaxDrawdown)
		if err != nil {
			return fmt.Errorf("insert equity %s: %w", fmtDate(e.Date), err)
		}
	}
	return nil
}

// DeleteRun removes a run and, through the foreign keys, its trades and
// equity rows.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// createdLayout has fixed-width fractions so created sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtDate(t time.Time) string {
	return t.Format(market.DateLayout)
}

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}
