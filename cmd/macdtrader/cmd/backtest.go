package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/internal/runner"
	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
	"github.com/rustyeddy/macdtrader/report"
)

type backtestOptions struct {
	symbol string
	kind   string
	start  string
	end    string
	cash   float64

	fast, slow, signal int
	fee, tax           float64
	stopLoss           float64
	takeProfit         float64

	source  string
	dataDir string

	journal bool
	dbPath  string

	tradesCSV string
	equityCSV string
	chartCSV  string
	orgPath   string
	asJSON    bool
	last      int

	notes       []string
	nextActions []string
}

func newBacktestCmd(o *rootOptions) *cobra.Command {
	bo := &backtestOptions{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a MACD crossover backtest",
		Long: `Run the MACD crossover strategy over daily bars for one symbol.

Flags override the config file; the tax rate follows the instrument kind
(stock 0.3%, ETF 0.1%) unless --tax is given.

Examples:
  macdtrader backtest --symbol 2330.TW --start 2023-01-01 --end 2023-12-31
  macdtrader backtest --symbol 0050.TW --cash 500000 --journal --org run.org
  macdtrader backtest --symbol SPY --source alpaca --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, o, bo)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&bo.symbol, "symbol", "s", "", "symbol to backtest (default from config)")
	f.StringVar(&bo.kind, "kind", "", "instrument kind: stock|etf (default derived from symbol)")
	f.StringVar(&bo.start, "start", "", "first day YYYY-MM-DD")
	f.StringVar(&bo.end, "end", "", "last day YYYY-MM-DD")
	f.Float64VarP(&bo.cash, "cash", "c", 0, "initial cash (default from config)")

	f.IntVar(&bo.fast, "fast", 0, "fast EMA period")
	f.IntVar(&bo.slow, "slow", 0, "slow EMA period")
	f.IntVar(&bo.signal, "signal", 0, "signal EMA period")
	f.Float64Var(&bo.fee, "fee", 0, "fee rate per side (0.001425 = 0.1425%)")
	f.Float64Var(&bo.tax, "tax", 0, "sell-side tax rate")
	f.Float64Var(&bo.stopLoss, "stop-loss", 0, "stop-loss fraction (0.05 = 5%)")
	f.Float64Var(&bo.takeProfit, "take-profit", 0, "take-profit fraction (0.10 = 10%)")

	f.StringVar(&bo.source, "source", "", "price source: csv|parquet|alpaca")
	f.StringVar(&bo.dataDir, "data-dir", "", "directory for csv or parquet data")

	f.BoolVar(&bo.journal, "journal", false, "record the run in the SQLite journal")
	f.StringVarP(&bo.dbPath, "db", "d", "", "path to SQLite journal DB")

	f.StringVar(&bo.tradesCSV, "trades-csv", "", "write the trade log as CSV")
	f.StringVar(&bo.equityCSV, "equity-csv", "", "write the daily equity curve as CSV")
	f.StringVar(&bo.chartCSV, "chart-csv", "", "write date,close,dif,signal,histogram,settled as CSV")
	f.StringVar(&bo.orgPath, "org", "", "write an Org-mode report")
	f.BoolVar(&bo.asJSON, "json", false, "print the result as JSON")
	f.IntVarP(&bo.last, "last", "n", report.DefaultLastTrades, "number of recent trades to show")
	f.StringArrayVar(&bo.notes, "note", nil, "observation to keep with the run (repeatable)")
	f.StringArrayVar(&bo.nextActions, "next-action", nil, "follow-up to keep with the run (repeatable)")

	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (bo *backtestOptions) apply(cmd *cobra.Command, o *rootOptions) {
	cfg := o.cfg
	f := cmd.Flags()
	if bo.symbol != "" {
		cfg.Backtest.Symbol = strings.ToUpper(bo.symbol)
	}
	if bo.kind != "" {
		cfg.Backtest.Kind = bo.kind
	}
	if bo.start != "" {
		cfg.Backtest.Start = bo.start
	}
	if bo.end != "" {
		cfg.Backtest.End = bo.end
	}
	if f.Changed("cash") {
		cfg.Backtest.InitialCash = bo.cash
	}
	if f.Changed("fast") {
		cfg.Strategy.FastPeriod = bo.fast
	}
	if f.Changed("slow") {
		cfg.Strategy.SlowPeriod = bo.slow
	}
	if f.Changed("signal") {
		cfg.Strategy.SignalPeriod = bo.signal
	}
	if f.Changed("fee") {
		cfg.Strategy.FeeRate = bo.fee
	}
	if f.Changed("tax") {
		tax := bo.tax
		cfg.Strategy.TaxRate = &tax
	}
	if f.Changed("stop-loss") {
		cfg.Strategy.StopLossPct = bo.stopLoss
	}
	if f.Changed("take-profit") {
		cfg.Strategy.TakeProfitPct = bo.takeProfit
	}
	if bo.source != "" {
		cfg.Data.Source = bo.source
	}
	if bo.dataDir != "" {
		cfg.Data.Dir = bo.dataDir
	}
	if bo.journal {
		cfg.Journal.Enabled = true
	}
	if bo.dbPath != "" {
		cfg.Journal.DBPath = bo.dbPath
	}
}

func runBacktest(cmd *cobra.Command, o *rootOptions, bo *backtestOptions) error {
	bo.apply(cmd, o)
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	start, end, err := cfg.Range()
	if err != nil {
		return err
	}

	r, _, closer, err := o.newRunner(cfg.Journal.Enabled)
	if err != nil {
		return err
	}
	defer closer.Close()

	out, err := r.Run(cmd.Context(), runner.Request{
		Symbol: cfg.Backtest.Symbol,
		Start:  start,
		End:    end,
		Cash:   cfg.Backtest.InitialCash,
		Params: cfg.Params(),

		Notes:       bo.notes,
		NextActions: bo.nextActions,
	})
	if err != nil {
		return err
	}

	sum := report.Summary{Dataset: cfg.Data.Source, Result: out.Result, LastTrades: bo.last, Notes: bo.notes}
	if out.Run != nil {
		sum.RunID = out.Run.RunID
		sum.Created = out.Run.Created
	}

	if err := writeExports(bo, out, cfg.Data.Source); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if bo.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.NewView(sum, nil))
	}
	return report.Write(w, sum)
}

func writeExports(bo *backtestOptions, out *runner.Outcome, dataset string) error {
	res := out.Result
	if bo.tradesCSV != "" {
		if err := writeFile(bo.tradesCSV, func(w io.Writer) error { return journal.WriteTradesCSV(w, res.Trades) }); err != nil {
			return fmt.Errorf("trades csv: %w", err)
		}
	}
	if bo.equityCSV != "" {
		if err := writeFile(bo.equityCSV, func(w io.Writer) error { return journal.WriteEquityCSV(w, res.Equity) }); err != nil {
			return fmt.Errorf("equity csv: %w", err)
		}
	}
	if bo.chartCSV != "" {
		if err := writeFile(bo.chartCSV, func(w io.Writer) error { return writeChartCSV(w, out.Chart()) }); err != nil {
			return fmt.Errorf("chart csv: %w", err)
		}
	}
	if bo.orgPath != "" {
		run := journal.NewRun(res, dataset)
		run.Notes = bo.notes
		run.NextActions = bo.nextActions
		if out.Run != nil {
			run = *out.Run
		}
		if err := journal.WriteOrgFile(bo.orgPath, run, res.Trades); err != nil {
			return fmt.Errorf("org report: %w", err)
		}
	}
	return nil
}

func writeChartCSV(w io.Writer, pts []indicators.ChartPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "close", "dif", "signal", "histogram", "settled"}); err != nil {
		return err
	}
	ff := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	for _, p := range pts {
		if err := cw.Write([]string{p.Date.Format(market.DateLayout), ff(p.Close), ff(p.DIF), ff(p.Signal), ff(p.Histogram), strconv.FormatBool(p.Settled)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeFile creates path, hands it to fn and reports the first error,
// including the one from Close.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
