// Package report renders backtest results for people: a plain text
// report for the terminal, a short chat message, and a rounded JSON view.
// Values are rounded here and nowhere earlier.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market"
)

// Summary is a result plus the bookkeeping that surrounds it.
type Summary struct {
	RunID   string
	Created time.Time
	Dataset string
	Result  *backtest.Result

	// LastTrades limits the trade listing; 0 means DefaultLastTrades.
	LastTrades int
	Notes      []string
}

const DefaultLastTrades = 5

var printer = message.NewPrinter(language.English)

// Round rounds x half away from zero to places decimals.
func Round(x float64, places int32) float64 {
	v, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return v
}

// Money formats x with two decimals and thousands separators.
func Money(x float64) string {
	return printer.Sprintf("%.2f", Round(x, 2))
}

// Pct formats a percent-unit value such as 12.345 as "12.35%".
func Pct(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2) + "%"
}

func lastTrades(trades []backtest.TradeRecord, n int) []backtest.TradeRecord {
	if n <= 0 {
		n = DefaultLastTrades
	}
	if len(trades) > n {
		return trades[len(trades)-n:]
	}
	return trades
}

// Write prints a human readable report of s.
func Write(w io.Writer, s Summary) error {
	r := s.Result
	if r == nil {
		return fmt.Errorf("report: no result")
	}
	ew := &errWriter{w: w}
	p := r.Params

	ew.println("==================================================")
	ew.println(" Backtest Result")
	ew.println("==================================================")

	if s.RunID != "" {
		ew.printf("Run ID:        %s\n", s.RunID)
	}
	if !s.Created.IsZero() {
		ew.printf("Created:       %s\n", s.Created.Format(time.RFC3339))
	}
	ew.printf("Strategy:      MACD(%d,%d,%d) crossover\n", p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
	ew.printf("Symbol:        %s\n", r.Symbol)
	if s.Dataset != "" {
		ew.printf("Dataset:       %s\n", s.Dataset)
	}

	ew.println()
	ew.println("Period")
	ew.println("--------------------------------------------------")
	ew.printf("Start:         %s\n", r.Start.Format(market.DateLayout))
	ew.printf("End:           %s\n", r.End.Format(market.DateLayout))

	ew.println()
	ew.println("Strategy Configuration")
	ew.println("--------------------------------------------------")
	ew.printf("Fee Rate:      %s\n", Pct(p.FeeRate*100))
	ew.printf("Tax Rate:      %s\n", Pct(p.TaxRate*100))
	ew.printf("Stop Loss:     %s\n", Pct(p.StopLossPct*100))
	ew.printf("Take Profit:   %s\n", Pct(p.TakeProfitPct*100))

	ew.println()
	ew.println("Trade Statistics")
	ew.println("--------------------------------------------------")
	ew.printf("Trades:        %d\n", r.TradeCount)
	ew.printf("Wins:          %d\n", r.Wins)
	ew.printf("Losses:        %d\n", r.Losses)
	ew.printf("Win Rate:      %s\n", Pct(r.WinRatePct))
	ew.printf("Risk/Reward:   %s\n", decimal.NewFromFloat(r.RiskReward).StringFixed(2))

	ew.println()
	ew.println("Account Performance")
	ew.println("--------------------------------------------------")
	ew.printf("Start Balance: %s\n", Money(r.InitialCash))
	ew.printf("End Balance:   %s\n", Money(r.FinalValue))
	ew.printf("Net P/L:       %s\n", Money(r.NetProfit()))
	ew.printf("Return:        %s\n", Pct(r.TotalReturnPct))
	ew.printf("Annualized:    %s\n", Pct(r.AnnualizedReturnPct))
	ew.printf("Max Drawdown:  %s\n", Pct(r.MaxDrawdownPct))
	ew.printf("Status:        %s\n", r.Status())

	ew.println()
	ew.println("Recent Trades")
	ew.println("--------------------------------------------------")
	recent := lastTrades(r.Trades, s.LastTrades)
	if len(recent) == 0 {
		ew.println("No trades in period.")
	}
	for _, t := range recent {
		ew.printf("%s  %-18s %-18s @%s x %d", t.Date.Format(market.DateLayout), t.Action, t.Reason, Money(t.Price), t.Shares)
		if t.ReturnPct != nil {
			ew.printf("  %s", Pct(*t.ReturnPct))
		}
		ew.println()
	}

	if len(s.Notes) > 0 {
		ew.println()
		ew.println("Observations")
		ew.println("--------------------------------------------------")
		for _, note := range s.Notes {
			ew.printf("- %s\n", note)
		}
	}

	ew.println()
	return ew.err
}

// ChatText renders the compact message sent back to a chat user, listing
// at most n recent trades.
func ChatText(s Summary, n int) string {
	r := s.Result
	if r == nil {
		return "No result."
	}
	trend := "down"
	if r.TotalReturnPct > 0 {
		trend = "up"
	}

	msg := fmt.Sprintf("Backtest report (%s)\n", r.Symbol) +
		"--------------------------\n" +
		fmt.Sprintf("Period: %s ~ %s\n", r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout)) +
		fmt.Sprintf("Initial cash: $%s\n", printer.Sprintf("%.0f", Round(r.InitialCash, 0))) +
		fmt.Sprintf("Final value: $%s\n", Money(r.FinalValue)) +
		fmt.Sprintf("Total return: %s (%s)\n", Pct(r.TotalReturnPct), trend) +
		fmt.Sprintf("Annualized return: %s\n", Pct(r.AnnualizedReturnPct)) +
		fmt.Sprintf("Win rate: %s\n", Pct(r.WinRatePct)) +
		fmt.Sprintf("Trades: %d\n", r.TradeCount) +
		fmt.Sprintf("Max drawdown: %s\n", Pct(r.MaxDrawdownPct)) +
		fmt.Sprintf("Risk/reward: %s\n", decimal.NewFromFloat(r.RiskReward).StringFixed(2)) +
		"--------------------------\n"

	recent := lastTrades(r.Trades, n)
	if len(recent) == 0 {
		return msg + "No trades in period.\n"
	}
	msg += fmt.Sprintf("Last %d trades:\n", len(recent))
	for i, t := range recent {
		if i > 0 {
			msg += "\n"
		}
		msg += fmt.Sprintf("- %s %s @%s", t.Date.Format(market.DateLayout), t.Action, decimal.NewFromFloat(t.Price).StringFixed(2))
	}
	return msg
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, args...)
}
