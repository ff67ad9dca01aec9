package journal

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rustyeddy/macdtrader/backtest"
)

var tradeHeader = []string{"date", "action", "reason", "price", "shares", "cash_after", "return_pct", "profit"}

// WriteTradesCSV writes a trade log as CSV. Opening trades leave the
// return and profit columns empty.
func WriteTradesCSV(w io.Writer, trades []backtest.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			fmtDate(t.Date),
			t.Action.String(),
			t.Reason,
			f(t.Price),
			strconv.FormatInt(t.Shares, 10),
			f(t.Cash),
			fp(t.ReturnPct),
			fp(t.Profit),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the daily equity curve as CSV.
func WriteEquityCSV(w io.Writer, curve []backtest.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "equity", "peak", "drawdown", "max_drawdown"}); err != nil {
		return err
	}
	for _, e := range curve {
		if err := cw.Write([]string{fmtDate(e.Date), f(e.Equity), f(e.Peak), f(e.Drawdown), f(e.MaxDrawdown)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func fp(x *float64) string {
	if x == nil {
		return ""
	}
	return f(*x)
}
