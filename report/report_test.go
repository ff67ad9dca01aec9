package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market/indicators"
)

func d(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func fptr(x float64) *float64 { return &x }

func sampleResult() *backtest.Result {
	return &backtest.Result{
		Symbol:              "0050.TW",
		Start:               d(1),
		End:                 d(31),
		Params:              backtest.ParamsFor(1),
		InitialCash:         100000,
		FinalValue:          104567.891,
		TotalReturnPct:      4.567891,
		AnnualizedReturnPct: 68.12345,
		WinRatePct:          50,
		MaxDrawdownPct:      3.14159,
		RiskReward:          1.755,
		TradeCount:          2,
		Wins:                1,
		Losses:              1,
		Trades: []backtest.TradeRecord{
			{Date: d(2), Action: backtest.Buy, Reason: backtest.ReasonGoldenCross, Price: 100, Shares: 998, Cash: 57.87},
			{Date: d(9), Action: backtest.Sell, Reason: backtest.ReasonStopLoss, Price: 94.5, Shares: 998, Cash: 94187.1,
				ReturnPct: fptr(-5.5), Profit: fptr(-5812.9)},
			{Date: d(15), Action: backtest.Buy, Reason: backtest.ReasonGoldenCross, Price: 90.125, Shares: 1043, Cash: 41.2},
			{Date: d(31), Action: backtest.ForcedLiquidation, Reason: backtest.ReasonForcedLiquidation, Price: 100.3, Shares: 1043, Cash: 104567.891,
				ReturnPct: fptr(11.2899), Profit: fptr(10380.791)},
		},
	}
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235, 2))
	assert.Equal(t, -1.24, Round(-1.235, 2))
	assert.Equal(t, 3.0, Round(2.5, 0))
	assert.Equal(t, "1,234,567.89", Money(1234567.891))
	assert.Equal(t, "0.00", Money(0))
	assert.Equal(t, "12.35%", Pct(12.345))
	assert.Equal(t, "-0.50%", Pct(-0.5))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Summary{RunID: "01HXYZ", Dataset: "csv", Result: sampleResult(), Notes: []string{"one stop-loss"}})
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Run ID:        01HXYZ")
	assert.Contains(t, out, "Strategy:      MACD(12,26,9) crossover")
	assert.Contains(t, out, "Symbol:        0050.TW")
	assert.Contains(t, out, "Start:         2024-01-01")
	assert.Contains(t, out, "Tax Rate:      0.10%")
	assert.Contains(t, out, "Stop Loss:     5.00%")
	assert.Contains(t, out, "Trades:        2")
	assert.Contains(t, out, "Win Rate:      50.00%")
	assert.Contains(t, out, "Risk/Reward:   1.76")
	assert.Contains(t, out, "Start Balance: 100,000.00")
	assert.Contains(t, out, "End Balance:   104,567.89")
	assert.Contains(t, out, "Net P/L:       4,567.89")
	assert.Contains(t, out, "Max Drawdown:  3.14%")
	assert.Contains(t, out, "Status:        holding since 2024-01-15")
	assert.Contains(t, out, "stop-loss")
	assert.Contains(t, out, "-5.50%")
	assert.Contains(t, out, "- one stop-loss")
	assert.NotContains(t, out, "Created:")
}

func TestWriteLimitsTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Summary{Result: sampleResult(), LastTrades: 1}))
	out := buf.String()
	assert.Contains(t, out, "forced_liquidation")
	assert.NotContains(t, out, "2024-01-02  buy")
}

func TestWriteNoTrades(t *testing.T) {
	r := sampleResult()
	r.Trades = nil
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Summary{Result: r}))
	assert.Contains(t, buf.String(), "No trades in period.")
	assert.Contains(t, buf.String(), "Status:        no trades")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrors(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Summary{}))
	assert.ErrorContains(t, Write(failWriter{}, Summary{Result: sampleResult()}), "disk full")
}

func TestChatText(t *testing.T) {
	msg := ChatText(Summary{Result: sampleResult()}, 5)

	assert.True(t, strings.HasPrefix(msg, "Backtest report (0050.TW)\n"))
	assert.Contains(t, msg, "Period: 2024-01-01 ~ 2024-01-31")
	assert.Contains(t, msg, "Initial cash: $100,000")
	assert.Contains(t, msg, "Final value: $104,567.89")
	assert.Contains(t, msg, "Total return: 4.57% (up)")
	assert.Contains(t, msg, "Annualized return: 68.12%")
	assert.Contains(t, msg, "Trades: 2")
	assert.Contains(t, msg, "Last 4 trades:")
	assert.Contains(t, msg, "- 2024-01-15 buy @90.13")

	short := ChatText(Summary{Result: sampleResult()}, 2)
	assert.Contains(t, short, "Last 2 trades:")
	assert.NotContains(t, short, "2024-01-02")

	r := sampleResult()
	r.Trades = nil
	r.TotalReturnPct = 0
	empty := ChatText(Summary{Result: r}, 5)
	assert.Contains(t, empty, "(down)")
	assert.Contains(t, empty, "No trades in period.")
}

func TestNewView(t *testing.T) {
	chart := []indicators.ChartPoint{{Date: d(1), Close: 100}}
	v := NewView(Summary{RunID: "r1", Result: sampleResult()}, chart)

	assert.Equal(t, "r1", v.RunID)
	assert.Equal(t, "2024-01-31", v.End)
	assert.Equal(t, 104567.89, v.FinalValue)
	assert.Equal(t, 4567.89, v.NetProfit)
	assert.Equal(t, 3.14, v.MaxDrawdownPct)
	assert.Equal(t, 1.76, v.RiskReward)
	assert.Equal(t, "holding since 2024-01-15", v.Status)
	require.Len(t, v.Trades, 4)
	assert.Nil(t, v.Trades[0].ReturnPct)
	assert.Equal(t, 11.29, *v.Trades[3].ReturnPct)
	assert.Equal(t, "forced_liquidation", v.Trades[3].Action)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, 104567.89, m["final_portfolio_value"])
	assert.Len(t, m["chart"], 1)
	assert.Len(t, m["trades"], 4)
}
