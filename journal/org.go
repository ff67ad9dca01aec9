package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
)

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"opt": func(p *float64) string {
		if p == nil {
			return ""
		}
		return fmt.Sprintf("%.2f", *p)
	},
}

var runOrgTmpl = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

type orgView struct {
	Run
	TradeLog []backtest.TradeRecord
}

// WriteOrg renders run as an Org-mode entry. trades may be nil to omit
// the trade table.
func WriteOrg(w io.Writer, run Run, trades []backtest.TradeRecord) error {
	return runOrgTmpl.Execute(w, orgView{Run: run, TradeLog: trades})
}

// WriteOrgFile writes the Org entry for run to path.
func WriteOrgFile(path string, run Run, trades []backtest.TradeRecord) error {
	var b strings.Builder
	if err := WriteOrg(&b, run, trades); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

const RunOrgTemplate = `
* BACKTEST: MACD-Cross {{.Symbol}} {{date .Start}}..{{date .End}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    macd_cross
:SYMBOL:      {{.Symbol}}
:KIND:        {{.Kind}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_BAL:   {{printf "%.2f" .InitialCash}}
:END_BAL:     {{printf "%.2f" .FinalValue}}
:NET_PL:      {{printf "%.2f" .NetProfit}}
:RETURN_PCT:  {{printf "%.2f" .TotalReturnPct}}
:CAGR_PCT:    {{printf "%.2f" .AnnualizedReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdownPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRatePct}}
:RISK_REWARD: {{if ne .RiskReward 0.0}}{{printf "%.2f" .RiskReward}}{{else}}(n/a){{end}}
:STATUS:      {{.Status}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter      | Value |
|----------------+-------|
| Fast EMA       | {{.Params.FastPeriod}} |
| Slow EMA       | {{.Params.SlowPeriod}} |
| Signal EMA     | {{.Params.SignalPeriod}} |
| Fee %          | {{printf "%.4f" (mul100 .Params.FeeRate)}} |
| Tax %          | {{printf "%.4f" (mul100 .Params.TaxRate)}} |
| Stop-loss %    | {{printf "%.2f" (mul100 .Params.StopLossPct)}} |
| Take-profit %  | {{printf "%.2f" (mul100 .Params.TakeProfitPct)}} |

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetProfit}}*
- Return:           *{{printf "%.2f" .TotalReturnPct}}%*
- Annualized:       *{{printf "%.2f" .AnnualizedReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDrawdownPct}}%*
- Win Rate:         *{{printf "%.2f" .WinRatePct}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .TradeLog }}

** Trades
| Date | Action | Reason | Price | Shares | Return % | Profit |
|------+--------+--------+-------+--------+----------+--------|
{{- range .TradeLog }}
| {{date .Date}} | {{.Action}} | {{.Reason}} | {{printf "%.2f" .Price}} | {{.Shares}} | {{opt .ReturnPct}} | {{opt .Profit}} |
{{- end }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}

{{- if .NextActions }}

** Notes / Next Actions
{{- range .NextActions }}
- [ ] {{.}}
{{- end }}
{{- end }}
`
