package market

import "strings"

// Kind distinguishes instruments that are taxed differently on sale.
type Kind int

const (
	Stock Kind = iota
	ETF
)

func (k Kind) String() string {
	switch k {
	case ETF:
		return "etf"
	default:
		return "stock"
	}
}

// ParseKind accepts "stock" or "etf" (case-insensitive). Anything else is
// reported as not ok.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "equity":
		return Stock, true
	case "etf", "fund":
		return ETF, true
	}
	return Stock, false
}

// Securities transaction tax charged on the sell side.
const (
	StockTaxRate = 0.003
	ETFTaxRate   = 0.001
)

// TaxRate returns the sell-side transaction tax for the instrument kind.
func (k Kind) TaxRate() float64 {
	if k == ETF {
		return ETFTaxRate
	}
	return StockTaxRate
}

type Instrument struct {
	Symbol   string
	Name     string
	Kind     Kind
	Currency string
}

var Instruments = map[string]Instrument{
	"2330.TW": {Symbol: "2330.TW", Name: "TSMC", Kind: Stock, Currency: "TWD"},
	"2317.TW": {Symbol: "2317.TW", Name: "Hon Hai", Kind: Stock, Currency: "TWD"},
	"2454.TW": {Symbol: "2454.TW", Name: "MediaTek", Kind: Stock, Currency: "TWD"},
	"0050.TW": {Symbol: "0050.TW", Name: "Yuanta Taiwan Top 50", Kind: ETF, Currency: "TWD"},
	"0056.TW": {Symbol: "0056.TW", Name: "Yuanta Taiwan High Dividend", Kind: ETF, Currency: "TWD"},
	"SPY":     {Symbol: "SPY", Name: "SPDR S&P 500", Kind: ETF, Currency: "USD"},
	"AAPL":    {Symbol: "AAPL", Name: "Apple", Kind: Stock, Currency: "USD"},
}

// LookupInstrument returns the registered instrument for symbol. Unknown
// symbols are classified by convention: Taiwan listings whose code starts
// with "00" are funds, everything else is a stock.
func LookupInstrument(symbol string) Instrument {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if in, ok := Instruments[sym]; ok {
		return in
	}
	in := Instrument{Symbol: sym, Name: sym, Kind: Stock, Currency: "USD"}
	if strings.HasSuffix(sym, ".TW") || strings.HasSuffix(sym, ".TWO") {
		in.Currency = "TWD"
		if strings.HasPrefix(sym, "00") {
			in.Kind = ETF
		}
	}
	return in
}
