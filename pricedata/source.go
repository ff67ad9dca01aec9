// Package pricedata loads daily bars for a symbol from local files or a
// market-data provider.
package pricedata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/macdtrader/config"
	"github.com/rustyeddy/macdtrader/market"
)

// Source supplies daily bars for a symbol within [start, end]. A zero
// start or end leaves that side open. Implementations return bars sorted
// by date with at most one bar per day, or an error wrapping
// market.ErrNoPriceData when nothing matches.
type Source interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error)
}

// Open builds the Source selected by cfg.Source.
func Open(cfg config.DataConfig) (Source, error) {
	switch strings.ToLower(cfg.Source) {
	case "csv", "":
		return &CSVSource{Dir: cfg.Dir}, nil
	case "parquet":
		return &ParquetSource{Dir: cfg.Dir}, nil
	case "alpaca":
		return NewAlpacaSource(cfg.APIKey, cfg.APISecret, cfg.BaseURL, cfg.Feed), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}

// Load fetches bars from src and wraps them in a validated series.
func Load(ctx context.Context, src Source, symbol string, start, end time.Time) (market.Series, error) {
	bars, err := src.Bars(ctx, symbol, start, end)
	if err != nil {
		return market.Series{}, err
	}
	s := market.Series{Symbol: symbol, Bars: bars}
	if err := s.Validate(); err != nil {
		return market.Series{}, fmt.Errorf("%s: %w", symbol, err)
	}
	return s, nil
}

// finish normalizes bars, applies the date window and reports an empty
// result as missing data.
func finish(symbol string, bars []market.Bar, start, end time.Time) ([]market.Bar, error) {
	out := market.Between(market.Normalize(bars), start, end)
	if len(out) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w", symbol,
			fmtDate(start), fmtDate(end), market.ErrNoPriceData)
	}
	return out, nil
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(market.DateLayout)
}
