package pricedata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/rustyeddy/macdtrader/market"
)

// barsClient is the subset of the Alpaca market-data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource fetches daily bars from the Alpaca market-data API. Only
// US symbols are served; Taiwan listings must come from files.
type AlpacaSource struct {
	client barsClient
	feed   string
}

var _ Source = (*AlpacaSource)(nil)

// NewAlpacaSource creates a source with the given credentials. An empty
// dataURL uses the client default and an empty feed lets the API choose.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts), feed: feed}
}

func (s *AlpacaSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	req := marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		Feed:      marketdata.Feed(s.feed),
	}
	if !end.IsZero() {
		// End is inclusive by calendar day.
		req.End = market.Day(end).Add(24*time.Hour - time.Nanosecond)
	}

	abars, err := s.client.GetBars(strings.ToUpper(symbol), req)
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]market.Bar, 0, len(abars))
	for _, ab := range abars {
		bars = append(bars, market.Bar{
			Date:   ab.Timestamp,
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: float64(ab.Volume),
		})
	}
	return finish(symbol, bars, start, end)
}
