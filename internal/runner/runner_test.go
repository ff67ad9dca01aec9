package runner

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/market"
)

// memSource serves a fixed bar set.
type memSource struct {
	bars []market.Bar
	err  error
}

func (m *memSource) Bars(_ context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := market.Between(m.bars, start, end)
	if len(out) == 0 {
		return nil, market.ErrNoPriceData
	}
	return out, nil
}

func wave(n int) []market.Bar {
	day0 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Date: day0.AddDate(0, 0, i), Close: 100 + 10*math.Sin(float64(i)/6)}
	}
	return bars
}

func req() Request {
	return Request{Symbol: "2330.TW", Cash: 100000, Params: backtest.DefaultParams()}
}

func TestRun(t *testing.T) {
	r := &Runner{Source: &memSource{bars: wave(200)}}
	out, err := r.Run(context.Background(), req())
	require.NoError(t, err)

	assert.Nil(t, out.Run)
	assert.Equal(t, 200, out.Series.Len())
	assert.Len(t, out.Points, 200)
	assert.Equal(t, "2330.TW", out.Result.Symbol)
	assert.Greater(t, out.Result.TradeCount, 0)
	assert.Len(t, out.Chart(), 200)
}

func TestRunRange(t *testing.T) {
	r := &Runner{Source: &memSource{bars: wave(200)}}
	rq := req()
	rq.Start = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	rq.End = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	out, err := r.Run(context.Background(), rq)
	require.NoError(t, err)
	assert.Equal(t, rq.Start, out.Result.Start)
	assert.Equal(t, rq.End, out.Result.End)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	r := &Runner{Source: &memSource{bars: wave(50)}}

	rq := req()
	rq.Cash = 0
	_, err := r.Run(ctx, rq)
	assert.True(t, errors.Is(err, backtest.ErrInvalidParameters))

	rq = req()
	rq.Params.FastPeriod = 30
	_, err = r.Run(ctx, rq)
	assert.True(t, errors.Is(err, backtest.ErrInvalidParameters))

	rq = req()
	rq.Start = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	rq.End = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = r.Run(ctx, rq)
	assert.True(t, errors.Is(err, backtest.ErrInvalidParameters))

	rq = req()
	rq.Start = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = r.Run(ctx, rq)
	assert.True(t, errors.Is(err, backtest.ErrNoPriceData))

	r = &Runner{Source: &memSource{err: errors.New("offline")}}
	_, err = r.Run(ctx, req())
	assert.ErrorContains(t, err, "offline")

	_, err = (&Runner{}).Run(ctx, req())
	assert.Error(t, err)
}

func TestRunJournals(t *testing.T) {
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "j.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	r := &Runner{Source: &memSource{bars: wave(120)}, Journal: j, Dataset: "mem"}
	rq := req()
	rq.Notes = []string{"sine wave"}
	rq.NextActions = []string{"compare with 5/35/5"}
	out, err := r.Run(context.Background(), rq)
	require.NoError(t, err)
	require.NotNil(t, out.Run)

	run, err := j.GetRun(context.Background(), out.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "mem", run.Dataset)
	assert.Equal(t, []string{"sine wave"}, run.Notes)
	assert.Equal(t, []string{"compare with 5/35/5"}, run.NextActions)
	assert.Equal(t, out.Result.TradeCount, run.Trades)

	trades, err := j.ListTrades(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Len(t, trades, len(out.Result.Trades))
}

func TestRunConcurrentIsolated(t *testing.T) {
	r := &Runner{Source: &memSource{bars: wave(150)}}
	want, err := r.Run(context.Background(), req())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Outcome, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Run(context.Background(), req())
			if err == nil {
				results[i] = out
			}
		}(i)
	}
	wg.Wait()
	for _, out := range results {
		require.NotNil(t, out)
		assert.Equal(t, want.Result.FinalValue, out.Result.FinalValue)
		assert.Equal(t, want.Result.Trades, out.Result.Trades)
	}
}
