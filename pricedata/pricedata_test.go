package pricedata

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/macdtrader/config"
	"github.com/rustyeddy/macdtrader/market"
)

func day(s string) time.Time {
	t, err := time.Parse(market.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

const sampleCSV = `date,open,high,low,close,volume
2024-01-03,101,103,100,102,2000
2024-01-02,99,101,98,100,1000
2024-01-04,102,104,101,103,1500
2024-01-04,102,104,101,104,1600
`

func TestCSVSourceSortsAndDedupes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2330.TW.csv", []byte(sampleCSV))

	src := &CSVSource{Dir: dir}
	bars, err := src.Bars(context.Background(), "2330.tw", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, day("2024-01-02"), bars[0].Date)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 1000.0, bars[0].Volume)
	assert.Equal(t, day("2024-01-04"), bars[2].Date)
	assert.Equal(t, 104.0, bars[2].Close, "last duplicate wins")
	assert.NoError(t, market.ValidateBars(bars))
}

func TestCSVSourceRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "SPY.csv", []byte(sampleCSV))

	src := &CSVSource{Dir: dir}
	bars, err := src.Bars(context.Background(), "SPY", day("2024-01-03"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 102.0, bars[0].Close)

	_, err = src.Bars(context.Background(), "SPY", day("2025-01-01"), day("2025-02-01"))
	assert.True(t, errors.Is(err, market.ErrNoPriceData))
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := &CSVSource{Dir: t.TempDir()}
	_, err := src.Bars(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, market.ErrNoPriceData))
}

func TestReadCSVWithoutHeader(t *testing.T) {
	bars, err := ReadCSV(bytes.NewBufferString("2024-01-02,1,2,0.5,1.5\n\n2024-01-03T00:00:00Z,1,2,0.5,1.7\n"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.5, bars[0].Close)
	assert.Equal(t, day("2024-01-03"), bars[1].Date)
}

func TestReadCSVHeaderOrder(t *testing.T) {
	in := "Date,Close,Open\n2024-01-02,10.5,10\n"
	bars, err := ReadCSV(bytes.NewBufferString(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 10.0, bars[0].Open)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("date,open\n2024-01-02,1\n"))
	assert.Error(t, err, "header without close")

	_, err = ReadCSV(bytes.NewBufferString("2024-01-02,1,2,3,abc\n"))
	assert.Error(t, err)

	_, err = ReadCSV(bytes.NewBufferString("someday,1,2,3,4\n"))
	assert.Error(t, err)
}

func TestReadCSVStripsUTF8BOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleCSV)...)
	bars, err := ReadCSV(bytes.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, bars, 4)
}

func TestReadCSVDecodesUTF16(t *testing.T) {
	text := "date,close\n2024-01-02,42\n"
	in := []byte{0xFF, 0xFE}
	for _, r := range text {
		in = append(in, byte(r), 0)
	}
	bars, err := ReadCSV(bytes.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 42.0, bars[0].Close)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	in := []market.Bar{
		{Date: day("2024-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 10},
		{Date: day("2024-01-03"), Open: 1.25, High: 2, Low: 1, Close: 1.5, Volume: 20},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))
	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParquetSourceWriteRead(t *testing.T) {
	dir := t.TempDir()
	src := &ParquetSource{Dir: dir}
	ctx := context.Background()

	bars := []market.Bar{
		{Date: day("2023-12-28"), Close: 98},
		{Date: day("2023-12-29"), Close: 99},
		{Date: day("2024-01-02"), Close: 100},
		{Date: day("2024-01-03"), Close: 101},
	}
	require.NoError(t, src.WriteBars(ctx, "spy", bars))
	assert.FileExists(t, filepath.Join(dir, "SPY", "2023.parquet"))
	assert.FileExists(t, filepath.Join(dir, "SPY", "2024.parquet"))

	// merge replaces an existing day
	require.NoError(t, src.WriteBars(ctx, "SPY", []market.Bar{{Date: day("2024-01-03"), Close: 111}}))

	got, err := src.Bars(ctx, "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, day("2023-12-28"), got[0].Date)
	assert.Equal(t, 111.0, got[3].Close)

	got, err = src.Bars(ctx, "SPY", day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = src.Bars(ctx, "QQQ", day("2024-01-01"), day("2024-12-31"))
	assert.True(t, errors.Is(err, market.ErrNoPriceData))
}

func TestParquetSourceWriteBarsKeepsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	src := &ParquetSource{Dir: dir}
	ctx := context.Background()

	path := filepath.Join(dir, "SPY", "2024.parquet")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	junk := []byte("not a parquet file")
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	err := src.WriteBars(ctx, "SPY", []market.Bar{{Date: day("2024-01-02"), Close: 100}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPY/2024")

	kept, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, junk, kept)

	_, err = src.Bars(ctx, "SPY", time.Time{}, time.Time{})
	assert.Error(t, err)
}

type fakeBars struct {
	bars []marketdata.Bar
	err  error
	req  marketdata.GetBarsRequest
	sym  string
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.sym, f.req = symbol, req
	return f.bars, f.err
}

func TestAlpacaSource(t *testing.T) {
	ny := time.FixedZone("EST", -5*3600)
	fake := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, ny), Close: 1.6, Volume: 200},
	}}
	src := &AlpacaSource{client: fake, feed: "iex"}

	bars, err := src.Bars(context.Background(), "aapl", day("2024-01-01"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", fake.sym)
	assert.Equal(t, marketdata.OneDay, fake.req.TimeFrame)
	assert.True(t, fake.req.End.After(day("2024-01-03")))
	assert.Equal(t, day("2024-01-02"), bars[0].Date)
	assert.Equal(t, 100.0, bars[0].Volume)
	assert.Equal(t, day("2024-01-03"), bars[1].Date)

	fake.err = errors.New("boom")
	_, err = src.Bars(context.Background(), "AAPL", time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "boom")

	fake.err, fake.bars = nil, nil
	_, err = src.Bars(context.Background(), "AAPL", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, market.ErrNoPriceData))
}

func TestOpen(t *testing.T) {
	src, err := Open(config.DataConfig{Source: "csv", Dir: "x"})
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = Open(config.DataConfig{Source: "parquet", Dir: "x"})
	require.NoError(t, err)
	assert.IsType(t, &ParquetSource{}, src)

	src, err = Open(config.DataConfig{Source: "Parquet", Dir: "x"})
	require.NoError(t, err)
	assert.IsType(t, &ParquetSource{}, src)

	src, err = Open(config.DataConfig{Source: "alpaca", APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &AlpacaSource{}, src)

	_, err = Open(config.DataConfig{Source: "ftp"})
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "SPY.csv", []byte(sampleCSV))

	s, err := Load(context.Background(), &CSVSource{Dir: dir}, "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "SPY", s.Symbol)
	assert.Equal(t, 3, s.Len())
}
