package pricedata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/macdtrader/market"
)

// ParquetSource stores daily bars as one Parquet file per symbol and year:
//
//	<Dir>/<SYMBOL>/<YYYY>.parquet
type ParquetSource struct {
	Dir string
}

var _ Source = (*ParquetSource)(nil)

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

func (s *ParquetSource) path(symbol string, year int) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol), fmt.Sprintf("%04d.parquet", year))
}

// Bars reads every year file overlapping [start, end]. With an open range
// all year files present for the symbol are read.
func (s *ParquetSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	years, err := s.years(symbol, start, end)
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		yearBars, err := readYear(s.path(symbol, year))
		if err != nil {
			return nil, fmt.Errorf("reading %s/%d: %w", symbol, year, err)
		}
		bars = append(bars, yearBars...)
	}
	return finish(symbol, bars, start, end)
}

// WriteBars merges bars into the symbol's year files. Existing bars for
// the same day are replaced.
func (s *ParquetSource) WriteBars(ctx context.Context, symbol string, bars []market.Bar) error {
	groups := make(map[int][]market.Bar)
	for _, b := range market.Normalize(bars) {
		groups[b.Date.Year()] = append(groups[b.Date.Year()], b)
	}

	for year, incoming := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := s.path(symbol, year)

		// An unreadable year file is an error; overwriting it would lose
		// the bars it holds.
		existing, err := readYear(path)
		if err != nil {
			return fmt.Errorf("merging bars for %s/%d: %w", symbol, year, err)
		}
		merged := market.Normalize(append(existing, incoming...))

		records := make([]BarRecord, len(merged))
		for i, b := range merged {
			records[i] = BarRecord{
				Timestamp: b.Date.UnixMilli(),
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
		}
		if err := writeParquetFile(path, records); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

func (s *ParquetSource) years(symbol string, start, end time.Time) ([]int, error) {
	if !start.IsZero() && !end.IsZero() {
		var ys []int
		for y := start.Year(); y <= end.Year(); y++ {
			ys = append(ys, y)
		}
		return ys, nil
	}

	entries, err := os.ReadDir(filepath.Join(s.Dir, strings.ToUpper(symbol)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ys []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if !ok || e.IsDir() {
			continue
		}
		y, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		if (!start.IsZero() && y < start.Year()) || (!end.IsZero() && y > end.Year()) {
			continue
		}
		ys = append(ys, y)
	}
	sort.Ints(ys)
	return ys, nil
}

// readYear returns the bars stored at path. A missing file holds no bars.
func readYear(path string) ([]market.Bar, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]market.Bar, len(records))
	for i, r := range records {
		bars[i] = market.Bar{
			Date:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return bars, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
