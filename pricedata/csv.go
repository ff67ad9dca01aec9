package pricedata

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/macdtrader/market"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVSource reads daily bars from <Dir>/<SYMBOL>.csv.
//
// Rows are
//
//	date,open,high,low,close[,volume]
//
// where date is YYYY-MM-DD or RFC3339. A header row is allowed and
// decides the column order when present. Files exported with a UTF-8 or
// UTF-16 byte order mark are decoded transparently.
type CSVSource struct {
	Dir string
}

var _ Source = (*CSVSource)(nil)

func (s *CSVSource) Path(symbol string) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol)+".csv")
}

func (s *CSVSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(symbol))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", symbol, market.ErrNoPriceData)
		}
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path(symbol), err)
	}
	return finish(symbol, bars, start, end)
}

// ReadCSV parses bars from r in file order. Blank rows are skipped.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(decodeBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := columns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}
	var bars []market.Bar
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		// Allow a single header row
		if line == 1 && isHeader(row) {
			cols, err = headerColumns(row)
			if err != nil {
				return nil, err
			}
			continue
		}

		b, err := cols.parse(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// WriteCSV writes bars with a header row in the layout ReadCSV expects.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format(market.DateLayout),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }

// decodeBOM strips a UTF-8 BOM and converts UTF-16 input to UTF-8.
// Input without a BOM passes through unchanged.
func decodeBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(2)
	if len(head) == 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)) {
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	}
	return transform.NewReader(br, unicode.UTF8BOM.NewDecoder())
}

type columns struct {
	date, open, high, low, close, volume int
}

func isHeader(row []string) bool {
	f := strings.ToLower(strings.TrimSpace(row[0]))
	return f == "date" || f == "time" || f == "timestamp"
}

func headerColumns(row []string) (columns, error) {
	c := columns{date: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "time", "timestamp":
			c.date = i
		case "open":
			c.open = i
		case "high":
			c.high = i
		case "low":
			c.low = i
		case "close", "adj close", "adj_close":
			if c.close < 0 {
				c.close = i
			}
		case "volume":
			c.volume = i
		}
	}
	if c.date < 0 || c.close < 0 {
		return c, fmt.Errorf("header needs date and close columns, got %v", row)
	}
	return c, nil
}

func (c columns) parse(row []string) (market.Bar, error) {
	var b market.Bar
	if c.date >= len(row) || c.close >= len(row) {
		return b, fmt.Errorf("short row %v", row)
	}
	d, err := market.ParseDate(row[c.date])
	if err != nil {
		return b, err
	}
	b.Date = d

	fields := []struct {
		idx int
		dst *float64
	}{
		{c.open, &b.Open}, {c.high, &b.High}, {c.low, &b.Low}, {c.close, &b.Close}, {c.volume, &b.Volume},
	}
	for _, f := range fields {
		if f.idx < 0 || f.idx >= len(row) || strings.TrimSpace(row[f.idx]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[f.idx]), 64)
		if err != nil {
			return b, fmt.Errorf("bad number %q: %w", row[f.idx], err)
		}
		*f.dst = v
	}
	return b, nil
}
