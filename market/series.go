package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNoPriceData is returned when a data source produced no usable bars
	// for the requested symbol and range.
	ErrNoPriceData = errors.New("no price data")

	// ErrInvalidSeries is returned when bars are out of order, duplicated or
	// carry a non-positive close.
	ErrInvalidSeries = errors.New("invalid price series")
)

// Series is an ordered daily price history for one instrument.
type Series struct {
	Symbol string
	Bars   []Bar
}

func (s Series) Len() int { return len(s.Bars) }

// Start returns the date of the first bar (zero when empty).
func (s Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Date
}

// End returns the date of the last bar (zero when empty).
func (s Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Validate checks that the series is non-empty, strictly increasing by date
// and that every close is positive.
func (s Series) Validate() error {
	return ValidateBars(s.Bars)
}

// ValidateBars is Validate for a bare slice.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoPriceData
	}
	for i, b := range bars {
		if !(b.Close > 0) {
			return fmt.Errorf("%w: bar %d (%s) has close %v", ErrInvalidSeries, i, b.Date.Format(DateLayout), b.Close)
		}
		if i > 0 && !bars[i-1].Date.Before(b.Date) {
			return fmt.Errorf("%w: bar %d (%s) is not after %s", ErrInvalidSeries, i,
				b.Date.Format(DateLayout), bars[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// Normalize sorts bars by date, truncates dates to whole days and drops
// duplicate days, keeping the last bar seen for a day. Bars with a
// non-positive close are discarded. The input slice is not modified.
func Normalize(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !(b.Close > 0) {
			continue
		}
		b.Date = Day(b.Date)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Date.Equal(b.Date) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// Between returns the bars whose date falls within [start, end]. A zero
// start or end leaves that side unbounded.
func Between(bars []Bar, start, end time.Time) []Bar {
	var out []Bar
	for _, b := range bars {
		if inRange(b.Date, start, end) {
			out = append(out, b)
		}
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(Day(from)) {
		return false
	}
	if !to.IsZero() && t.After(Day(to)) {
		return false
	}
	return true
}
