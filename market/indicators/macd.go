package indicators

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/macdtrader/market"
)

// ErrInvalidParameters is returned for empty input or bad periods.
var ErrInvalidParameters = errors.New("invalid parameters")

// MACDPoint holds the indicator values for one bar.
type MACDPoint struct {
	EMAFast   float64
	EMASlow   float64
	DIF       float64 // EMAFast - EMASlow
	Signal    float64 // EMA of DIF
	Histogram float64 // DIF - Signal

	// Settled is set once the slow and signal averages have each seen a
	// full period.
	Settled bool
}

// ValidatePeriods checks 1 <= fast < slow and signal >= 1.
func ValidatePeriods(fast, slow, signal int) error {
	if fast < 1 || slow < 1 || signal < 1 {
		return fmt.Errorf("%w: periods must be >= 1 (fast=%d slow=%d signal=%d)", ErrInvalidParameters, fast, slow, signal)
	}
	if fast >= slow {
		return fmt.Errorf("%w: require fast < slow (got %d/%d)", ErrInvalidParameters, fast, slow)
	}
	return nil
}

// ComputeMACD returns one MACDPoint per input value. Entry i only depends on
// values[0..i].
func ComputeMACD(values []float64, fast, slow, signal int) ([]MACDPoint, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty price series", ErrInvalidParameters)
	}
	if err := ValidatePeriods(fast, slow, signal); err != nil {
		return nil, err
	}

	ef, es, sig := NewEMA(fast), NewEMA(slow), NewEMA(signal)

	out := make([]MACDPoint, len(values))
	for i, x := range values {
		f := ef.Update(x)
		s := es.Update(x)
		dif := f - s
		sg := sig.Update(dif)
		out[i] = MACDPoint{
			EMAFast:   f,
			EMASlow:   s,
			DIF:       dif,
			Signal:    sg,
			Histogram: dif - sg,
			Settled:   es.Ready() && sig.Ready(),
		}
	}
	return out, nil
}

// Compute runs ComputeMACD over the closes of bars.
func Compute(bars []market.Bar, fast, slow, signal int) ([]MACDPoint, error) {
	return ComputeMACD(market.Closes(bars), fast, slow, signal)
}

// ChartPoint is the tuple handed to a chart renderer: price on the upper
// panel, DIF/signal/histogram on the lower one.
type ChartPoint struct {
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	DIF       float64   `json:"dif"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
	Settled   bool      `json:"settled"`
}

// ChartSeries zips bars with their indicator values. The shorter of the two
// inputs bounds the output.
func ChartSeries(bars []market.Bar, points []MACDPoint) []ChartPoint {
	n := min(len(bars), len(points))
	out := make([]ChartPoint, n)
	for i := 0; i < n; i++ {
		out[i] = ChartPoint{
			Date:      bars[i].Date,
			Close:     bars[i].Close,
			DIF:       points[i].DIF,
			Signal:    points[i].Signal,
			Histogram: points[i].Histogram,
			Settled:   points[i].Settled,
		}
	}
	return out
}
