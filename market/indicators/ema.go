// Package indicators computes the moving-average family used by the MACD
// strategy.
package indicators

// EMA computes an Exponential Moving Average over a stream of values.
//
// Seeding: the first observed value becomes the average (no simple-average
// warm-up window). This matches pandas ewm(adjust=False) and keeps every
// output well defined from the first bar on.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64
	ready bool
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{
		n:     period,
		alpha: 2.0 / float64(period+1),
	}
}

// Ready reports whether the average has seen a full period of values.
// Earlier outputs are defined but still dominated by the seed.
func (e *EMA) Ready() bool      { return e.ready }
func (e *EMA) Float64() float64 { return e.value }

// Update feeds the next value and returns the new average.
func (e *EMA) Update(x float64) float64 {
	e.seen++
	if e.seen == 1 {
		e.value = x
	} else {
		e.value = e.alpha*x + (1.0-e.alpha)*e.value
	}

	if e.seen >= e.n {
		e.ready = true
	}
	return e.value
}
