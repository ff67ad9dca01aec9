package indicators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEMA_Ready(t *testing.T) {
	ema := NewEMA(3)

	require.False(t, ema.Ready())

	ema.Update(1.0)
	require.False(t, ema.Ready())

	ema.Update(2.0)
	require.False(t, ema.Ready())

	ema.Update(3.0)
	require.True(t, ema.Ready())
}

func TestEMA_KnownSequence(t *testing.T) {
	ema := NewEMA(3)

	// period = 3
	// alpha = 2/(3+1) = 0.5
	//
	// sequence: 10, 11, 12, 13
	//
	// EMA steps:
	// 1) seed = 10
	// 2) 0.5*11 + 0.5*10 = 10.5
	// 3) 0.5*12 + 0.5*10.5 = 11.25
	// 4) 0.5*13 + 0.5*11.25 = 12.125

	values := []float64{10, 11, 12, 13}

	var result float64
	for _, v := range values {
		result = ema.Update(v)
	}

	require.True(t, ema.Ready())
	require.InDelta(t, 12.125, result, 1e-9)
	require.InDelta(t, 12.125, ema.Float64(), 1e-9)
}

func TestEMA_SeedIsFirstValue(t *testing.T) {
	ema := NewEMA(26)
	require.Equal(t, 42.5, ema.Update(42.5))
}

func TestNewEMA_PanicsOnBadPeriod(t *testing.T) {
	require.Panics(t, func() { NewEMA(0) })
}
