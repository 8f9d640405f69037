package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		window   int
		wantNil  bool
		wantLast float64
	}{
		{
			name:     "constant series",
			values:   []float64{5, 5, 5, 5, 5},
			window:   3,
			wantLast: 5,
		},
		{
			name:     "ascending series",
			values:   []float64{1, 2, 3, 4, 5},
			window:   3,
			wantLast: 4, // (3+4+5)/3
		},
		{
			name:    "series shorter than window",
			values:  []float64{1, 2},
			window:  3,
			wantNil: true,
		},
		{
			name:    "zero window",
			values:  []float64{1, 2, 3},
			window:  0,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollingMean(tt.values, tt.window)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.Len(t, got, len(tt.values))
			assert.InDelta(t, tt.wantLast, got[len(got)-1], 1e-9)
		})
	}
}

func TestRollingStdDev(t *testing.T) {
	// Constant series has zero deviation everywhere past the lookback.
	got := RollingStdDev([]float64{7, 7, 7, 7, 7, 7}, 4)
	require.Len(t, got, 6)
	assert.InDelta(t, 0, got[len(got)-1], 1e-9)

	// Population stddev of {1,2,3,4} is sqrt(1.25).
	got = RollingStdDev([]float64{1, 2, 3, 4}, 4)
	require.Len(t, got, 4)
	assert.InDelta(t, 1.118033988749895, got[len(got)-1], 1e-9)

	assert.Nil(t, RollingStdDev([]float64{1, 2}, 4))
	assert.Nil(t, RollingStdDev([]float64{1, 2, 3}, 1))
}

func TestLatestSMA(t *testing.T) {
	v := LatestSMA([]float64{10, 20, 30}, 3)
	require.NotNil(t, v)
	assert.InDelta(t, 20, *v, 1e-9)

	assert.Nil(t, LatestSMA([]float64{10}, 3))
}

func TestLatestEMA(t *testing.T) {
	// EMA of a constant series converges to the constant.
	v := LatestEMA([]float64{4, 4, 4, 4, 4, 4, 4}, 3)
	require.NotNil(t, v)
	assert.InDelta(t, 4, *v, 1e-9)

	// EMA weights recent values more than SMA does.
	ema := LatestEMA([]float64{1, 1, 1, 1, 10}, 3)
	sma := LatestSMA([]float64{1, 1, 1, 1, 10}, 3)
	require.NotNil(t, ema)
	require.NotNil(t, sma)
	assert.Greater(t, *ema, *sma)

	assert.Nil(t, LatestEMA([]float64{1, 2}, 3))
}
