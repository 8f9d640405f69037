package formulas

import (
	"github.com/markcheno/go-talib"
)

// RollingMean calculates the simple moving average of a daily series.
//
// Args:
//   values: Daily metric values, oldest first
//   window: Averaging window in days
//
// Returns:
//   Slice of the same length as values; entries before the first full
//   window are zero (insufficient lookback). Nil if the series is shorter
//   than the window.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	return talib.Sma(values, window)
}

// RollingStdDev calculates the rolling population standard deviation of a
// daily series. Same length/lookback semantics as RollingMean.
func RollingStdDev(values []float64, window int) []float64 {
	if window <= 1 || len(values) < window {
		return nil
	}
	return talib.StdDev(values, window, 1.0)
}

// LatestSMA returns the most recent simple moving average value, or nil if
// the series is shorter than the window.
func LatestSMA(values []float64, window int) *float64 {
	sma := RollingMean(values, window)
	if len(sma) == 0 {
		return nil
	}
	last := sma[len(sma)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

// LatestEMA returns the most recent exponential moving average value.
// EMA reacts faster to recent movement than SMA, which makes it the better
// smoother for spend-trend displays.
func LatestEMA(values []float64, window int) *float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	ema := talib.Ema(values, window)
	if len(ema) == 0 {
		return nil
	}
	last := ema[len(ema)-1]
	if isNaN(last) {
		return nil
	}
	return &last
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
