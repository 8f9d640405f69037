package attribution

import (
	"math"

	"github.com/meridianhq/meridian/internal/domain"
)

// Weights computes the credit weight of each touchpoint in a path under
// the given model. The returned slice is parallel to path.Touchpoints and
// always sums to 1.0 (within floating tolerance) for nonempty paths.
// Empty paths return an empty slice: they carry no credit to distribute.
//
// halfLifeDays only affects ModelTimeDecay; pass DefaultHalfLifeDays when
// the caller has no override.
func Weights(path domain.ConversionPath, model Model, halfLifeDays float64) ([]float64, error) {
	n := len(path.Touchpoints)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		// Every model gives a single touchpoint full credit.
		return []float64{1}, nil
	}

	weights := make([]float64, n)

	switch model {
	case ModelFirstTouch:
		weights[0] = 1

	case ModelLastTouch:
		weights[n-1] = 1

	case ModelLinear:
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}

	case ModelTimeDecay:
		if halfLifeDays <= 0 {
			halfLifeDays = DefaultHalfLifeDays
		}
		// Raw weight halves for every half-life between touch and
		// conversion, then the vector is normalized to sum to 1.
		var sum float64
		for i, tp := range path.Touchpoints {
			deltaDays := path.Conversion.Timestamp.Sub(tp.Timestamp).Hours() / 24
			weights[i] = math.Pow(2, -deltaDays/halfLifeDays)
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}

	case ModelPositionBased:
		if n == 2 {
			weights[0] = 0.5
			weights[1] = 0.5
			break
		}
		weights[0] = positionFirstWeight
		weights[n-1] = positionLastWeight
		middle := positionMiddleWeight / float64(n-2)
		for i := 1; i < n-1; i++ {
			weights[i] = middle
		}

	default:
		return nil, &domain.InvalidModelError{Model: string(model)}
	}

	return weights, nil
}
