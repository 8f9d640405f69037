package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

func pathWithTouches(conversionTime time.Time, offsets []time.Duration, channels []string) domain.ConversionPath {
	path := domain.ConversionPath{
		Conversion: domain.ConversionEvent{
			ConversionID: "c1",
			Timestamp:    conversionTime,
			Revenue:      100,
		},
	}
	for i, offset := range offsets {
		path.Touchpoints = append(path.Touchpoints, domain.Touchpoint{
			Channel:    channels[i],
			CampaignID: "camp",
			Timestamp:  conversionTime.Add(-offset),
		})
	}
	return path
}

func TestWeightsSumToOneForAllModels(t *testing.T) {
	conv := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	pathLengths := [][]time.Duration{
		{0},
		{48 * time.Hour, 0},
		{96 * time.Hour, 48 * time.Hour, 0},
		{200 * time.Hour, 96 * time.Hour, 48 * time.Hour, 12 * time.Hour, 0},
	}

	for _, model := range AllModels() {
		for _, offsets := range pathLengths {
			channels := make([]string, len(offsets))
			for i := range channels {
				channels[i] = "ch"
			}
			path := pathWithTouches(conv, offsets, channels)

			weights, err := Weights(path, model, DefaultHalfLifeDays)
			require.NoError(t, err)
			require.Len(t, weights, len(offsets))

			var sum float64
			for _, w := range weights {
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-6,
				"model %s, path length %d", model, len(offsets))
		}
	}
}

func TestWeightsSingleTouchpointFullCredit(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	path := pathWithTouches(conv, []time.Duration{30 * 24 * time.Hour}, []string{"search"})

	for _, model := range AllModels() {
		weights, err := Weights(path, model, DefaultHalfLifeDays)
		require.NoError(t, err)
		require.Len(t, weights, 1)
		assert.InDelta(t, 1.0, weights[0], 1e-9, "model %s", model)
	}
}

func TestWeightsFirstAndLastTouch(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	path := pathWithTouches(conv,
		[]time.Duration{72 * time.Hour, 24 * time.Hour, 0},
		[]string{"a", "b", "c"})

	first, err := Weights(path, ModelFirstTouch, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, first)

	last, err := Weights(path, ModelLastTouch, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, last)
}

func TestWeightsLinear(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	path := pathWithTouches(conv,
		[]time.Duration{96 * time.Hour, 72 * time.Hour, 48 * time.Hour, 0},
		[]string{"a", "b", "a", "c"})

	weights, err := Weights(path, ModelLinear, 0)
	require.NoError(t, err)
	for _, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-9)
	}
}

func TestWeightsPositionBased(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// Two touches split evenly.
	two := pathWithTouches(conv, []time.Duration{24 * time.Hour, 0}, []string{"a", "b"})
	weights, err := Weights(two, ModelPositionBased, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, weights[0], 1e-9)
	assert.InDelta(t, 0.5, weights[1], 1e-9)

	// Five touches: 0.4 at the ends, 0.2/3 each in the middle.
	five := pathWithTouches(conv,
		[]time.Duration{96 * time.Hour, 72 * time.Hour, 48 * time.Hour, 24 * time.Hour, 0},
		[]string{"a", "b", "c", "d", "e"})
	weights, err = Weights(five, ModelPositionBased, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, weights[0], 1e-9)
	assert.InDelta(t, 0.2/3, weights[1], 1e-9)
	assert.InDelta(t, 0.2/3, weights[2], 1e-9)
	assert.InDelta(t, 0.2/3, weights[3], 1e-9)
	assert.InDelta(t, 0.4, weights[4], 1e-9)
}

func TestWeightsTimeDecay(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// Touches at day 0 and day -7 with a 7-day half-life: raw weights
	// 1 and 0.5, normalized to 2/3 and 1/3.
	path := pathWithTouches(conv,
		[]time.Duration{7 * 24 * time.Hour, 0},
		[]string{"a", "b"})

	weights, err := Weights(path, ModelTimeDecay, 7)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, weights[0], 1e-6)
	assert.InDelta(t, 2.0/3, weights[1], 1e-6)
}

func TestWeightsUnknownModel(t *testing.T) {
	conv := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	path := pathWithTouches(conv, []time.Duration{24 * time.Hour, 0}, []string{"a", "b"})

	_, err := Weights(path, Model("markov_chain"), 0)
	var invalidModel *domain.InvalidModelError
	require.ErrorAs(t, err, &invalidModel)
	assert.Equal(t, "markov_chain", invalidModel.Model)
}

func TestParseModel(t *testing.T) {
	for _, model := range AllModels() {
		parsed, err := ParseModel(string(model))
		require.NoError(t, err)
		assert.Equal(t, model, parsed)
	}

	_, err := ParseModel("u_shaped")
	assert.Error(t, err)
}

func TestValidateLookbackDays(t *testing.T) {
	assert.NoError(t, ValidateLookbackDays(1))
	assert.NoError(t, ValidateLookbackDays(30))
	assert.NoError(t, ValidateLookbackDays(90))

	for _, days := range []int{0, 91, -5} {
		err := ValidateLookbackDays(days)
		require.Error(t, err)
		var invalidArg *domain.InvalidArgumentError
		assert.ErrorAs(t, err, &invalidArg)
		assert.True(t, domain.IsRequestError(err), "lookback %d is a caller error", days)
	}
}
