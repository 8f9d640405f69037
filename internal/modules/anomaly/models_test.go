package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/internal/domain"
)

func TestParseSensitivity(t *testing.T) {
	for _, tag := range []Sensitivity{SensitivityLow, SensitivityMedium, SensitivityHigh} {
		parsed, err := ParseSensitivity(string(tag))
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}

	parsed, err := ParseSensitivity("")
	require.NoError(t, err)
	assert.Equal(t, SensitivityMedium, parsed, "empty sensitivity defaults to medium")

	_, err = ParseSensitivity("paranoid")
	require.Error(t, err)
	var invalidArg *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &invalidArg)
	assert.Contains(t, err.Error(), "sensitivity")
	assert.True(t, domain.IsRequestError(err))
}

func TestSensitivityThresholds(t *testing.T) {
	assert.InDelta(t, 3.0, SensitivityLow.Threshold(), 1e-9)
	assert.InDelta(t, 2.0, SensitivityMedium.Threshold(), 1e-9)
	assert.InDelta(t, 1.0, SensitivityHigh.Threshold(), 1e-9)
}
