package incrementality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridianhq/meridian/internal/domain"
)

// DesignParams configure a holdout test proposal. Zero values take the
// package defaults.
type DesignParams struct {
	Channel                  string  `json:"channel"`
	HoldoutPercent           float64 `json:"holdout_percent,omitempty"`
	MinDetectableLiftPercent float64 `json:"min_detectable_lift_percent,omitempty"`
	Power                    float64 `json:"power,omitempty"`
	Confidence               float64 `json:"confidence,omitempty"`
}

// DesignTest proposes a holdout split and minimum per-group sample size
// for detecting the target lift on a channel, given its recent history.
// The sample-size formula is the standard two-proportion power
// calculation; duration is extrapolated from observed daily click volume.
func DesignTest(params DesignParams, history []domain.DailySpend) (*TestDesign, error) {
	holdout := params.HoldoutPercent
	if holdout == 0 {
		holdout = DefaultHoldoutPercent
	}
	if holdout <= 0 || holdout >= 100 {
		return nil, &domain.InvalidArgumentError{
			Name:   "holdout_percent",
			Reason: fmt.Sprintf("must be in (0, 100), got %.1f", holdout),
		}
	}
	mde := params.MinDetectableLiftPercent
	if mde == 0 {
		mde = DefaultMinDetectableLiftPercent
	}
	if mde <= 0 {
		return nil, &domain.InvalidArgumentError{
			Name:   "min_detectable_lift_percent",
			Reason: fmt.Sprintf("must be positive, got %.1f", mde),
		}
	}
	power := params.Power
	if power == 0 {
		power = DefaultPower
	}
	if power <= 0 || power >= 1 {
		return nil, &domain.InvalidArgumentError{
			Name:   "power",
			Reason: fmt.Sprintf("must be in (0, 1), got %.2f", power),
		}
	}
	confidence := params.Confidence
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, &domain.InvalidArgumentError{
			Name:   "confidence",
			Reason: fmt.Sprintf("must be in (0, 1), got %.2f", confidence),
		}
	}

	var clicks int64
	var conversions float64
	activeDays := make(map[string]bool)
	for _, row := range history {
		clicks += row.Clicks
		conversions += row.Conversions
		if row.Clicks > 0 {
			activeDays[domain.Day(row.Date).Format("2006-01-02")] = true
		}
	}
	if clicks == 0 || conversions == 0 {
		return nil, &domain.InsufficientDataError{
			Channel:  params.Channel,
			What:     "click and conversion history",
			Required: 1,
			Observed: 0,
		}
	}

	p1 := conversions / float64(clicks)
	if p1 >= 1 {
		p1 = 0.99 // degenerate history; keep the variance term sane
	}
	p2 := p1 * (1 + mde/100)
	if p2 >= 1 {
		p2 = 0.999
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	zAlpha := normal.Quantile(1 - (1-confidence)/2)
	zBeta := normal.Quantile(power)

	numerator := math.Pow(zAlpha+zBeta, 2) * (p1*(1-p1) + p2*(1-p2))
	denominator := math.Pow(p2-p1, 2)
	sampleSize := int(math.Ceil(numerator / denominator))

	design := &TestDesign{
		Channel:                  params.Channel,
		HoldoutPercent:           holdout,
		BaselineConversionRate:   p1,
		MinDetectableLiftPercent: mde,
		Power:                    power,
		Confidence:               confidence,
		SampleSizePerGroup:       sampleSize,
	}

	if len(activeDays) > 0 {
		dailyClicks := float64(clicks) / float64(len(activeDays))
		// The holdout group only sees its share of daily volume, and it is
		// the smaller group, so it bounds the duration.
		holdoutDaily := dailyClicks * holdout / 100
		if holdoutDaily > 0 {
			duration := math.Ceil(float64(sampleSize) / holdoutDaily)
			design.EstimatedDurationDays = &duration
		}
	}

	return design, nil
}
