package incrementality

import (
	"sort"

	"github.com/meridianhq/meridian/internal/domain"
)

// EstimateBaseline approximates how many of a channel's conversions over
// the range would have happened without its spend, using days the channel
// was inactive as a stand-in control. Inactive days are not randomized, so
// the estimate is always labeled low confidence.
func EstimateBaseline(channel string, r domain.DateRange, snap *domain.Snapshot) (*BaselineEstimate, error) {
	channelByDay := make(map[string]domain.DailySpend)
	totalConvByDay := make(map[string]float64)
	for _, row := range snap.Spend {
		day := domain.Day(row.Date).Format("2006-01-02")
		if row.Channel == channel {
			channelByDay[day] = row
		}
		totalConvByDay[day] += row.Conversions
	}
	if len(totalConvByDay) == 0 {
		return nil, &domain.EmptyRangeError{Range: r, What: "spend"}
	}

	days := make([]string, 0, len(totalConvByDay))
	for day := range totalConvByDay {
		days = append(days, day)
	}
	sort.Strings(days)

	estimate := &BaselineEstimate{
		Channel:         channel,
		Range:           r,
		ConfidenceLevel: ConfidenceLow,
		Note:            "baseline inferred from days without channel spend; not a randomized control",
	}

	// Active days observe total conversions across all channels; the
	// difference against the inactive-day rate is what the channel added.
	var inactiveConversions float64
	for _, day := range days {
		row, active := channelByDay[day]
		if active && row.Spend > 0 {
			estimate.ActiveDays++
			estimate.ObservedConversions += totalConvByDay[day]
		} else {
			estimate.InactiveDays++
			inactiveConversions += totalConvByDay[day]
		}
	}

	if estimate.InactiveDays == 0 {
		return nil, &domain.InsufficientDataError{
			Channel:  channel,
			What:     "inactive baseline days",
			Required: 1,
			Observed: 0,
		}
	}

	estimate.BaselineDailyRate = inactiveConversions / float64(estimate.InactiveDays)
	estimate.EstimatedBaselineConversions = estimate.BaselineDailyRate * float64(estimate.ActiveDays)
	estimate.EstimatedIncremental = estimate.ObservedConversions - estimate.EstimatedBaselineConversions
	if estimate.EstimatedBaselineConversions > 0 {
		lift := estimate.EstimatedIncremental / estimate.EstimatedBaselineConversions * 100
		estimate.EstimatedLiftPercent = &lift
	}

	return estimate, nil
}
