package contribution

import (
	"sort"

	"github.com/meridianhq/meridian/internal/domain"
)

// Curve fits a response curve for one channel from its daily series.
// Anchors are the quartile averages plus a final anchor at the observed
// maximum daily spend, extended at the marginal ROAS. Deterministic and
// closed-form: no iterative fitting.
func (a *Analyzer) Curve(channel string, series []domain.DailySpend) (*ResponseCurve, error) {
	active := activeDays(series)
	if len(active) < MinSpendDays {
		return nil, &domain.InsufficientDataError{
			Channel:  channel,
			What:     "spend days",
			Required: MinSpendDays,
			Observed: len(active),
		}
	}

	quartiles := binQuartiles(active)
	q4 := quartiles[3]

	curve := &ResponseCurve{
		Channel:       channel,
		Days:          len(active),
		MinDailySpend: quartiles[0].MinDailySpend,
		MaxDailySpend: q4.MaxDailySpend,
	}
	if q4.ROAS != nil {
		curve.MarginalROAS = *q4.ROAS
	}
	if q4.ConvsPerDollar != nil {
		curve.MarginalConvRate = *q4.ConvsPerDollar
	}

	for _, q := range quartiles {
		curve.Points = append(curve.Points, CurvePoint{
			DailySpend:       q.AvgDailySpend,
			DailyRevenue:     q.AvgDailyRevenue,
			DailyConversions: q.AvgDailyConvs,
		})
	}
	sort.Slice(curve.Points, func(i, j int) bool {
		return curve.Points[i].DailySpend < curve.Points[j].DailySpend
	})

	// Extend to the observed maximum at the marginal rate so the whole
	// observed domain is covered by interpolation.
	last := curve.Points[len(curve.Points)-1]
	if curve.MaxDailySpend > last.DailySpend {
		extra := curve.MaxDailySpend - last.DailySpend
		curve.Points = append(curve.Points, CurvePoint{
			DailySpend:       curve.MaxDailySpend,
			DailyRevenue:     last.DailyRevenue + extra*curve.MarginalROAS,
			DailyConversions: last.DailyConversions + extra*curve.MarginalConvRate,
		})
	}

	return curve, nil
}

// Curves fits response curves for every channel in the snapshot that has
// enough history. Channels below MinSpendDays are skipped (the optimizer
// cannot reallocate what it cannot model); the skipped list is returned
// so callers can surface them.
func (a *Analyzer) Curves(snap *domain.Snapshot) (map[string]*ResponseCurve, []string, error) {
	curves := make(map[string]*ResponseCurve)
	var skipped []string
	for _, channel := range snap.Channels() {
		curve, err := a.Curve(channel, snap.SpendSeries(channel))
		if err != nil {
			if _, ok := err.(*domain.InsufficientDataError); ok {
				skipped = append(skipped, channel)
				continue
			}
			return nil, nil, err
		}
		curves[channel] = curve
	}
	return curves, skipped, nil
}

// ProjectDailyRevenue projects the channel's expected daily revenue at a
// hypothetical daily spend level.
func (c *ResponseCurve) ProjectDailyRevenue(dailySpend float64) float64 {
	return c.project(dailySpend, func(p CurvePoint) float64 { return p.DailyRevenue }, c.MarginalROAS)
}

// ProjectDailyConversions projects expected daily conversions at a
// hypothetical daily spend level.
func (c *ResponseCurve) ProjectDailyConversions(dailySpend float64) float64 {
	return c.project(dailySpend, func(p CurvePoint) float64 { return p.DailyConversions }, c.MarginalConvRate)
}

// MarginalRevenueAt estimates the return on the next dollar of daily
// spend at the given level, from the curve's local slope.
func (c *ResponseCurve) MarginalRevenueAt(dailySpend float64) float64 {
	const epsilon = 1.0
	return c.ProjectDailyRevenue(dailySpend+epsilon) - c.ProjectDailyRevenue(dailySpend)
}

// MarginalConversionsAt estimates conversions gained from the next dollar
// of daily spend at the given level.
func (c *ResponseCurve) MarginalConversionsAt(dailySpend float64) float64 {
	const epsilon = 1.0
	return c.ProjectDailyConversions(dailySpend+epsilon) - c.ProjectDailyConversions(dailySpend)
}

// project evaluates the piecewise-linear curve at dailySpend. Below the
// first anchor the value scales proportionally with the first anchor's
// rate. Beyond the observed maximum the marginal rate decays linearly to
// zero over one additional observed-maximum of spend, which bounds every
// projection.
func (c *ResponseCurve) project(dailySpend float64, value func(CurvePoint) float64, marginal float64) float64 {
	if dailySpend <= 0 || len(c.Points) == 0 {
		return 0
	}

	first := c.Points[0]
	if dailySpend <= first.DailySpend {
		if first.DailySpend == 0 {
			return 0
		}
		return value(first) * dailySpend / first.DailySpend
	}

	for i := 1; i < len(c.Points); i++ {
		prev, next := c.Points[i-1], c.Points[i]
		if dailySpend <= next.DailySpend {
			span := next.DailySpend - prev.DailySpend
			if span == 0 {
				return value(next)
			}
			fraction := (dailySpend - prev.DailySpend) / span
			return value(prev) + fraction*(value(next)-value(prev))
		}
	}

	// Beyond the observed maximum: marginal rate decays linearly from
	// its Q4 value to zero across one more observed-maximum of spend.
	last := c.Points[len(c.Points)-1]
	base := value(last)
	extra := dailySpend - last.DailySpend
	horizon := last.DailySpend
	if horizon <= 0 {
		return base
	}
	if extra >= horizon {
		// Fully decayed: the area under the declining marginal curve.
		return base + marginal*horizon/2
	}
	return base + marginal*(extra-extra*extra/(2*horizon))
}
