package contribution

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
	"github.com/meridianhq/meridian/pkg/formulas"
)

// Analyzer bins channel spend history into quartiles and derives
// diminishing-returns statistics. Stateless apart from its configured
// rating thresholds; all methods are pure functions of their inputs.
type Analyzer struct {
	thresholds RatingThresholds
	log        zerolog.Logger
}

// NewAnalyzer creates an analyzer with the given rating thresholds
func NewAnalyzer(thresholds RatingThresholds, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		thresholds: thresholds,
		log:        log.With().Str("component", "contribution_analyzer").Logger(),
	}
}

// Analyze computes a contribution for every channel in the snapshot.
// Channels with too little history come back with RatingUnknown instead
// of being dropped, so callers always see the complete channel list.
func (a *Analyzer) Analyze(snap *domain.Snapshot) (*AnalysisResponse, error) {
	channels := snap.Channels()
	if len(channels) == 0 {
		return nil, &domain.EmptyRangeError{Range: snap.Range, What: "spend"}
	}

	response := &AnalysisResponse{Range: snap.Range}
	for _, channel := range channels {
		contribution, err := a.AnalyzeChannel(channel, snap.SpendSeries(channel))
		if err != nil {
			if _, ok := err.(*domain.InsufficientDataError); ok {
				response.Channels = append(response.Channels, unknownContribution(channel, snap.SpendSeries(channel)))
				continue
			}
			return nil, err
		}
		response.Channels = append(response.Channels, *contribution)
	}
	return response, nil
}

// AnalyzeChannel computes one channel's contribution from its daily
// series. Fails with InsufficientDataError below MinSpendDays of history.
func (a *Analyzer) AnalyzeChannel(channel string, series []domain.DailySpend) (*Contribution, error) {
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

	c := &Contribution{
		Channel:   channel,
		Days:      len(active),
		Quartiles: quartiles,
	}
	for _, day := range active {
		c.TotalSpend += day.Spend
		c.TotalRevenue += day.Revenue
	}
	c.ROAS = domain.Ratio(c.TotalRevenue, c.TotalSpend)

	q1, q4 := quartiles[0], quartiles[3]

	// Marginal ROAS: the highest-spend quartile's realized return serves
	// as the proxy for the next dollar's return.
	c.MarginalROAS = q4.ROAS

	if q1.ROAS != nil && *q1.ROAS > 0 && q4.ROAS != nil {
		drop := (*q1.ROAS - *q4.ROAS) / *q1.ROAS * 100
		c.EfficiencyDropPercent = &drop
		c.ShowsDiminishingReturns = drop > DiminishingReturnsThresholdPercent
	}

	c.SaturationLevel = saturation(active)

	if best := bestQuartile(quartiles); best != nil {
		c.OptimalDailySpendRange = &SpendRange{Low: best.MinDailySpend, High: best.MaxDailySpend}
	}

	if c.ROAS != nil {
		c.EfficiencyRating = a.thresholds.Rate(*c.ROAS)
	} else {
		c.EfficiencyRating = RatingUnknown
	}

	return c, nil
}

// unknownContribution reports a channel that cannot be rated yet. Totals
// are still populated so the channel is visible in summaries.
func unknownContribution(channel string, series []domain.DailySpend) Contribution {
	c := Contribution{
		Channel:          channel,
		Days:             len(activeDays(series)),
		EfficiencyRating: RatingUnknown,
	}
	for _, day := range series {
		c.TotalSpend += day.Spend
		c.TotalRevenue += day.Revenue
	}
	c.ROAS = domain.Ratio(c.TotalRevenue, c.TotalSpend)
	return c
}

// activeDays filters a series to days with nonzero spend, which are the
// only days that inform the spend-response relationship.
func activeDays(series []domain.DailySpend) []domain.DailySpend {
	var active []domain.DailySpend
	for _, day := range series {
		if day.Spend > 0 {
			active = append(active, day)
		}
	}
	return active
}

// binQuartiles splits active days into four bins by ascending spend.
// Requires len(days) >= MinSpendDays. Bin boundaries use integer division
// so the split is deterministic for any length.
func binQuartiles(days []domain.DailySpend) []Quartile {
	sorted := make([]domain.DailySpend, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Spend != sorted[j].Spend {
			return sorted[i].Spend < sorted[j].Spend
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	n := len(sorted)
	labels := []string{"Q1", "Q2", "Q3", "Q4"}
	quartiles := make([]Quartile, 0, 4)
	for i := 0; i < 4; i++ {
		start, end := i*n/4, (i+1)*n/4
		bin := sorted[start:end]

		q := Quartile{
			Label:         labels[i],
			Days:          len(bin),
			MinDailySpend: bin[0].Spend,
			MaxDailySpend: bin[len(bin)-1].Spend,
		}
		for _, day := range bin {
			q.TotalSpend += day.Spend
			q.TotalRevenue += day.Revenue
			q.TotalConversions += day.Conversions
		}
		count := float64(len(bin))
		q.AvgDailySpend = q.TotalSpend / count
		q.AvgDailyRevenue = q.TotalRevenue / count
		q.AvgDailyConvs = q.TotalConversions / count
		q.ROAS = domain.Ratio(q.TotalRevenue, q.TotalSpend)
		q.ConvsPerDollar = domain.Ratio(q.TotalConversions, q.TotalSpend)

		quartiles = append(quartiles, q)
	}
	return quartiles
}

// saturation places the channel's current daily spend inside its observed
// spend range: 0 at the historical minimum, 1 at or above the maximum.
// Monotonically non-decreasing in spend by construction. "Current" spend
// is a trailing average so a single quiet day does not mask saturation.
func saturation(active []domain.DailySpend) float64 {
	minSpend, maxSpend := active[0].Spend, active[0].Spend
	values := make([]float64, len(active))
	for i, day := range active {
		values[i] = day.Spend
		if day.Spend < minSpend {
			minSpend = day.Spend
		}
		if day.Spend > maxSpend {
			maxSpend = day.Spend
		}
	}

	current := mean(values)
	if trailing := formulas.LatestSMA(values, trendWindowDays); trailing != nil {
		current = *trailing
	}

	if maxSpend <= minSpend {
		return 1.0 // flat history: already at its observed ceiling
	}
	level := (current - minSpend) / (maxSpend - minSpend)
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// bestQuartile returns the quartile with the highest ROAS, or nil when no
// quartile has a computable ROAS. Ties favor the lower-spend bin.
func bestQuartile(quartiles []Quartile) *Quartile {
	var best *Quartile
	for i := range quartiles {
		q := &quartiles[i]
		if q.ROAS == nil {
			continue
		}
		if best == nil || *q.ROAS > *best.ROAS {
			best = q
		}
	}
	return best
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
