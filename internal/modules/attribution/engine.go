package attribution

import (
	"sort"

	"github.com/meridianhq/meridian/internal/domain"
)

// Engine computes attribution reports over immutable snapshots. It holds
// no state; every method is a pure function of its arguments, safe for
// parallel invocation.
type Engine struct{}

// NewEngine creates an attribution engine
func NewEngine() *Engine {
	return &Engine{}
}

// Attribute assigns credit for every conversion in the snapshot across
// the touchpoints that preceded it, then aggregates to channel level and
// joins each channel's spend from the same range.
func (e *Engine) Attribute(snap *domain.Snapshot, model Model, lookbackDays int, halfLifeDays float64) (*Report, error) {
	if _, err := ParseModel(string(model)); err != nil {
		return nil, err
	}
	if len(snap.Conversions) == 0 {
		return nil, &domain.EmptyRangeError{Range: snap.Range, What: "conversions"}
	}

	paths, err := BuildPaths(snap.Touchpoints, snap.Conversions, lookbackDays)
	if err != nil {
		return nil, err
	}

	type channelTotals struct {
		revenue     float64
		conversions float64
	}
	totals := make(map[string]*channelTotals)
	pathAgg := make(map[string]*PathSummary)

	report := &Report{
		Range:            snap.Range,
		Model:            model,
		LookbackDays:     lookbackDays,
		TotalConversions: len(snap.Conversions),
	}
	if model == ModelTimeDecay {
		if halfLifeDays <= 0 {
			halfLifeDays = DefaultHalfLifeDays
		}
		report.HalfLifeDays = halfLifeDays
	}

	var touchSum int
	var nonEmpty int
	for _, path := range paths {
		if path.IsEmpty() {
			report.Unattributed.Conversions++
			report.Unattributed.Revenue += path.Conversion.Revenue
			continue
		}
		nonEmpty++
		touchSum += len(path.Touchpoints)

		weights, err := Weights(path, model, halfLifeDays)
		if err != nil {
			return nil, err
		}
		for i, tp := range path.Touchpoints {
			ct, ok := totals[tp.Channel]
			if !ok {
				ct = &channelTotals{}
				totals[tp.Channel] = ct
			}
			ct.revenue += path.Conversion.Revenue * weights[i]
			ct.conversions += weights[i]
		}

		seq := path.ChannelSequence()
		summary, ok := pathAgg[seq]
		if !ok {
			summary = &PathSummary{Sequence: seq, Touches: len(path.Touchpoints)}
			pathAgg[seq] = summary
		}
		summary.Conversions++
		summary.Revenue += path.Conversion.Revenue
	}

	if nonEmpty > 0 {
		report.AveragePathLength = float64(touchSum) / float64(nonEmpty)
	}

	spendByChannel := snap.SpendByChannel()

	var attributedRevenue float64
	for _, ct := range totals {
		attributedRevenue += ct.revenue
	}
	report.AttributedRevenue = attributedRevenue

	// Channels are keyed deterministically: sorted names, then results
	// ordered by attributed revenue descending (ties by name).
	channels := make([]string, 0, len(totals))
	for ch := range totals {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		ct := totals[ch]
		spend := spendByChannel[ch]
		report.TotalSpend += spend

		result := ChannelResult{
			Channel:               ch,
			AttributedRevenue:     ct.revenue,
			AttributedConversions: ct.conversions,
			Spend:                 spend,
			ROAS:                  domain.Ratio(ct.revenue, spend),
			CPA:                   domain.Ratio(spend, ct.conversions),
		}
		if attributedRevenue > 0 {
			result.RevenueShare = ct.revenue / attributedRevenue
		}
		report.Channels = append(report.Channels, result)
	}
	sort.SliceStable(report.Channels, func(i, j int) bool {
		a, b := report.Channels[i], report.Channels[j]
		if a.AttributedRevenue != b.AttributedRevenue {
			return a.AttributedRevenue > b.AttributedRevenue
		}
		return a.Channel < b.Channel
	})

	report.TopPaths = topPaths(pathAgg, 10)

	return report, nil
}

// Compare runs several models over the same snapshot and reports how much
// each channel's revenue share moves between them.
func (e *Engine) Compare(snap *domain.Snapshot, models []Model, lookbackDays int, halfLifeDays float64) (*ModelComparison, error) {
	if len(models) == 0 {
		models = AllModels()
	}

	comparison := &ModelComparison{
		Range:        snap.Range,
		Models:       models,
		LookbackDays: lookbackDays,
	}

	shares := make(map[string]map[string]float64) // channel -> model -> share
	for _, model := range models {
		report, err := e.Attribute(snap, model, lookbackDays, halfLifeDays)
		if err != nil {
			return nil, err
		}
		for _, ch := range report.Channels {
			byModel, ok := shares[ch.Channel]
			if !ok {
				byModel = make(map[string]float64)
				shares[ch.Channel] = byModel
			}
			byModel[string(report.Model)] = ch.RevenueShare
		}
	}

	channels := make([]string, 0, len(shares))
	for ch := range shares {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		byModel := shares[ch]
		// A channel absent under some model has zero share there; fill
		// explicitly so divergence reflects the true spread.
		for _, model := range models {
			if _, ok := byModel[string(model)]; !ok {
				byModel[string(model)] = 0
			}
		}
		low, high := byModel[string(models[0])], byModel[string(models[0])]
		for _, share := range byModel {
			if share < low {
				low = share
			}
			if share > high {
				high = share
			}
		}
		divergence := high - low
		comparison.Channels = append(comparison.Channels, ChannelComparison{
			Channel:             ch,
			RevenueShareByModel: byModel,
			MaxDivergence:       divergence,
		})
		if divergence > comparison.MaxDivergence {
			comparison.MaxDivergence = divergence
		}
	}

	return comparison, nil
}

// topPaths returns the n most frequent channel sequences, ties broken by
// revenue descending then sequence name.
func topPaths(agg map[string]*PathSummary, n int) []PathSummary {
	summaries := make([]PathSummary, 0, len(agg))
	for _, s := range agg {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Conversions != b.Conversions {
			return a.Conversions > b.Conversions
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Sequence < b.Sequence
	})
	if len(summaries) > n {
		summaries = summaries[:n]
	}
	return summaries
}
