package attribution

import (
	"sort"
	"time"

	"github.com/meridianhq/meridian/internal/domain"
)

// BuildPaths groups touchpoints into one ordered path per conversion,
// applying the lookback window. Returned paths are sorted by conversion
// timestamp (ties by conversion ID) so downstream aggregation is
// deterministic. Conversions whose window contains no touchpoints come
// back with an empty path; the caller routes those to the unattributed
// bucket.
func BuildPaths(touchpoints []domain.Touchpoint, conversions []domain.ConversionEvent, lookbackDays int) ([]domain.ConversionPath, error) {
	if err := ValidateLookbackDays(lookbackDays); err != nil {
		return nil, err
	}

	// Sort a private copy of the touchpoints once; per-conversion window
	// selection then preserves chronological order for free.
	sorted := make([]domain.Touchpoint, len(touchpoints))
	copy(sorted, touchpoints)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.CampaignID < b.CampaignID
	})

	ordered := make([]domain.ConversionEvent, len(conversions))
	copy(ordered, conversions)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ConversionID < b.ConversionID
	})

	lookback := time.Duration(lookbackDays) * 24 * time.Hour

	paths := make([]domain.ConversionPath, 0, len(ordered))
	for _, conv := range ordered {
		windowStart := conv.Timestamp.Add(-lookback)

		path := domain.ConversionPath{Conversion: conv}
		seen := make(map[touchKey]bool)
		for _, tp := range sorted {
			if tp.Channel == "" {
				continue // unresolvable touchpoint, never force-assign
			}
			if tp.Timestamp.Before(windowStart) || tp.Timestamp.After(conv.Timestamp) {
				continue
			}
			key := touchKey{tp.Channel, tp.CampaignID, tp.Timestamp.UnixNano()}
			if seen[key] {
				continue
			}
			seen[key] = true
			path.Touchpoints = append(path.Touchpoints, tp)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// touchKey identifies a touchpoint for deduplication. Two records with the
// same channel, campaign, and timestamp are one exposure reported twice.
type touchKey struct {
	channel  string
	campaign string
	unixNano int64
}
