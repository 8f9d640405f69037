package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/meridianhq/meridian/internal/domain"
)

// MustDate parses a YYYY-MM-DD date string, failing the test on bad input.
func MustDate(t *testing.T, s string) time.Time {
	t.Helper()

	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("Failed to parse date %q: %v", s, err)
	}
	return parsed
}

// MustRange builds a validated date range from two YYYY-MM-DD strings.
func MustRange(t *testing.T, from, to string) domain.DateRange {
	t.Helper()

	r, err := domain.ParseDateRange(from, to)
	if err != nil {
		t.Fatalf("Failed to parse date range %s..%s: %v", from, to, err)
	}
	return r
}

// Touchpoint builds a click touchpoint for a channel at the given time.
func Touchpoint(channel string, ts time.Time) domain.Touchpoint {
	return domain.Touchpoint{
		Channel:    channel,
		CampaignID: channel + "-campaign",
		Timestamp:  ts,
		EventType:  domain.EventClick,
		Cost:       0.5,
	}
}

// Conversion builds a conversion event with a deterministic ID derived from n.
func Conversion(n int, ts time.Time, revenue float64) domain.ConversionEvent {
	return domain.ConversionEvent{
		ConversionID: fmt.Sprintf("conv-%03d", n),
		Timestamp:    ts,
		Revenue:      revenue,
		OrderID:      fmt.Sprintf("order-%03d", n),
	}
}

// Path builds the touchpoints for one conversion: one touch per channel in
// order, spaced an hour apart, ending an hour before the conversion time.
func Path(conversionTime time.Time, channels ...string) []domain.Touchpoint {
	touchpoints := make([]domain.Touchpoint, len(channels))
	for i, channel := range channels {
		offset := time.Duration(len(channels)-i) * time.Hour
		touchpoints[i] = Touchpoint(channel, conversionTime.Add(-offset))
	}
	return touchpoints
}

// SpendSeries builds one channel's daily spend rows starting at start, with
// constant spend and revenue per day.
func SpendSeries(channel string, start time.Time, days int, spend, revenue float64) []domain.DailySpend {
	series := make([]domain.DailySpend, days)
	for i := 0; i < days; i++ {
		series[i] = domain.DailySpend{
			Date:        domain.Day(start).AddDate(0, 0, i),
			Channel:     channel,
			Spend:       spend,
			Impressions: int64(spend * 100),
			Clicks:      int64(spend * 5),
			Conversions: revenue / 50,
			Revenue:     revenue,
		}
	}
	return series
}
