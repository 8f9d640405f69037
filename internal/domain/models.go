// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EventType represents the kind of ad interaction a touchpoint records
type EventType string

const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
	EventView       EventType = "view"
)

// ParseEventType normalizes and validates a touchpoint event type
func ParseEventType(s string) (EventType, error) {
	switch EventType(strings.ToLower(strings.TrimSpace(s))) {
	case EventImpression:
		return EventImpression, nil
	case EventClick:
		return EventClick, nil
	case EventView:
		return EventView, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Touchpoint is a single ad exposure or interaction tied to a channel and
// time. Immutable once ingested; produced by upstream ad-platform sync.
type Touchpoint struct {
	Channel    string    `json:"channel"`
	CampaignID string    `json:"campaign_id"`
	Timestamp  time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	Cost       float64   `json:"cost"`
}

// ConversionEvent is a completed purchase. One event per order.
type ConversionEvent struct {
	ConversionID string    `json:"conversion_id"`
	Timestamp    time.Time `json:"timestamp"`
	Revenue      float64   `json:"revenue"`
	OrderID      string    `json:"order_id"`
}

// ConversionPath is the ordered set of touchpoints (oldest first) that
// preceded one conversion within the lookback window. Paths are derived
// views built fresh per request, never persisted.
type ConversionPath struct {
	Conversion  ConversionEvent `json:"conversion"`
	Touchpoints []Touchpoint    `json:"touchpoints"`
}

// IsEmpty reports whether no touchpoints fell inside the lookback window.
// Empty paths feed the unattributed bucket, never a default channel.
func (p ConversionPath) IsEmpty() bool {
	return len(p.Touchpoints) == 0
}

// ChannelSequence returns the path's channels in touch order, e.g.
// "search > social > email". Used for path summaries.
func (p ConversionPath) ChannelSequence() string {
	if p.IsEmpty() {
		return ""
	}
	channels := make([]string, len(p.Touchpoints))
	for i, tp := range p.Touchpoints {
		channels[i] = tp.Channel
	}
	return strings.Join(channels, " > ")
}

// DailySpend is one channel's aggregate performance for one day, as
// reported by the ad platforms. The contribution analyzer, incrementality
// tester, and anomaly scorer all operate on these daily series.
type DailySpend struct {
	Date        time.Time `json:"date"`
	Channel     string    `json:"channel"`
	Spend       float64   `json:"spend"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Conversions float64   `json:"conversions"`
	Revenue     float64   `json:"revenue"`
}

// Snapshot is an immutable, date-bounded slice of the dataset handed to
// engine operations. Engine functions never reach back to storage; they
// compute over the snapshot alone, which keeps them pure and trivially
// parallel.
type Snapshot struct {
	Range       DateRange         `json:"range"`
	Touchpoints []Touchpoint      `json:"touchpoints"`
	Conversions []ConversionEvent `json:"conversions"`
	Spend       []DailySpend      `json:"spend"`
}

// Channels returns the sorted union of channels seen in touchpoints and
// spend rows.
func (s *Snapshot) Channels() []string {
	seen := make(map[string]bool)
	for _, tp := range s.Touchpoints {
		seen[tp.Channel] = true
	}
	for _, row := range s.Spend {
		seen[row.Channel] = true
	}
	channels := make([]string, 0, len(seen))
	for ch := range seen {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// SpendByChannel sums spend per channel across the snapshot range.
func (s *Snapshot) SpendByChannel() map[string]float64 {
	totals := make(map[string]float64)
	for _, row := range s.Spend {
		totals[row.Channel] += row.Spend
	}
	return totals
}

// SpendSeries returns one channel's daily rows sorted by date ascending.
func (s *Snapshot) SpendSeries(channel string) []DailySpend {
	var series []DailySpend
	for _, row := range s.Spend {
		if row.Channel == channel {
			series = append(series, row)
		}
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// TotalRevenue sums conversion revenue across the snapshot.
func (s *Snapshot) TotalRevenue() float64 {
	var total float64
	for _, c := range s.Conversions {
		total += c.Revenue
	}
	return total
}

// DateRange is an inclusive day-granular [From, To] interval. API dates are
// ISO-8601 YYYY-MM-DD; internally both bounds are UTC midnights.
type DateRange struct {
	From time.Time
	To   time.Time
}

const dateLayout = "2006-01-02"

// ParseDateRange parses ISO date strings into a validated range.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(dateLayout, strings.TrimSpace(from))
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid date_from %q: %w", from, err)
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(to))
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid date_to %q: %w", to, err)
	}
	r := DateRange{From: f, To: t}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// NewDateRange builds a range from two timestamps, flooring both to UTC days.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Day(from), To: Day(to)}
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.To.Before(r.From) {
		return fmt.Errorf("date_to %s before date_from %s", r.To.Format(dateLayout), r.From.Format(dateLayout))
	}
	return nil
}

// Days returns the inclusive day count of the range.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Contains reports whether t falls inside the range (To is inclusive
// through end of day).
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.From) && !d.After(r.To)
}

// Overlaps reports whether two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.To.Before(other.From) && !other.To.Before(r.From)
}

// String formats the range for logs and error messages.
func (r DateRange) String() string {
	return r.From.Format(dateLayout) + ".." + r.To.Format(dateLayout)
}

// MarshalJSON emits the API shape {"date_from":"YYYY-MM-DD","date_to":"YYYY-MM-DD"}.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From string `json:"date_from"`
		To   string `json:"date_to"`
	}{
		From: r.From.Format(dateLayout),
		To:   r.To.Format(dateLayout),
	})
}

// UnmarshalJSON accepts the API shape produced by MarshalJSON.
func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw struct {
		From string `json:"date_from"`
		To   string `json:"date_to"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDateRange(raw.From, raw.To)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Day floors a timestamp to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ratio returns num/den, or nil when den is zero. Callers must surface
// "no data" as null rather than 0 or Infinity, so downstream consumers can
// tell missing from zero.
func Ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

// PercentChange returns (current-previous)/previous*100, or nil when the
// previous value is zero.
func PercentChange(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	v := (current - previous) / previous * 100
	return &v
}

// Float returns a pointer to v. Convenience for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
