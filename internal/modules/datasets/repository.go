// Package datasets stores the ingested marketing history (touchpoints,
// conversions, daily spend) and serves date-bounded slices of it to the
// engine. The repository is the SQLite-backed domain.DatasetProvider.
package datasets

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/domain"
)

const dateLayout = "2006-01-02"

// Repository handles dataset storage in dataset.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a dataset repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "datasets").Logger(),
	}
}

// endOfDay returns the last instant of the range's To day. Timestamps
// are stored as unix seconds, so ranges are inclusive through 23:59:59.
func endOfDay(t time.Time) time.Time {
	d := domain.Day(t)
	return d.Add(24*time.Hour - time.Second)
}

// GetTouchpoints returns touchpoints in the range, ordered by time
func (r *Repository) GetTouchpoints(dr domain.DateRange) ([]domain.Touchpoint, error) {
	rows, err := r.db.Query(`
		SELECT channel, campaign_id, timestamp, event_type, cost
		FROM touchpoints
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, channel ASC, campaign_id ASC
	`, domain.Day(dr.From).Unix(), endOfDay(dr.To).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query touchpoints: %w", err)
	}
	defer rows.Close()

	var touchpoints []domain.Touchpoint
	for rows.Next() {
		var tp domain.Touchpoint
		var ts int64
		var eventType string
		if err := rows.Scan(&tp.Channel, &tp.CampaignID, &ts, &eventType, &tp.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan touchpoint row: %w", err)
		}
		tp.Timestamp = time.Unix(ts, 0).UTC()
		tp.EventType = domain.EventType(eventType)
		touchpoints = append(touchpoints, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating touchpoints: %w", err)
	}
	return touchpoints, nil
}

// GetConversions returns conversions in the range, ordered by time
func (r *Repository) GetConversions(dr domain.DateRange) ([]domain.ConversionEvent, error) {
	rows, err := r.db.Query(`
		SELECT conversion_id, timestamp, revenue, order_id
		FROM conversions
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, conversion_id ASC
	`, domain.Day(dr.From).Unix(), endOfDay(dr.To).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var conversions []domain.ConversionEvent
	for rows.Next() {
		var c domain.ConversionEvent
		var ts int64
		if err := rows.Scan(&c.ConversionID, &ts, &c.Revenue, &c.OrderID); err != nil {
			return nil, fmt.Errorf("failed to scan conversion row: %w", err)
		}
		c.Timestamp = time.Unix(ts, 0).UTC()
		conversions = append(conversions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}
	return conversions, nil
}

// GetSpend returns daily spend rows in the range, optionally filtered to
// specific channels, ordered by date then channel
func (r *Repository) GetSpend(dr domain.DateRange, channels ...string) ([]domain.DailySpend, error) {
	query := `
		SELECT date, channel, spend, impressions, clicks, conversions, revenue
		FROM daily_spend
		WHERE date >= ? AND date <= ?`
	args := []interface{}{dr.From.Format(dateLayout), dr.To.Format(dateLayout)}

	if len(channels) > 0 {
		placeholders := make([]string, len(channels))
		for i, ch := range channels {
			placeholders[i] = "?"
			args = append(args, ch)
		}
		query += fmt.Sprintf(" AND channel IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY date ASC, channel ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily spend: %w", err)
	}
	defer rows.Close()

	var spend []domain.DailySpend
	for rows.Next() {
		var s domain.DailySpend
		var date string
		if err := rows.Scan(&date, &s.Channel, &s.Spend, &s.Impressions, &s.Clicks, &s.Conversions, &s.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan spend row: %w", err)
		}
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse spend date %q: %w", date, err)
		}
		s.Date = parsed
		spend = append(spend, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily spend: %w", err)
	}
	return spend, nil
}

// UpsertTouchpoints inserts touchpoints idempotently on their natural key
// (channel, campaign, timestamp, event type). Returns rows written.
func (r *Repository) UpsertTouchpoints(touchpoints []domain.Touchpoint) (int, error) {
	if len(touchpoints) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin touchpoint upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO touchpoints (channel, campaign_id, timestamp, event_type, cost)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(channel, campaign_id, timestamp, event_type) DO UPDATE SET
			cost = excluded.cost
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare touchpoint upsert: %w", err)
	}
	defer stmt.Close()

	for _, tp := range touchpoints {
		if _, err := stmt.Exec(tp.Channel, tp.CampaignID, tp.Timestamp.UTC().Unix(), string(tp.EventType), tp.Cost); err != nil {
			return 0, fmt.Errorf("failed to upsert touchpoint %s@%s: %w", tp.Channel, tp.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit touchpoint upsert: %w", err)
	}
	return len(touchpoints), nil
}

// UpsertConversions inserts conversions idempotently on conversion_id
func (r *Repository) UpsertConversions(conversions []domain.ConversionEvent) (int, error) {
	if len(conversions) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin conversion upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO conversions (conversion_id, timestamp, revenue, order_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversion_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			revenue = excluded.revenue,
			order_id = excluded.order_id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare conversion upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range conversions {
		if _, err := stmt.Exec(c.ConversionID, c.Timestamp.UTC().Unix(), c.Revenue, c.OrderID); err != nil {
			return 0, fmt.Errorf("failed to upsert conversion %s: %w", c.ConversionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit conversion upsert: %w", err)
	}
	return len(conversions), nil
}

// UpsertDailySpend inserts daily spend rows idempotently on (date, channel)
func (r *Repository) UpsertDailySpend(spend []domain.DailySpend) (int, error) {
	if len(spend) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin spend upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_spend (date, channel, spend, impressions, clicks, conversions, revenue)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, channel) DO UPDATE SET
			spend = excluded.spend,
			impressions = excluded.impressions,
			clicks = excluded.clicks,
			conversions = excluded.conversions,
			revenue = excluded.revenue
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare spend upsert: %w", err)
	}
	defer stmt.Close()

	for _, s := range spend {
		if _, err := stmt.Exec(s.Date.Format(dateLayout), s.Channel, s.Spend, s.Impressions, s.Clicks, s.Conversions, s.Revenue); err != nil {
			return 0, fmt.Errorf("failed to upsert spend %s/%s: %w", s.Date.Format(dateLayout), s.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit spend upsert: %w", err)
	}
	return len(spend), nil
}

// Channels returns the sorted union of channels across touchpoints and
// daily spend
func (r *Repository) Channels() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT channel FROM touchpoints
		UNION
		SELECT channel FROM daily_spend
		ORDER BY channel ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channels: %w", err)
	}
	return channels, nil
}

// DatasetSummary describes what has been ingested
type DatasetSummary struct {
	Touchpoints   int64   `json:"touchpoints"`
	Conversions   int64   `json:"conversions"`
	SpendRows     int64   `json:"spend_rows"`
	Channels      int64   `json:"channels"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalSpend    float64 `json:"total_spend"`
	FirstSpendDay *string `json:"first_spend_day"` // nil when no spend ingested
	LastSpendDay  *string `json:"last_spend_day"`
}

// Summary reports row counts and date coverage across the dataset
func (r *Repository) Summary() (*DatasetSummary, error) {
	summary := &DatasetSummary{}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM touchpoints").Scan(&summary.Touchpoints); err != nil {
		return nil, fmt.Errorf("failed to count touchpoints: %w", err)
	}
	if err := r.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(revenue), 0) FROM conversions").
		Scan(&summary.Conversions, &summary.TotalRevenue); err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	if err := r.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(spend), 0) FROM daily_spend").
		Scan(&summary.SpendRows, &summary.TotalSpend); err != nil {
		return nil, fmt.Errorf("failed to count spend rows: %w", err)
	}

	channels, err := r.Channels()
	if err != nil {
		return nil, err
	}
	summary.Channels = int64(len(channels))

	var first, last sql.NullString
	if err := r.db.QueryRow("SELECT MIN(date), MAX(date) FROM daily_spend").Scan(&first, &last); err != nil {
		return nil, fmt.Errorf("failed to query spend coverage: %w", err)
	}
	if first.Valid {
		summary.FirstSpendDay = &first.String
	}
	if last.Valid {
		summary.LastSpendDay = &last.String
	}

	return summary, nil
}

// DeleteOlderThan removes dataset rows older than the cutoff day. Used by
// the retention job; returns total rows removed.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var total int64

	res, err := r.db.Exec("DELETE FROM touchpoints WHERE timestamp < ?", domain.Day(cutoff).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune touchpoints: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = r.db.Exec("DELETE FROM conversions WHERE timestamp < ?", domain.Day(cutoff).Unix())
	if err != nil {
		return total, fmt.Errorf("failed to prune conversions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = r.db.Exec("DELETE FROM daily_spend WHERE date < ?", cutoff.Format(dateLayout))
	if err != nil {
		return total, fmt.Errorf("failed to prune daily spend: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	r.log.Info().Int64("rows", total).Str("cutoff", cutoff.Format(dateLayout)).Msg("Dataset retention cleanup completed")
	return total, nil
}
