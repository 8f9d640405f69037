package anomaly

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository persists scan findings so clients can review recent
// anomalies without re-running the scorer. Stored in reports.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an anomaly repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "anomalies").Logger(),
	}
}

// SaveBatch persists a scan's anomalies in one transaction. Each anomaly
// gets a fresh UUID; re-scanning the same range inserts new rows rather
// than deduplicating, since sensitivity may differ between scans.
func (r *Repository) SaveBatch(anomalies []Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin anomaly batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO anomalies (
			id, channel, metric, date, value, baseline_mean, baseline_stddev,
			z_score, severity, is_concerning, sensitivity, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare anomaly insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, a := range anomalies {
		concerning := 0
		if a.IsConcerning {
			concerning = 1
		}
		_, err := stmt.Exec(
			uuid.New().String(),
			a.Channel,
			string(a.Metric),
			a.Date.Format("2006-01-02"),
			a.Value,
			a.BaselineMean,
			a.BaselineStdDev,
			a.ZScore,
			string(a.Severity),
			concerning,
			string(a.Sensitivity),
			now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert anomaly for %s/%s: %w", a.Channel, a.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit anomaly batch: %w", err)
	}

	r.log.Debug().Int("count", len(anomalies)).Msg("Saved anomaly batch")
	return nil
}

// Recent returns the most recently detected anomalies, newest first
func (r *Repository) Recent(limit int) ([]Anomaly, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, channel, metric, date, value, baseline_mean, baseline_stddev,
		       z_score, severity, is_concerning, sensitivity, detected_at
		FROM anomalies
		ORDER BY detected_at DESC, date DESC, channel ASC, metric ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []Anomaly
	for rows.Next() {
		var a Anomaly
		var date string
		var concerning int
		var detectedAt int64
		if err := rows.Scan(
			&a.ID, &a.Channel, (*string)(&a.Metric), &date, &a.Value,
			&a.BaselineMean, &a.BaselineStdDev, &a.ZScore,
			(*string)(&a.Severity), &concerning, (*string)(&a.Sensitivity), &detectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly row: %w", err)
		}
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse anomaly date %q: %w", date, err)
		}
		a.Date = parsed
		a.IsConcerning = concerning != 0
		a.DetectedAt = time.Unix(detectedAt, 0).UTC()
		anomalies = append(anomalies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomalies: %w", err)
	}

	return anomalies, nil
}

// DeleteOlderThan removes anomalies detected before the cutoff. Used by
// the retention job.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM anomalies WHERE detected_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old anomalies: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted anomalies: %w", err)
	}
	return deleted, nil
}
