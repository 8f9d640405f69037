// Package reports persists engine outputs so clients can retrieve past
// attribution runs, optimizations, and incrementality analyses without
// recomputing them.
package reports

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Report is one saved engine result. Params echo the request that
// produced it; Payload is the full response, stored as JSON.
type Report struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"params"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary is a listing row without the payload body
type Summary struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"params"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository handles report persistence in reports.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a reports repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "reports").Logger(),
	}
}

// Save persists one result and returns its generated ID. params and
// payload may be any JSON-marshalable values; engine services pass their
// request and response structs directly.
func (r *Repository) Save(kind string, params interface{}, payload interface{}) (string, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report params: %w", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report payload: %w", err)
	}

	id := uuid.New().String()
	_, err = r.db.Exec(`
		INSERT INTO reports (id, kind, params, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, kind, string(paramsJSON), string(payloadJSON), time.Now().UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to save %s report: %w", kind, err)
	}

	r.log.Debug().Str("id", id).Str("kind", kind).Msg("Saved report")
	return id, nil
}

// List returns report summaries, newest first, optionally filtered by kind
func (r *Repository) List(kind string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, kind, params, created_at FROM reports
		ORDER BY created_at DESC, id ASC LIMIT ?`
	args := []interface{}{limit}
	if kind != "" {
		query = `
			SELECT id, kind, params, created_at FROM reports
			WHERE kind = ? ORDER BY created_at DESC, id ASC LIMIT ?`
		args = []interface{}{kind, limit}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		var params string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Kind, &params, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		s.Params = json.RawMessage(params)
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return summaries, nil
}

// Get returns one full report by ID, or nil when it does not exist
func (r *Repository) Get(id string) (*Report, error) {
	var report Report
	var params, payload string
	var createdAt int64
	err := r.db.QueryRow(`
		SELECT id, kind, params, payload, created_at FROM reports WHERE id = ?
	`, id).Scan(&report.ID, &report.Kind, &params, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}

	report.Params = json.RawMessage(params)
	report.Payload = json.RawMessage(payload)
	report.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &report, nil
}

// Delete removes one report. Idempotent: deleting a missing ID is not an
// error, but the boolean reports whether anything was removed.
func (r *Repository) Delete(id string) (bool, error) {
	res, err := r.db.Exec("DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted reports: %w", err)
	}
	return affected > 0, nil
}

// DeleteOlderThan prunes reports created before the cutoff. Used by the
// retention job.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM reports WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune reports: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned reports: %w", err)
	}
	return deleted, nil
}
