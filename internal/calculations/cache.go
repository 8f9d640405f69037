// Package calculations caches expensive engine computations (fitted
// response curves, quartile statistics) in cache.db. Entries are
// content-addressed: the storage key is a SHA-256 over the logical key,
// so identical inputs always hit the same row. The cache is purely an
// optimization; determinism guarantees a hit is bit-identical to
// recomputation.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/meridianhq/meridian/internal/modules/contribution"
)

// DefaultTTL is how long cached calculations stay valid. New dataset
// imports do not invalidate entries early; a day-old curve set over a
// fixed historical range is still correct.
const DefaultTTL = 24 * time.Hour

// Cache stores msgpack-encoded calculation results with a TTL
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewCache creates a calculation cache. ttl <= 0 uses DefaultTTL.
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "calculation_cache").Logger(),
	}
}

// hashKey derives the content address for a logical key
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// getBlob returns the stored payload for a key, or nil on miss/expiry
func (c *Cache) getBlob(key string) []byte {
	var payload []byte
	var expiresAt int64
	err := c.db.QueryRow(
		"SELECT payload, expires_at FROM calculations WHERE key = ?",
		hashKey(key),
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("Cache read failed")
		return nil
	}
	if time.Now().UTC().Unix() >= expiresAt {
		return nil
	}
	return payload
}

// putBlob stores a payload under a key, replacing any previous entry
func (c *Cache) putBlob(key, kind string, payload []byte) error {
	now := time.Now().UTC()
	_, err := c.db.Exec(`
		INSERT INTO calculations (key, kind, payload, computed_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			computed_at = excluded.computed_at,
			expires_at = excluded.expires_at
	`, hashKey(key), kind, payload, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// GetCurves returns a cached curve set, if present and unexpired.
// Implements the contribution service's curve cache.
func (c *Cache) GetCurves(key string) (map[string]*contribution.ResponseCurve, bool) {
	payload := c.getBlob(key)
	if payload == nil {
		return nil, false
	}

	var curves map[string]*contribution.ResponseCurve
	if err := msgpack.Unmarshal(payload, &curves); err != nil {
		c.log.Warn().Err(err).Msg("Failed to decode cached curves; treating as miss")
		return nil, false
	}
	return curves, true
}

// PutCurves caches a fitted curve set
func (c *Cache) PutCurves(key string, curves map[string]*contribution.ResponseCurve) error {
	payload, err := msgpack.Marshal(curves)
	if err != nil {
		return fmt.Errorf("failed to encode curves for cache: %w", err)
	}
	return c.putBlob(key, "curves", payload)
}

// PruneExpired deletes expired entries; returns rows removed. The cache
// profile's auto_vacuum reclaims the space.
func (c *Cache) PruneExpired() (int64, error) {
	res, err := c.db.Exec("DELETE FROM calculations WHERE expires_at <= ?", time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned cache entries: %w", err)
	}
	return deleted, nil
}
