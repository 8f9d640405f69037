// Package reliability provides database backups (local and offsite) and
// integrity maintenance for the engine's SQLite databases.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/database"
	"github.com/meridianhq/meridian/internal/events"
)

// BackupService manages local database backups under a dated directory
// per run, using SQLite's VACUUM INTO for atomic snapshots.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	keepDays  int
	bus       *events.Bus
	log       zerolog.Logger
}

// NewBackupService creates a local backup service. keepDays bounds how
// long dated backup directories are retained; bus may be nil.
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	keepDays int,
	bus *events.Bus,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		keepDays:  keepDays,
		bus:       bus,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the managed database names, sorted. includeCache
// controls whether the rebuildable cache database is listed.
func (s *BackupService) DatabaseNames(includeCache bool) []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		if !includeCache && name == "cache" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run performs a full local backup into a dated directory, verifies each
// snapshot, and rotates directories older than the retention horizon.
func (s *BackupService) Run() error {
	s.log.Info().Msg("Starting local backup")
	startTime := time.Now()

	date := time.Now().UTC().Format("2006-01-02")
	targetDir := filepath.Join(s.backupDir, date)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	var totalBytes int64
	backed := 0
	for _, name := range s.DatabaseNames(false) {
		backupPath := filepath.Join(targetDir, name+".db")

		if err := s.BackupDatabase(name, backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Failed to backup database")
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Backup verification failed")
			os.Remove(backupPath)
			continue
		}

		if info, err := os.Stat(backupPath); err == nil {
			totalBytes += info.Size()
		}
		backed++
	}

	if backed == 0 {
		return fmt.Errorf("all database backups failed")
	}

	if err := s.rotate(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate old backups")
		// The backup itself succeeded.
	}

	if s.bus != nil {
		s.bus.Publish(&events.BackupCompletedData{
			Destination: "local",
			SizeBytes:   totalBytes,
			Databases:   backed,
		})
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", targetDir).
		Int("databases", backed).
		Msg("Local backup completed")

	return nil
}

// BackupDatabase snapshots a single database with VACUUM INTO. The copy
// is fresh, compacted, and carries no WAL sidecar files.
func (s *BackupService) BackupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	// VACUUM INTO refuses to overwrite an existing file.
	if _, err := os.Stat(backupPath); err == nil {
		if err := os.Remove(backupPath); err != nil {
			return fmt.Errorf("failed to remove stale backup: %w", err)
		}
	}

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	return nil
}

// verifyBackup opens the snapshot and runs a full integrity check
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// rotate deletes dated backup directories older than keepDays
func (s *BackupService) rotate() error {
	if s.keepDays <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.keepDays).Format("2006-01-02")

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Directory names are YYYY-MM-DD; lexical order is date order.
		if _, err := time.Parse("2006-01-02", entry.Name()); err != nil {
			continue
		}
		if entry.Name() >= cutoff {
			continue
		}

		path := filepath.Join(s.backupDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Str("path", path).Err(err).Msg("Failed to remove old backup")
			continue
		}
		s.log.Info().Str("path", path).Msg("Removed old backup")
	}

	return nil
}
