package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/reliability"
)

// r2UploadTimeout bounds a single offsite upload run
const r2UploadTimeout = 15 * time.Minute

// BackupJob runs the local backup and, when offsite backup is
// configured, ships an archive and rotates old ones.
type BackupJob struct {
	local         *reliability.BackupService
	offsite       *reliability.R2BackupService // nil when R2 is disabled
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates the backup job. offsite may be nil.
func NewBackupJob(
	local *reliability.BackupService,
	offsite *reliability.R2BackupService,
	retentionDays int,
	log zerolog.Logger,
) *BackupJob {
	return &BackupJob{
		local:         local,
		offsite:       offsite,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run performs the local backup first; offsite upload failures do not
// undo a successful local backup but still fail the job.
func (j *BackupJob) Run() error {
	if err := j.local.Run(); err != nil {
		return fmt.Errorf("local backup failed: %w", err)
	}

	if j.offsite == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r2UploadTimeout)
	defer cancel()

	if err := j.offsite.CreateAndUploadBackup(ctx); err != nil {
		return fmt.Errorf("offsite backup failed: %w", err)
	}

	if err := j.offsite.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Offsite rotation failed")
		// The upload succeeded; rotation can catch up next run.
	}

	return nil
}
