package di

import (
	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/config"
	"github.com/meridianhq/meridian/internal/scheduler"
	"github.com/meridianhq/meridian/internal/scheduler/jobs"
)

// JobInstances holds the background jobs for scheduling and manual
// triggering.
type JobInstances struct {
	AnomalyScan   scheduler.Job
	Retention     scheduler.Job
	WALCheckpoint scheduler.Job
	Backup        scheduler.Job
}

// RegisterJobs builds the job instances from container services
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{
		AnomalyScan: jobs.NewAnomalyScanJob(
			container.AnomalyService,
			container.SettingsService,
			log,
		),
		Retention: jobs.NewRetentionJob(
			container.DatasetRepo,
			container.ReportsRepo,
			container.AnomalyRepo,
			container.Cache,
			container.SettingsService,
			log,
		),
		WALCheckpoint: jobs.NewWALCheckpointJob(container.Databases(), log),
		Backup: jobs.NewBackupJob(
			container.BackupService,
			container.R2BackupService,
			cfg.BackupKeepDays,
			log,
		),
	}

	log.Info().Msg("Jobs registered")
	return instances, nil
}

// ScheduleJobs registers every job with its configured cron spec
func ScheduleJobs(sched *scheduler.Scheduler, instances *JobInstances, cfg *config.Config) error {
	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.AnomalyScanSpec, instances.AnomalyScan},
		{cfg.RetentionSpec, instances.Retention},
		{cfg.WALCheckpointSpec, instances.WALCheckpoint},
		{cfg.BackupSpec, instances.Backup},
	}

	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return err
		}
	}
	return nil
}
