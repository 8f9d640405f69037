package jobs

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/meridianhq/meridian/internal/database"
)

// WALCheckpointJob truncates the write-ahead log of every database so
// WAL files do not grow unbounded between restarts.
type WALCheckpointJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates the WAL checkpoint job
func NewWALCheckpointJob(databases map[string]*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints each database in turn. A failure on one database does
// not skip the others.
func (j *WALCheckpointJob) Run() error {
	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed int
	for _, name := range names {
		if err := j.databases[name].WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("WAL checkpoint failed for %d of %d databases", failed, len(names))
	}

	j.log.Debug().Int("databases", len(names)).Msg("WAL checkpoints completed")
	return nil
}
