package scheduler

import (
	"context"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size (in frames) above which a checkpoint that could
// not complete is logged as a warning.
const walWarnFrames = 1000

// CachePurger removes expired cache entries.
type CachePurger interface {
	DeleteExpired() (int64, error)
}

// ActivityPruner removes activity entries older than a cutoff.
type ActivityPruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// MaintenanceJob checkpoints WAL files and purges stale rows
type MaintenanceJob struct {
	databases         []*database.DB
	cache             CachePurger
	activity          ActivityPruner
	activityRetention time.Duration
	log               zerolog.Logger
	now               func() time.Time
}

// NewMaintenanceJob creates a new MaintenanceJob.
// Activity pruning is disabled when activity is nil or activityRetention is not positive.
func NewMaintenanceJob(
	databases []*database.DB,
	cache CachePurger,
	activity ActivityPruner,
	activityRetention time.Duration,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		databases:         databases,
		cache:             cache,
		activity:          activity,
		activityRetention: activityRetention,
		log:               log.With().Str("job", "maintenance").Logger(),
		now:               time.Now,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job. Checkpoint failures are logged and do not fail the run.
func (j *MaintenanceJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		res, err := db.Checkpoint(ctx)
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			continue
		}
		if res.Busy && res.WALFrames > walWarnFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", res.WALFrames).
				Int("checkpointed", res.Checkpointed).
				Msg("WAL checkpoint blocked, file is large")
		}
		checked++
	}

	var purged int64
	if j.cache != nil {
		n, err := j.cache.DeleteExpired()
		if err != nil {
			return err
		}
		purged = n
	}

	var pruned int64
	if j.activity != nil && j.activityRetention > 0 {
		n, err := j.activity.DeleteOlderThan(j.now().Add(-j.activityRetention))
		if err != nil {
			return err
		}
		pruned = n
	}

	j.log.Info().
		Int("checkpointed", checked).
		Int64("cache_purged", purged).
		Int64("activity_pruned", pruned).
		Dur("duration", time.Since(start)).
		Msg("Maintenance completed")

	return nil
}
