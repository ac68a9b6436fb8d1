package scheduler

import (
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// SnapshotRecorder records the daily value of every active portfolio.
type SnapshotRecorder interface {
	RecordAll() (*snapshots.RecordResult, error)
}

// SnapshotJob records daily portfolio snapshots
type SnapshotJob struct {
	recorder SnapshotRecorder
	log      zerolog.Logger
}

// NewSnapshotJob creates a new SnapshotJob
func NewSnapshotJob(recorder SnapshotRecorder, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		recorder: recorder,
		log:      log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "snapshot"
}

// Run executes the snapshot job
func (j *SnapshotJob) Run() error {
	result, err := j.recorder.RecordAll()
	if err != nil {
		return err
	}

	j.log.Info().
		Str("date", result.Date).
		Int("portfolios", result.Portfolios).
		Float64("total_value", result.TotalValue).
		Msg("Snapshots recorded")

	return nil
}
