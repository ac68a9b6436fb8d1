package scheduler

import (
	"context"
	"time"

	"github.com/aristath/folio/internal/reliability"
	"github.com/rs/zerolog"
)

// backupTimeout bounds one scheduled backup including the upload.
const backupTimeout = 30 * time.Minute

// BackupCreator creates a backup archive.
type BackupCreator interface {
	Create(ctx context.Context) (*reliability.BackupInfo, error)
}

// BackupJob creates a backup archive and uploads it when remote storage is configured
type BackupJob struct {
	backups BackupCreator
	log     zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backups BackupCreator, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	info, err := j.backups.Create(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("archive", info.Filename).
		Bool("uploaded", info.Uploaded).
		Msg("Backup job finished")
	return nil
}
