package di

import (
	"fmt"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers all jobs.
// The backup job is always registered for manual runs; it is scheduled only
// when a backup schedule is configured.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.SnapshotService == nil {
		return nil, fmt.Errorf("services must be initialized first")
	}

	sched := scheduler.New(log)
	maintenance := scheduler.NewMaintenanceJob(
		container.Databases(),
		container.CacheRepo,
		container.ActivityRepo,
		cfg.ActivityRetention,
		log,
	)
	instances := &JobInstances{
		Snapshot:    scheduler.NewSnapshotJob(container.SnapshotService, log),
		Backup:      scheduler.NewBackupJob(container.BackupService, log),
		Maintenance: maintenance,
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.SnapshotSchedule, instances.Snapshot},
		{cfg.Backup.Schedule, instances.Backup},
		{cfg.MaintenanceSchedule, instances.Maintenance},
	}
	for _, reg := range registrations {
		if err := sched.AddJob(reg.schedule, reg.job); err != nil {
			return nil, err
		}
	}

	container.Scheduler = sched
	return instances, nil
}
