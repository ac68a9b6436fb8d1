package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/reliability"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordAll() (*snapshots.RecordResult, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshots.RecordResult), args.Error(1)
}

type mockBackups struct {
	mock.Mock
}

func (m *mockBackups) Create(ctx context.Context) (*reliability.BackupInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reliability.BackupInfo), args.Error(1)
}

type stubPurger struct {
	purged int64
	err    error
	calls  int
}

func (s *stubPurger) DeleteExpired() (int64, error) {
	s.calls++
	return s.purged, s.err
}

type stubPruner struct {
	cutoff time.Time
	calls  int
}

func (s *stubPruner) DeleteOlderThan(cutoff time.Time) (int64, error) {
	s.calls++
	s.cutoff = cutoff
	return 3, nil
}

func TestSnapshotJob(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("RecordAll").Return(&snapshots.RecordResult{Date: "2026-03-01", Portfolios: 2, TotalValue: 1500}, nil).Once()

	job := NewSnapshotJob(rec, zerolog.Nop())
	assert.Equal(t, "snapshot", job.Name())
	require.NoError(t, job.Run())
	rec.AssertExpectations(t)

	failing := new(mockRecorder)
	failing.On("RecordAll").Return(nil, errors.New("db locked"))
	assert.EqualError(t, NewSnapshotJob(failing, zerolog.Nop()).Run(), "db locked")
}

func TestBackupJob(t *testing.T) {
	backups := new(mockBackups)
	backups.On("Create", mock.Anything).Return(&reliability.BackupInfo{Filename: "folio-backup-x.tar.gz"}, nil).Once()

	job := NewBackupJob(backups, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	backups.AssertExpectations(t)

	ctx := backups.Calls[0].Arguments.Get(0).(context.Context)
	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestMaintenanceJob(t *testing.T) {
	folio, _ := testingpkg.NewTestDB(t, "folio")
	cacheDB, _ := testingpkg.NewTestDB(t, "cache")

	purger := &stubPurger{purged: 4}
	pruner := &stubPruner{}
	job := NewMaintenanceJob([]*database.DB{folio, nil, cacheDB}, purger, pruner, 24*time.Hour, zerolog.Nop())
	fixed := time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	assert.Equal(t, "maintenance", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, fixed.Add(-24*time.Hour), pruner.cutoff)
}

func TestMaintenanceJobOptionalParts(t *testing.T) {
	pruner := &stubPruner{}
	job := NewMaintenanceJob(nil, nil, pruner, 0, zerolog.Nop())
	require.NoError(t, job.Run())
	assert.Zero(t, pruner.calls)

	purger := &stubPurger{err: errors.New("cache unavailable")}
	job = NewMaintenanceJob(nil, purger, nil, 0, zerolog.Nop())
	assert.EqualError(t, job.Run(), "cache unavailable")
}
