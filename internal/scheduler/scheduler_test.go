package scheduler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trades-api/internal/config"
	"trades-api/internal/monitoring"
)

type MockLedgerStats struct {
	mock.Mock
}

func (m *MockLedgerStats) RefreshLedgerStats(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func touch(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestSweepUploads(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("removes only stale files", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "stale.csv"), now.Add(-2*time.Hour))
		touch(t, filepath.Join(dir, "fresh.csv"), now.Add(-time.Minute))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

		removed, err := SweepUploads(dir, time.Hour, now)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		assert.NoFileExists(t, filepath.Join(dir, "stale.csv"))
		assert.FileExists(t, filepath.Join(dir, "fresh.csv"))
		assert.DirExists(t, filepath.Join(dir, "nested"))
	})

	t.Run("missing dir", func(t *testing.T) {
		removed, err := SweepUploads(filepath.Join(t.TempDir(), "absent"), time.Hour, now)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestScheduler_Jobs(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	stats := new(MockLedgerStats)
	stats.On("RefreshLedgerStats", mock.Anything).Return(int64(7), nil).Once()

	s := NewScheduler(
		config.SchedulerConfig{Enabled: true, CleanupInterval: "@every 1h", LedgerStatsEvery: "@every 1h"},
		config.UploadConfig{Dir: t.TempDir(), MaxAge: time.Hour},
		stats,
		monitoring.NewPrometheusMetrics("test"),
		log,
	)

	require.NoError(t, s.Start(context.Background()))
	s.runLedgerStats()
	s.runUploadSweep()
	require.NoError(t, s.Stop())

	stats.AssertExpectations(t)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := NewScheduler(
		config.SchedulerConfig{Enabled: true, CleanupInterval: "every now and then", LedgerStatsEvery: "@every 1m"},
		config.UploadConfig{Dir: t.TempDir(), MaxAge: time.Hour},
		new(MockLedgerStats),
		monitoring.NewPrometheusMetrics("test"),
		log,
	)

	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_Disabled(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	stats := new(MockLedgerStats)
	s := NewScheduler(config.SchedulerConfig{Enabled: false}, config.UploadConfig{}, stats,
		monitoring.NewPrometheusMetrics("test"), log)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	stats.AssertNotCalled(t, "RefreshLedgerStats", mock.Anything)
}
