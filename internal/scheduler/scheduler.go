package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"trades-api/internal/config"
	"trades-api/internal/monitoring"
)

// LedgerStats refreshes the stored-trade gauge.
type LedgerStats interface {
	RefreshLedgerStats(ctx context.Context) (int64, error)
}

// Scheduler runs housekeeping jobs: sweeping upload files left behind by
// crashed requests, and refreshing the ledger size gauge.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.SchedulerConfig
	uploadDir string
	maxAge    time.Duration
	stats     LedgerStats
	metrics   monitoring.MetricsService
	logger    *logrus.Logger
	ctx       context.Context
}

func NewScheduler(cfg config.SchedulerConfig, upload config.UploadConfig, stats LedgerStats, metrics monitoring.MetricsService, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cfg:       cfg,
		uploadDir: upload.Dir,
		maxAge:    upload.MaxAge,
		stats:     stats,
		metrics:   metrics,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Start registers the jobs and starts the cron loop. Jobs see ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}
	s.ctx = ctx

	if _, err := s.cron.AddFunc(s.cfg.CleanupInterval, s.runUploadSweep); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.cfg.CleanupInterval, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.LedgerStatsEvery, s.runLedgerStats); err != nil {
		return fmt.Errorf("invalid ledger stats schedule %q: %w", s.cfg.LedgerStatsEvery, err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"cleanup":      s.cfg.CleanupInterval,
		"ledger_stats": s.cfg.LedgerStatsEvery,
	}).Info("Scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() error {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runUploadSweep() {
	removed, err := SweepUploads(s.uploadDir, s.maxAge, time.Now())
	if removed > 0 {
		s.metrics.RecordUploadCleanup(removed)
	}
	if err != nil {
		s.logger.WithError(err).Warn("Upload sweep incomplete")
		return
	}
	s.logger.WithField("removed", removed).Debug("Upload sweep finished")
}

func (s *Scheduler) runLedgerStats() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	n, err := s.stats.RefreshLedgerStats(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to refresh ledger stats")
		return
	}
	s.logger.WithField("trades", n).Debug("Ledger stats refreshed")
}

// SweepUploads removes regular files in dir last modified more than maxAge
// before now. A missing dir is not an error.
func SweepUploads(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read upload dir: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed concurrently
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}
