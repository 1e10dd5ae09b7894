package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trades-api/internal/models"
	"trades-api/pkg/cache"
)

// ErrReportNotFound is returned for unknown or expired batch ids.
var ErrReportNotFound = errors.New("upload report not found")

// ReportStore keeps ingestion reports for later lookup by batch id.
type ReportStore interface {
	Save(ctx context.Context, report *models.IngestReport) error
	Get(ctx context.Context, batchID string) (*models.IngestReport, error)
}

// CacheReportStore stores reports in a cache.Store under "report:<batch id>".
type CacheReportStore struct {
	store cache.Store
	ttl   time.Duration
}

func NewCacheReportStore(store cache.Store, ttl time.Duration) *CacheReportStore {
	return &CacheReportStore{store: store, ttl: ttl}
}

func (s *CacheReportStore) Save(ctx context.Context, report *models.IngestReport) error {
	if err := s.store.Set(ctx, reportKey(report.BatchID), report, s.ttl); err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.BatchID, err)
	}
	return nil
}

func (s *CacheReportStore) Get(ctx context.Context, batchID string) (*models.IngestReport, error) {
	var report models.IngestReport
	if err := s.store.Get(ctx, reportKey(batchID), &report); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to load report %s: %w", batchID, err)
	}
	return &report, nil
}

func reportKey(batchID string) string {
	return "report:" + batchID
}
