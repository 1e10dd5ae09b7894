package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trades-api/internal/balance"
	"trades-api/internal/messaging"
	"trades-api/internal/models"
	"trades-api/internal/monitoring"
	"trades-api/internal/normalizer"
	"trades-api/internal/repositories"
)

// LedgerService ingests CSV batches into the ledger and answers balance queries.
type LedgerService interface {
	Ingest(ctx context.Context, filename string, r io.Reader) (*models.IngestReport, error)
	Balances(ctx context.Context, timestamp string) (models.Balances, error)
	Report(ctx context.Context, batchID string) (*models.IngestReport, error)
	RefreshLedgerStats(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type ledgerService struct {
	repo       repositories.TradeRepository
	normalizer normalizer.Normalizer
	reports    ReportStore
	publisher  messaging.EventPublisher
	metrics    monitoring.MetricsService
	logger     *logrus.Logger
	now        func() time.Time
}

// NewLedgerService wires the ledger collaborators. reports and publisher may be nil.
func NewLedgerService(
	repo repositories.TradeRepository,
	norm normalizer.Normalizer,
	reports ReportStore,
	publisher messaging.EventPublisher,
	metrics monitoring.MetricsService,
	logger *logrus.Logger,
) LedgerService {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &ledgerService{
		repo:       repo,
		normalizer: norm,
		reports:    reports,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest normalizes every row of r, stores the accepted trades and returns
// the per-row outcome. Rejected rows never abort the batch; a missing header
// column (ErrInput) or a failed bulk insert (ErrStorage) does.
func (s *ledgerService) Ingest(ctx context.Context, filename string, r io.Reader) (*models.IngestReport, error) {
	started := s.now().UTC()
	batchID := uuid.New().String()
	log := s.logger.WithFields(logrus.Fields{
		"component": "ledger_service",
		"batch_id":  batchID,
		"filename":  filename,
	})

	result, err := s.normalizer.NormalizeStream(r)
	if err != nil {
		s.metrics.RecordIngest(string(models.KindOf(err)), 0, 0, time.Since(started))
		log.WithError(err).Warn("CSV batch rejected")
		return nil, err
	}

	if len(result.Trades) > 0 {
		storeStart := time.Now()
		if _, err := s.repo.InsertMany(ctx, result.Trades); err != nil {
			s.metrics.RecordStoreOperation("insert_many", "error", time.Since(storeStart))
			s.metrics.RecordIngest(string(models.KindOf(err)), 0, result.Rejected(), time.Since(started))
			log.WithError(err).WithField("trades", len(result.Trades)).Error("Failed to store trades")
			return nil, err
		}
		s.metrics.RecordStoreOperation("insert_many", "success", time.Since(storeStart))
	}

	report := &models.IngestReport{
		BatchID:     batchID,
		Filename:    filename,
		Accepted:    result.Accepted(),
		Rejected:    result.Rejected(),
		Errors:      result.Errors,
		StartedAt:   started,
		CompletedAt: s.now().UTC(),
	}

	for _, rowErr := range result.Errors {
		s.metrics.RecordRowRejection(string(rowErr.Kind))
		log.WithFields(logrus.Fields{
			"row":   rowErr.Row,
			"kind":  rowErr.Kind,
			"field": rowErr.Field,
		}).Debug(rowErr.Reason)
	}
	s.metrics.RecordIngest("success", report.Accepted, report.Rejected, time.Since(started))

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			log.WithError(err).Warn("Failed to keep upload report")
		}
	}

	if report.Accepted > 0 {
		s.publishIngested(ctx, log, report, result.Trades)
	}

	log.WithFields(logrus.Fields{
		"accepted": report.Accepted,
		"rejected": report.Rejected,
	}).Info("CSV batch ingested")

	return report, nil
}

func (s *ledgerService) publishIngested(ctx context.Context, log *logrus.Entry, report *models.IngestReport, trades []models.Trade) {
	event := ingestedEvent(report, trades, s.now().UTC())
	if err := s.publisher.PublishTradesIngested(ctx, event); err != nil {
		s.metrics.RecordEventPublish("error")
		log.WithError(err).Warn("Failed to publish trades.ingested event")
		return
	}
	s.metrics.RecordEventPublish("success")
}

// Balances replays the ledger up to timestamp.
func (s *ledgerService) Balances(ctx context.Context, timestamp string) (models.Balances, error) {
	started := time.Now()
	finder := &countingFinder{repo: s.repo, metrics: s.metrics}

	balances, err := balance.NewEngine(finder).ComputeAt(ctx, timestamp)
	if err != nil {
		kind := models.KindOf(err)
		s.metrics.RecordBalanceQuery(string(kind), 0, 0, time.Since(started))
		entry := s.logger.WithFields(logrus.Fields{
			"component": "ledger_service",
			"timestamp": timestamp,
			"kind":      kind,
		}).WithError(err)
		if kind == models.KindInput {
			entry.Debug("Rejected balance query")
		} else {
			entry.Error("Balance query failed")
		}
		return nil, err
	}

	s.metrics.RecordBalanceQuery("success", finder.trades, len(balances), time.Since(started))
	return balances, nil
}

func (s *ledgerService) Report(ctx context.Context, batchID string) (*models.IngestReport, error) {
	if s.reports == nil {
		return nil, ErrReportNotFound
	}
	return s.reports.Get(ctx, batchID)
}

// RefreshLedgerStats counts stored trades and publishes the gauge.
func (s *ledgerService) RefreshLedgerStats(ctx context.Context) (int64, error) {
	started := time.Now()
	n, err := s.repo.Count(ctx)
	if err != nil {
		s.metrics.RecordStoreOperation("count", "error", time.Since(started))
		return 0, fmt.Errorf("failed to count ledger trades: %w", err)
	}
	s.metrics.RecordStoreOperation("count", "success", time.Since(started))
	s.metrics.SetLedgerTrades(n)
	return n, nil
}

func (s *ledgerService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// countingFinder records store timing and how many trades a query replayed.
type countingFinder struct {
	repo    repositories.TradeRepository
	metrics monitoring.MetricsService
	trades  int
}

func (f *countingFinder) FindUpTo(ctx context.Context, cutoff time.Time) ([]models.Trade, error) {
	started := time.Now()
	trades, err := f.repo.FindUpTo(ctx, cutoff)
	if err != nil {
		f.metrics.RecordStoreOperation("find_up_to", "error", time.Since(started))
		return nil, err
	}
	f.metrics.RecordStoreOperation("find_up_to", "success", time.Since(started))
	f.trades = len(trades)
	return trades, nil
}

func ingestedEvent(report *models.IngestReport, trades []models.Trade, now time.Time) models.TradesIngestedEvent {
	event := models.TradesIngestedEvent{
		BatchID:   report.BatchID,
		Accepted:  report.Accepted,
		Rejected:  report.Rejected,
		BaseCoins: []string{},
		Timestamp: now,
	}

	seen := make(map[string]bool)
	for i, t := range trades {
		if !seen[t.BaseCoin] {
			seen[t.BaseCoin] = true
			event.BaseCoins = append(event.BaseCoins, t.BaseCoin)
		}
		if i == 0 || t.UTCTime.Before(event.FirstTradeAt) {
			event.FirstTradeAt = t.UTCTime
		}
		if i == 0 || t.UTCTime.After(event.LastTradeAt) {
			event.LastTradeAt = t.UTCTime
		}
	}
	sort.Strings(event.BaseCoins)

	return event
}
