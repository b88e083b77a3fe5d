package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/storage"
	"github.com/buffalo/orderpipe/internal/infrastructure/telemetry"
)

// IngestionReport summarizes one ingestion run
type IngestionReport struct {
	ListedCount        int           `json:"listed_count"`
	UniqueCount        int           `json:"unique_count"`
	ExistingCount      int           `json:"existing_count"`
	NewCount           int           `json:"new_count"`
	FailedCount        int           `json:"failed_count"`
	ConflictCount      int           `json:"conflict_count"`
	ArchiveFailedCount int           `json:"archive_failed_count"`
	Duration           time.Duration `json:"duration"`
}

// IngestionService copies order details from the portal into the raw store
type IngestionService struct {
	source  order.Source
	raws    order.RawOrderRepository
	archive storage.RawArchive
	metrics *telemetry.PipelineMetrics
	logger  *zap.Logger
}

// IngestionOption configures an IngestionService
type IngestionOption func(*IngestionService)

// WithArchive also writes each newly stored document to archive
func WithArchive(archive storage.RawArchive) IngestionOption {
	return func(s *IngestionService) {
		if archive != nil {
			s.archive = archive
		}
	}
}

// WithIngestionMetrics records counts on m
func WithIngestionMetrics(m *telemetry.PipelineMetrics) IngestionOption {
	return func(s *IngestionService) {
		s.metrics = m
	}
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(source order.Source, raws order.RawOrderRepository, log *zap.Logger, opts ...IngestionOption) *IngestionService {
	s := &IngestionService{
		source:  source,
		raws:    raws,
		archive: storage.NoopArchive{},
		logger:  logger.Component(log, logger.ComponentIngest),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce logs in, lists every order id and stores the detail of each id
// not yet in the raw store. Rows already stored are never touched, so
// running it again over the same remote data changes nothing.
func (s *IngestionService) RunOnce(ctx context.Context) (*IngestionReport, error) {
	start := time.Now()
	log := s.runLogger(ctx)
	report := &IngestionReport{}

	session, err := s.source.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrSessionFailed, err)
	}

	ids, err := session.ListOrderIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrListingFailed, err)
	}
	report.ListedCount = len(ids)
	s.metrics.RecordListed(ctx, len(ids))

	ids = uniqueIDs(ids)
	report.UniqueCount = len(ids)
	log.Info("Total order IDs fetched",
		zap.Int("count", report.ListedCount),
		zap.Int("unique", report.UniqueCount),
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.ingestOne(ctx, log, session, id, report); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	s.metrics.RecordInserted(ctx, report.NewCount)
	s.metrics.RecordDetailFailures(ctx, report.FailedCount)

	log.Info("New orders inserted",
		zap.Int("count", report.NewCount),
		zap.Int("existing", report.ExistingCount),
		zap.Int("failed", report.FailedCount),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// ingestOne handles a single id. Only store errors and cancellation are
// returned; per-order portal failures are counted and skipped.
func (s *IngestionService) ingestOne(ctx context.Context, log *zap.Logger, session order.Session, id int64, report *IngestionReport) error {
	exists, err := s.raws.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: check order %d: %w", ErrStoreFailed, id, err)
	}
	if exists {
		report.ExistingCount++
		return nil
	}

	doc, err := session.FetchOrderDetail(ctx, id)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Warn("Skipping order detail", zap.Int64("order_id", id), zap.Error(err))
		report.FailedCount++
		return nil
	}
	if doc == nil {
		report.FailedCount++
		return nil
	}

	raw, err := order.NewRawOrder(id, doc)
	if err != nil {
		log.Warn("Skipping undecodable order detail", zap.Int64("order_id", id), zap.Error(err))
		report.FailedCount++
		return nil
	}

	inserted, err := s.raws.Insert(ctx, raw)
	if err != nil {
		return fmt.Errorf("%w: insert order %d: %w", ErrStoreFailed, id, err)
	}
	if !inserted {
		report.ConflictCount++
		return nil
	}
	report.NewCount++

	if err := s.archive.Put(ctx, id, raw.Data); err != nil {
		log.Warn("Failed to archive raw order", zap.Int64("order_id", id), zap.Error(err))
		report.ArchiveFailedCount++
	}
	return nil
}

func (s *IngestionService) runLogger(ctx context.Context) *zap.Logger {
	if logger.RunID(ctx) != "" {
		return logger.FromContext(ctx)
	}
	return s.logger
}

// uniqueIDs drops repeated ids, keeping first-seen order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
