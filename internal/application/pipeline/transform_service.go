package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/infrastructure/telemetry"
)

// DefaultChunkSize is the number of raw rows flattened per step
const DefaultChunkSize = 1000

// TransformReport summarizes one transform run
type TransformReport struct {
	LoadedCount    int           `json:"loaded_count"`
	FlattenedCount int           `json:"flattened_count"`
	InsertedCount  int64         `json:"inserted_count"`
	DroppedCount   int           `json:"dropped_count"`
	DroppedIDs     []int64       `json:"dropped_ids,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// TransformService replays the flattener over the whole raw store
type TransformService struct {
	raws        order.RawOrderRepository
	transformed order.TransformedOrderRepository
	flattener   *order.Flattener
	chunkSize   int
	metrics     *telemetry.PipelineMetrics
	logger      *zap.Logger
}

// TransformOption configures a TransformService
type TransformOption func(*TransformService)

// WithChunkSize sets how many raw rows are read per step
func WithChunkSize(n int) TransformOption {
	return func(s *TransformService) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithFlattener replaces the default flattener
func WithFlattener(f *order.Flattener) TransformOption {
	return func(s *TransformService) {
		if f != nil {
			s.flattener = f
		}
	}
}

// WithTransformMetrics records counts on m
func WithTransformMetrics(m *telemetry.PipelineMetrics) TransformOption {
	return func(s *TransformService) {
		s.metrics = m
	}
}

// NewTransformService creates a new TransformService
func NewTransformService(raws order.RawOrderRepository, transformed order.TransformedOrderRepository, log *zap.Logger, opts ...TransformOption) *TransformService {
	s := &TransformService{
		raws:        raws,
		transformed: transformed,
		flattener:   order.NewFlattener(),
		chunkSize:   DefaultChunkSize,
		logger:      logger.Component(log, logger.ComponentTransform),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce flattens every raw row and stores the rows whose order id is not
// yet in the transformed store. Undecodable rows are dropped and counted.
func (s *TransformService) RunOnce(ctx context.Context) (*TransformReport, error) {
	start := time.Now()
	log := s.logger
	if logger.RunID(ctx) != "" {
		log = logger.FromContext(ctx)
	}
	report := &TransformReport{}

	err := s.raws.ScanAll(ctx, s.chunkSize, func(chunk []order.RawOrder) error {
		report.LoadedCount += len(chunk)

		result := s.flattener.FlattenBatch(chunk)
		for _, d := range result.Dropped {
			log.Warn("Dropping raw order", zap.Int64("raw_id", d.RawID), zap.Error(d.Err))
			report.DroppedIDs = append(report.DroppedIDs, d.RawID)
		}
		report.DroppedCount += len(result.Dropped)
		report.FlattenedCount += len(result.Orders)

		n, err := s.transformed.InsertBatch(ctx, result.Orders)
		if err != nil {
			return err
		}
		report.InsertedCount += n
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	report.Duration = time.Since(start)
	s.metrics.RecordTransformed(ctx, report.InsertedCount)
	s.metrics.RecordDropped(ctx, report.DroppedCount)

	log.Info(fmt.Sprintf("Loaded %d orders", report.LoadedCount),
		zap.Int("flattened", report.FlattenedCount),
		zap.Int64("inserted", report.InsertedCount),
		zap.Int("dropped", report.DroppedCount),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
