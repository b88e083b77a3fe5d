package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/infrastructure/persistence/models"
)

// DefaultScanChunkSize is the number of raw rows read per ScanAll query
const DefaultScanChunkSize = 1000

// GormRawOrderRepository implements order.RawOrderRepository using GORM
type GormRawOrderRepository struct {
	db *gorm.DB
}

// NewGormRawOrderRepository creates a new GormRawOrderRepository
func NewGormRawOrderRepository(db *gorm.DB) *GormRawOrderRepository {
	return &GormRawOrderRepository{db: db}
}

var _ order.RawOrderRepository = (*GormRawOrderRepository)(nil)

// Exists reports whether id is already stored
func (r *GormRawOrderRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RawOrderModel{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check raw order %d: %w", id, err)
	}
	return count > 0, nil
}

// Insert stores raw with ON CONFLICT (id) DO NOTHING.
// inserted is false when the id was already present.
func (r *GormRawOrderRepository) Insert(ctx context.Context, raw *order.RawOrder) (bool, error) {
	model := models.RawOrderModelFromDomain(raw)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, fmt.Errorf("insert raw order %d: %w", raw.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ScanAll walks the table in id order using keyset pagination
func (r *GormRawOrderRepository) ScanAll(ctx context.Context, chunkSize int, fn func([]order.RawOrder) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultScanChunkSize
	}

	var lastID int64
	first := true
	for {
		var rows []models.RawOrderModel
		q := r.db.WithContext(ctx).Order("id ASC").Limit(chunkSize)
		if !first {
			q = q.Where("id > ?", lastID)
		}
		if err := q.Find(&rows).Error; err != nil {
			return fmt.Errorf("scan raw orders: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		batch := make([]order.RawOrder, len(rows))
		for i := range rows {
			batch[i] = rows[i].ToDomain()
		}
		if err := fn(batch); err != nil {
			return err
		}

		if len(rows) < chunkSize {
			return nil
		}
		lastID = rows[len(rows)-1].ID
		first = false
	}
}

// Count returns the number of stored raw orders
func (r *GormRawOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.RawOrderModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count raw orders: %w", err)
	}
	return count, nil
}
