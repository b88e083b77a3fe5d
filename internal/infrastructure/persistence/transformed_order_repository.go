package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/infrastructure/persistence/models"
)

// InsertBatchSize is the number of rows per bulk INSERT statement
const InsertBatchSize = 500

// GormTransformedOrderRepository implements order.TransformedOrderRepository using GORM
type GormTransformedOrderRepository struct {
	db *gorm.DB
}

// NewGormTransformedOrderRepository creates a new GormTransformedOrderRepository
func NewGormTransformedOrderRepository(db *gorm.DB) *GormTransformedOrderRepository {
	return &GormTransformedOrderRepository{db: db}
}

var _ order.TransformedOrderRepository = (*GormTransformedOrderRepository)(nil)

// InsertBatch bulk inserts orders with ON CONFLICT (order_id) DO NOTHING and
// returns the number of rows written
func (r *GormTransformedOrderRepository) InsertBatch(ctx context.Context, orders []order.TransformedOrder) (int64, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	rows := make([]*models.TransformedOrderModel, len(orders))
	for i := range orders {
		rows[i] = models.TransformedOrderModelFromDomain(&orders[i])
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, InsertBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("insert transformed orders: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FindByID returns the order with the given id
func (r *GormTransformedOrderRepository) FindByID(ctx context.Context, id int64) (*order.TransformedOrder, error) {
	var model models.TransformedOrderModel
	err := r.db.WithContext(ctx).Where("order_id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find transformed order %d: %w", id, err)
	}
	o := model.ToDomain()
	return &o, nil
}

// List returns a page of orders ordered by order id and the total count
func (r *GormTransformedOrderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.TransformedOrder, int64, error) {
	filter.Normalize()

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	var rows []models.TransformedOrderModel
	err = r.db.WithContext(ctx).
		Order("order_id ASC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list transformed orders: %w", err)
	}

	out := make([]order.TransformedOrder, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

// Count returns the number of stored transformed orders
func (r *GormTransformedOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TransformedOrderModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count transformed orders: %w", err)
	}
	return count, nil
}
