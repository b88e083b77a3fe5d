package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/buffalo/orderpipe/internal/domain/order"
	"github.com/buffalo/orderpipe/internal/infrastructure/persistence/models"
)

func setupOrderTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.RawOrderModel{}, &models.TransformedOrderModel{}))
	return db
}

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func strPtr(s string) *string { return &s }

func rawOrder(t *testing.T, id int64, fields order.Document) *order.RawOrder {
	t.Helper()
	raw, err := order.NewRawOrder(id, fields)
	require.NoError(t, err)
	return raw
}

// ---------------------------------------------------------------------------
// Raw order repository
// ---------------------------------------------------------------------------

func TestGormRawOrderRepository_InsertAndExists(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormRawOrderRepository(db)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, 100)
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := repo.Insert(ctx, rawOrder(t, 100, order.Document{"statusname": "New"}))
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err = repo.Exists(ctx, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("conflict keeps the original row", func(t *testing.T) {
		inserted, err := repo.Insert(ctx, rawOrder(t, 100, order.Document{"statusname": "Changed"}))
		require.NoError(t, err)
		assert.False(t, inserted)

		var stored models.RawOrderModel
		require.NoError(t, db.First(&stored, "id = ?", 100).Error)
		doc, err := stored.ToDomain().Document()
		require.NoError(t, err)
		assert.Equal(t, "New", doc["statusname"])
	})

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormRawOrderRepository_ScanAll(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormRawOrderRepository(db)
	ctx := context.Background()

	for _, id := range []int64{5, 3, 9, 1, 7} {
		_, err := repo.Insert(ctx, rawOrder(t, id, order.Document{}))
		require.NoError(t, err)
	}

	t.Run("visits rows in id order by chunk", func(t *testing.T) {
		var chunks [][]int64
		err := repo.ScanAll(ctx, 2, func(batch []order.RawOrder) error {
			ids := make([]int64, len(batch))
			for i, r := range batch {
				ids[i] = r.ID
			}
			chunks = append(chunks, ids)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, [][]int64{{1, 3}, {5, 7}, {9}}, chunks)
	})

	t.Run("exact multiple of chunk size", func(t *testing.T) {
		calls := 0
		err := repo.ScanAll(ctx, 5, func(batch []order.RawOrder) error {
			calls++
			assert.Len(t, batch, 5)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("callback error stops the scan", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := repo.ScanAll(ctx, 2, func([]order.RawOrder) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("empty table calls nothing", func(t *testing.T) {
		empty := NewGormRawOrderRepository(setupOrderTestDB(t))
		err := empty.ScanAll(ctx, 0, func([]order.RawOrder) error {
			t.Fatal("unexpected batch")
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestGormRawOrderRepository_SQL(t *testing.T) {
	t.Run("insert uses on conflict do nothing", func(t *testing.T) {
		db, mock := newMockGorm(t)
		repo := NewGormRawOrderRepository(db)

		mock.ExpectExec(`INSERT INTO "orders_raw" \("id","data"\) VALUES \(\$1,\$2\) ON CONFLICT \("id"\) DO NOTHING`).
			WithArgs(int64(42), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := repo.Insert(context.Background(), &order.RawOrder{ID: 42, Data: json.RawMessage(`{"_id":42}`)})
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exists counts by primary key", func(t *testing.T) {
		db, mock := newMockGorm(t)
		repo := NewGormRawOrderRepository(db)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "orders_raw" WHERE id = \$1`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.Exists(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database errors are wrapped", func(t *testing.T) {
		db, mock := newMockGorm(t)
		repo := NewGormRawOrderRepository(db)
		dbErr := errors.New("connection refused")

		mock.ExpectQuery(`SELECT count\(\*\) FROM "orders_raw"`).WillReturnError(dbErr)

		_, err := repo.Exists(context.Background(), 1)
		assert.ErrorIs(t, err, dbErr)
	})
}

// ---------------------------------------------------------------------------
// Transformed order repository
// ---------------------------------------------------------------------------

func sampleTransformed(id int64) order.TransformedOrder {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return order.TransformedOrder{
		OrderID:           id,
		ExpressNumber:     strPtr(fmt.Sprintf("BX%d", id)),
		StatusName:        strPtr("Delivered"),
		AscertainedWeight: decimal.NewNullDecimal(decimal.RequireFromString("1.5")),
		CreateTime:        &created,
		DeclaredValue:     decimal.NewNullDecimal(decimal.NewFromInt(42)),
	}
}

func TestGormTransformedOrderRepository_InsertBatch(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormTransformedOrderRepository(db)
	ctx := context.Background()

	n, err := repo.InsertBatch(ctx, []order.TransformedOrder{sampleTransformed(1), sampleTransformed(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	t.Run("existing ids are skipped", func(t *testing.T) {
		changed := sampleTransformed(1)
		changed.StatusName = strPtr("Lost")

		n, err := repo.InsertBatch(ctx, []order.TransformedOrder{changed, sampleTransformed(3)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		found, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Delivered", *found.StatusName)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		n, err := repo.InsertBatch(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGormTransformedOrderRepository_FindByID(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormTransformedOrderRepository(db)
	ctx := context.Background()

	_, err := repo.InsertBatch(ctx, []order.TransformedOrder{sampleTransformed(8)})
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), found.OrderID)
	assert.Equal(t, "BX8", *found.ExpressNumber)
	assert.Nil(t, found.ThirdNumber)
	assert.True(t, found.AscertainedWeight.Decimal.Equal(decimal.RequireFromString("1.5")))
	assert.False(t, found.FinalWeight.Valid)
	require.NotNil(t, found.CreateTime)
	assert.True(t, found.CreateTime.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.True(t, found.DeclaredValue.Decimal.Equal(decimal.NewFromInt(42)))

	_, err = repo.FindByID(ctx, 9)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestGormTransformedOrderRepository_List(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormTransformedOrderRepository(db)
	ctx := context.Background()

	batch := make([]order.TransformedOrder, 0, 25)
	for i := int64(25); i >= 1; i-- {
		batch = append(batch, sampleTransformed(i))
	}
	_, err := repo.InsertBatch(ctx, batch)
	require.NoError(t, err)

	page, total, err := repo.List(ctx, order.ListFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, page, 10)
	assert.Equal(t, int64(11), page[0].OrderID)
	assert.Equal(t, int64(20), page[9].OrderID)

	page, _, err = repo.List(ctx, order.ListFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestGormTransformedOrderRepository_SQL(t *testing.T) {
	db, mock := newMockGorm(t)
	repo := NewGormTransformedOrderRepository(db)

	mock.ExpectExec(`INSERT INTO "orders_transformed" .* ON CONFLICT \("order_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.InsertBatch(context.Background(), []order.TransformedOrder{sampleTransformed(1), sampleTransformed(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
