package repo

import (
	"context"
	"errors"
	"testing"

	pkgdb "github.com/Skotchmaster/agro_shop/pkg/db"
	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := pkgdb.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { pkgdb.Close(db) })
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          "product-" + price,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Status:        models.ProductActive,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.StockQuantity
}

func TestWithinTx_CommitsOnNil(t *testing.T) {
	db := InitTestDB(t)
	p := seedProduct(t, db, "100", 10)
	m := &TxManager{DB: db, Strategy: LockPessimistic}

	err := m.WithinTx(context.Background(), func(tx Tx) error {
		locked, err := tx.Products().LockForUpdate(context.Background(), p.ID)
		require.NoError(t, err)
		return tx.Products().Decrement(context.Background(), locked, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, 7, stockOf(t, db, p.ID))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := InitTestDB(t)
	p := seedProduct(t, db, "100", 10)
	m := &TxManager{DB: db, Strategy: LockPessimistic}
	boom := errors.New("boom")

	err := m.WithinTx(context.Background(), func(tx Tx) error {
		locked, err := tx.Products().LockForUpdate(context.Background(), p.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Products().Decrement(context.Background(), locked, 3))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 10, stockOf(t, db, p.ID))
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	db := InitTestDB(t)
	p := seedProduct(t, db, "100", 10)
	m := &TxManager{DB: db, Strategy: LockPessimistic}

	require.PanicsWithValue(t, "boom", func() {
		_ = m.WithinTx(context.Background(), func(tx Tx) error {
			locked, err := tx.Products().LockForUpdate(context.Background(), p.ID)
			require.NoError(t, err)
			require.NoError(t, tx.Products().Decrement(context.Background(), locked, 3))
			panic("boom")
		})
	})
	assert.Equal(t, 10, stockOf(t, db, p.ID))
}

func TestProducts_DecrementGuard(t *testing.T) {
	for _, strategy := range []LockStrategy{LockPessimistic, LockOptimistic} {
		t.Run(string(strategy), func(t *testing.T) {
			db := InitTestDB(t)
			p := seedProduct(t, db, "50", 2)
			m := &TxManager{DB: db, Strategy: strategy}

			err := m.WithinTx(context.Background(), func(tx Tx) error {
				locked, err := tx.Products().LockForUpdate(context.Background(), p.ID)
				require.NoError(t, err)
				return tx.Products().Decrement(context.Background(), locked, 3)
			})

			var shortage *ShortageError
			require.ErrorAs(t, err, &shortage)
			assert.Equal(t, p.ID, shortage.ProductID)
			assert.Equal(t, 2, shortage.Available)
			assert.Equal(t, 2, stockOf(t, db, p.ID))
		})
	}
}

func TestProducts_LockForUpdateMissing(t *testing.T) {
	db := InitTestDB(t)
	m := &TxManager{DB: db}

	err := m.WithinTx(context.Background(), func(tx Tx) error {
		_, err := tx.Products().LockForUpdate(context.Background(), uuid.New())
		return err
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOptimisticProducts_RetriesStaleVersion(t *testing.T) {
	db := InitTestDB(t)
	p := seedProduct(t, db, "10", 5)
	store := &OptimisticProducts{DB: db, MaxAttempts: 3}
	ctx := context.Background()

	read, err := store.LockForUpdate(ctx, p.ID)
	require.NoError(t, err)

	// a competing writer commits between our read and our swap
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).
		Updates(map[string]any{"stock_quantity": 3, "version": gorm.Expr("version + 1")}).Error)

	require.NoError(t, store.Decrement(ctx, read, 2))
	assert.Equal(t, 1, read.StockQuantity)
	assert.EqualValues(t, 2, read.Version)
	assert.Equal(t, 1, stockOf(t, db, p.ID))
}

func TestOptimisticProducts_StaleReadBecomesShortage(t *testing.T) {
	db := InitTestDB(t)
	p := seedProduct(t, db, "10", 5)
	store := &OptimisticProducts{DB: db, MaxAttempts: 3}
	ctx := context.Background()

	read, err := store.LockForUpdate(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).
		Updates(map[string]any{"stock_quantity": 1, "version": gorm.Expr("version + 1")}).Error)

	err = store.Decrement(ctx, read, 2)
	var shortage *ShortageError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, 1, shortage.Available)
	assert.Equal(t, 1, stockOf(t, db, p.ID))
}

func TestTxOrders_CreateAndStatusGuard(t *testing.T) {
	db := InitTestDB(t)
	a := seedProduct(t, db, "100", 10)
	m := &TxManager{DB: db}
	ctx := context.Background()

	order := &models.Order{
		UserID:          uuid.New(),
		TotalAmount:     decimal.RequireFromString("200"),
		Status:          models.StatusPending,
		ShippingAddress: "Ward 4, Bharatpur, Chitwan",
		Phone:           "9800000000",
		Items: []models.OrderItem{{
			ProductID:  a.ID,
			Quantity:   2,
			UnitPrice:  decimal.RequireFromString("100"),
			TotalPrice: decimal.RequireFromString("200"),
		}},
	}
	require.NoError(t, m.WithinTx(ctx, func(tx Tx) error { return tx.Orders().Create(ctx, order) }))

	reader := &GormRepo{DB: db}
	got, err := reader.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, a.Name, got.Items[0].ProductName)
	assert.True(t, got.TotalAmount.Equal(got.ItemsTotal()))

	stale := *got
	require.NoError(t, m.WithinTx(ctx, func(tx Tx) error {
		locked, err := tx.Orders().LockForUpdate(ctx, order.ID)
		require.NoError(t, err)
		return tx.Orders().UpdateStatus(ctx, locked, models.StatusConfirmed)
	}))

	err = m.WithinTx(ctx, func(tx Tx) error {
		return tx.Orders().UpdateStatus(ctx, &stale, models.StatusCancelled)
	})
	assert.ErrorIs(t, err, ErrContention)

	got, err = reader.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
}

func TestGormRepo_ListOrders(t *testing.T) {
	db := InitTestDB(t)
	a := seedProduct(t, db, "100", 10)
	b := seedProduct(t, db, "50", 10)
	userID := uuid.New()
	ctx := context.Background()

	mk := func(status models.Status, items ...models.OrderItem) {
		o := &models.Order{
			UserID:          userID,
			TotalAmount:     decimal.Zero,
			Status:          status,
			ShippingAddress: "Ward 4, Bharatpur, Chitwan",
			Phone:           "9800000000",
			Items:           items,
		}
		require.NoError(t, (&TxOrders{DB: db}).Create(ctx, o))
	}
	line := func(p *models.Product) models.OrderItem {
		return models.OrderItem{ProductID: p.ID, Quantity: 1, UnitPrice: p.Price, TotalPrice: p.Price}
	}

	mk(models.StatusPending, line(a), line(b))
	mk(models.StatusCancelled, line(a))
	mk(models.StatusPending, line(b))

	reader := &GormRepo{DB: db}
	total, orders, err := reader.ListOrders(ctx, userID, nil, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, orders, 3)

	var counts []int64
	for _, o := range orders {
		counts = append(counts, o.ItemCount)
	}
	assert.ElementsMatch(t, []int64{2, 1, 1}, counts)

	pending := models.StatusPending
	total, orders, err = reader.ListOrders(ctx, userID, &pending, 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, orders, 1)

	total, orders, err = reader.ListOrders(ctx, uuid.New(), nil, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestSortIDs(t *testing.T) {
	ids := []uuid.UUID{
		uuid.MustParse("ffffffff-0000-0000-0000-000000000000"),
		uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		uuid.MustParse("00000000-0000-0000-0000-000000000001"),
	}
	SortIDs(ids)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids[0].String())
	assert.Equal(t, "ffffffff-0000-0000-0000-000000000000", ids[2].String())
}
