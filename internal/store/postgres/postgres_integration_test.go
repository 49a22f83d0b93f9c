//go:build integration

package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

// newTestStore connects to DOLMEN_TEST_DATABASE_URL when set, otherwise it
// starts a disposable postgres container.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	databaseURL := os.Getenv("DOLMEN_TEST_DATABASE_URL")
	if databaseURL == "" {
		pgC, err := tcPostgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:16-alpine"),
			tcPostgres.WithDatabase("dolmen_test"),
			tcPostgres.WithUsername("dolmen"),
			tcPostgres.WithPassword("dolmen"),
			tcPostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(ctx) })

		databaseURL, err = pgC.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = s.db.ExecContext(ctx, `TRUNCATE sales, purchases, items, users, shop_profile RESTART IDENTITY`)
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, store.DefaultSeed("", "")))
	return s
}

func saleLine(item *domain.Item, qty int) domain.CartLine {
	return domain.CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  qty,
		UnitPrice: item.SalePrice,
		LineTotal: item.SalePrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, store.DefaultSeed("", "")))

	items, err := s.ListItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, store.CredentialMatches(users[0].Credential, store.DefaultAdminPassword))
}

func TestCommitSaleRollsBackOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shirt, err := s.GetItem(ctx, 1)
	require.NoError(t, err)
	jacket, err := s.GetItem(ctx, 3)
	require.NoError(t, err)

	_, err = s.CommitSale(ctx, domain.Sale{
		ReceiptID: "it-conflict",
		SoldAt:    time.Now().UTC(),
		Lines:     []domain.CartLine{saleLine(shirt, 2), saleLine(jacket, 20)},
	})
	var conflict *store.StockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, jacket.ID, conflict.ItemID)

	after, err := s.GetItem(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, shirt.Stock, after.Stock)
	_, err = s.ListSalesByReceipt(ctx, "it-conflict")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitSaleAndSummarize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	shirt, err := s.GetItem(ctx, 1)
	require.NoError(t, err)
	records, err := s.CommitSale(ctx, domain.Sale{ReceiptID: "it-ok", SoldAt: at, Lines: []domain.CartLine{saleLine(shirt, 2)}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Profit.Equal(decimal.NewFromInt(1400)))

	summary, err := s.SummarizeSales(ctx, at, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TransactionCount)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(3000)))

	require.NoError(t, s.DeleteItem(ctx, shirt.ID))
	orphaned, err := s.ListSalesByReceipt(ctx, "it-ok")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownItemName, orphaned[0].ItemName)
}

func TestCommitSaleConcurrentLastUnit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jacket, err := s.AdjustStock(ctx, 3, -18)
	require.NoError(t, err)
	require.Equal(t, 1, jacket.Stock)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CommitSale(ctx, domain.Sale{ReceiptID: "it-race", SoldAt: time.Now().UTC(), Lines: []domain.CartLine{saleLine(jacket, 1)}})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, store.ErrStockConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestAdjustStockHitsCheckConstraint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AdjustStock(ctx, 2, -100)
	require.ErrorIs(t, err, store.ErrStockConflict)

	item, err := s.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 28, item.Stock)
}

func TestCommitRestockKeepsCostWhenOmitted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	record, err := s.CommitRestock(ctx, 2, 10, nil, at)
	require.NoError(t, err)
	assert.True(t, record.PurchasePrice.Equal(decimal.NewFromInt(1000)))

	cost := decimal.NewFromInt(950)
	_, err = s.CommitRestock(ctx, 2, 1, &cost, at)
	require.NoError(t, err)

	item, err := s.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 39, item.Stock)
	assert.True(t, item.PurchasePrice.Equal(cost))

	_, err = s.CommitRestock(ctx, 999, 1, nil, at)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitSaleStorageFailureWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
CREATE OR REPLACE FUNCTION reject_sales() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'sales unavailable';
END;
$$ LANGUAGE plpgsql`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `CREATE TRIGGER reject_sales BEFORE INSERT ON sales FOR EACH ROW EXECUTE FUNCTION reject_sales()`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DROP TRIGGER IF EXISTS reject_sales ON sales`)
		_, _ = s.db.ExecContext(ctx, `DROP FUNCTION IF EXISTS reject_sales()`)
	})

	shirt, err := s.GetItem(ctx, 1)
	require.NoError(t, err)
	jacket, err := s.GetItem(ctx, 3)
	require.NoError(t, err)

	_, err = s.CommitSale(ctx, domain.Sale{
		ReceiptID: "it-storage",
		SoldAt:    time.Now().UTC(),
		Lines:     []domain.CartLine{saleLine(shirt, 2), saleLine(jacket, 1)},
	})
	require.ErrorIs(t, err, store.ErrStorage)
	assert.NotErrorIs(t, err, store.ErrStockConflict)

	for _, before := range []*domain.Item{shirt, jacket} {
		after, err := s.GetItem(ctx, before.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Stock, after.Stock, before.Name)
	}

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales`).Scan(&count))
	assert.Zero(t, count)
}

func TestCommitSaleRejectsOversizedLineTotal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shirt, err := s.GetItem(ctx, 1)
	require.NoError(t, err)
	huge := saleLine(shirt, 2)
	huge.UnitPrice = decimal.NewFromInt(5_000_000_000)
	huge.LineTotal = huge.UnitPrice.Mul(decimal.NewFromInt(2))

	_, err = s.CommitSale(ctx, domain.Sale{ReceiptID: "it-huge", SoldAt: time.Now().UTC(), Lines: []domain.CartLine{huge}})
	require.ErrorIs(t, err, store.ErrValidation)

	after, err := s.GetItem(ctx, shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, shirt.Stock, after.Stock)
	_, err = s.ListSalesByReceipt(ctx, "it-huge")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStockOverflowIsValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.CommitRestock(ctx, 2, math.MaxInt, nil, at)
	require.ErrorIs(t, err, store.ErrValidation)
	_, err = s.CommitRestock(ctx, 2, store.MaxStock, nil, at)
	require.ErrorIs(t, err, store.ErrValidation)
	_, err = s.AdjustStock(ctx, 2, store.MaxStock)
	require.ErrorIs(t, err, store.ErrValidation)

	item, err := s.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 28, item.Stock)

	purchases, err := s.ListPurchases(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, purchases)
}
