package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

func line(item domain.Item, qty int) domain.CartLine {
	total := item.SalePrice.Mul(decimal.NewFromInt(int64(qty)))
	return domain.CartLine{ItemID: item.ID, Name: item.Name, Quantity: qty, UnitPrice: item.SalePrice, LineTotal: total}
}

func mustItem(t *testing.T, s *Store, id int64) domain.Item {
	t.Helper()
	item, err := s.GetItem(context.Background(), id)
	require.NoError(t, err)
	return *item
}

func TestNewSeededLoadsDemoShop(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	items, err := s.ListItems(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Kids Winter Jacket", items[0].Name)
	assert.Equal(t, "Men Formal Shirt", items[2].Name)

	shop, err := s.GetShopProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Dolmen Clothes", shop.Name)

	admin, err := s.GetUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, store.IsCredentialHash(admin.Credential))
	assert.True(t, store.CredentialMatches(admin.Credential, store.DefaultAdminPassword))
}

func TestListItemsFiltersCaseInsensitiveNewestFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateItem(ctx, domain.Item{Name: "Men Winter Coat", SalePrice: decimal.NewFromInt(4000), PurchasePrice: decimal.NewFromInt(2500), Stock: 3})
	require.NoError(t, err)

	items, err := s.ListItems(ctx, "MEN")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, created.ID, items[0].ID)

	first, err := s.ListItems(ctx, "")
	require.NoError(t, err)
	second, err := s.ListItems(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCreateItemRejectsNegativeStock(t *testing.T) {
	s := New()
	_, err := s.CreateItem(context.Background(), domain.Item{Name: "Scarf", Stock: -1})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestDeleteItemLeavesSalesAsSoftOrphans(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	shirt := mustItem(t, s, 1)

	_, err := s.CommitSale(ctx, domain.Sale{ReceiptID: "r-1", SoldAt: time.Now(), Lines: []domain.CartLine{line(shirt, 1)}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, shirt.ID))
	require.ErrorIs(t, s.DeleteItem(ctx, shirt.ID), store.ErrNotFound)

	records, err := s.ListSalesByReceipt(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.UnknownItemName, records[0].ItemName)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.AdjustStock(ctx, 3, -20)
	var conflict *store.StockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 19, conflict.Available)
	assert.Equal(t, 19, mustItem(t, s, 3).Stock)

	item, err := s.AdjustStock(ctx, 3, -19)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Stock)
}

func TestAdjustStockRejectsOverflow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.AdjustStock(ctx, 1, math.MaxInt)
	var ve *store.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "delta", ve.Field)
	assert.Equal(t, 50, mustItem(t, s, 1).Stock)

	item, err := s.AdjustStock(ctx, 1, store.MaxStock-50)
	require.NoError(t, err)
	assert.Equal(t, store.MaxStock, item.Stock)

	_, err = s.AdjustStock(ctx, 1, 1)
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, store.MaxStock, mustItem(t, s, 1).Stock)
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	shirt := mustItem(t, s, 1)
	jacket := mustItem(t, s, 3)

	_, err := s.CommitSale(ctx, domain.Sale{
		ReceiptID: "r-fail",
		SoldAt:    time.Now(),
		Lines:     []domain.CartLine{line(shirt, 2), line(jacket, 15), line(jacket, 5)},
	})
	var conflict *store.StockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, jacket.ID, conflict.ItemID)
	assert.Equal(t, 4, conflict.Available)

	assert.Equal(t, 50, mustItem(t, s, shirt.ID).Stock)
	assert.Equal(t, 19, mustItem(t, s, jacket.ID).Stock)
	_, err = s.ListSalesByReceipt(ctx, "r-fail")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitSaleRejectsOversizedLineTotal(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	shirt := mustItem(t, s, 1)
	jacket := mustItem(t, s, 3)

	huge := line(jacket, 2)
	huge.UnitPrice = decimal.NewFromInt(5_000_000_000)
	huge.LineTotal = huge.UnitPrice.Mul(decimal.NewFromInt(2))

	_, err := s.CommitSale(ctx, domain.Sale{
		ReceiptID: "r-huge",
		SoldAt:    time.Now(),
		Lines:     []domain.CartLine{line(shirt, 2), huge},
	})
	var ve *store.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "quantity", ve.Field)

	assert.Equal(t, 50, mustItem(t, s, shirt.ID).Stock)
	assert.Equal(t, 19, mustItem(t, s, jacket.ID).Stock)
	_, err = s.ListSalesByReceipt(ctx, "r-huge")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitSaleRecordsProfitFromCost(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	shirt := mustItem(t, s, 1)
	kurti := mustItem(t, s, 2)
	at := time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

	records, err := s.CommitSale(ctx, domain.Sale{ReceiptID: "r-ok", SoldAt: at, Lines: []domain.CartLine{line(shirt, 2), line(kurti, 1)}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Total.Equal(decimal.NewFromInt(3000)))
	assert.True(t, records[0].Profit.Equal(decimal.NewFromInt(1400)))
	assert.True(t, records[1].Profit.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, at, records[1].SoldAt)

	assert.Equal(t, 48, mustItem(t, s, shirt.ID).Stock)
	assert.Equal(t, 27, mustItem(t, s, kurti.ID).Stock)
}

func TestCommitSaleConcurrentLastUnit(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	jacket := mustItem(t, s, 3)
	_, err := s.AdjustStock(ctx, jacket.ID, -18)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CommitSale(ctx, domain.Sale{ReceiptID: "race", SoldAt: time.Now(), Lines: []domain.CartLine{line(jacket, 1)}})
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrStockConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 0, mustItem(t, s, jacket.ID).Stock)
}

func TestSummarizeSalesUsesHalfOpenWindow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	shirt := mustItem(t, s, 1)
	from := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	for _, sale := range []domain.Sale{
		{ReceiptID: "a", SoldAt: from, Lines: []domain.CartLine{line(shirt, 1), line(shirt, 1)}},
		{ReceiptID: "b", SoldAt: to.Add(-time.Second), Lines: []domain.CartLine{line(shirt, 1)}},
		{ReceiptID: "c", SoldAt: to, Lines: []domain.CartLine{line(shirt, 1)}},
	} {
		_, err := s.CommitSale(ctx, sale)
		require.NoError(t, err)
	}

	summary, err := s.SummarizeSales(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TransactionCount)
	assert.Equal(t, int64(3), summary.LineCount)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(4500)))
	assert.True(t, summary.TotalProfit.Equal(decimal.NewFromInt(2100)))

	empty, err := s.SummarizeSales(ctx, to.Add(time.Hour), to.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.TransactionCount)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.True(t, empty.TotalProfit.IsZero())
}

func TestCommitRestockUpdatesCostAndLedger(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	cost := decimal.NewFromInt(900)

	record, err := s.CommitRestock(ctx, 1, 10, &cost, at)
	require.NoError(t, err)
	assert.True(t, record.PurchasePrice.Equal(cost))

	shirt := mustItem(t, s, 1)
	assert.Equal(t, 60, shirt.Stock)
	assert.True(t, shirt.PurchasePrice.Equal(cost))

	kept, err := s.CommitRestock(ctx, 2, 2, nil, at)
	require.NoError(t, err)
	assert.True(t, kept.PurchasePrice.Equal(decimal.NewFromInt(1000)))

	purchases, err := s.ListPurchases(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, kept.ID, purchases[0].ID)

	_, err = s.CommitRestock(ctx, 99, 1, nil, at)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitRestockRejectsOverflow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	_, err := s.CommitRestock(ctx, 1, math.MaxInt, nil, at)
	var ve *store.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, 50, mustItem(t, s, 1).Stock)

	_, err = s.CommitRestock(ctx, 1, store.MaxStock-49, nil, at)
	require.ErrorIs(t, err, store.ErrValidation)

	purchases, err := s.ListPurchases(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestInventoryStatsCountsLowStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	_, err := s.AdjustStock(ctx, 2, -25)
	require.NoError(t, err)

	total, low, err := s.InventoryStats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(50+3+19), total)
	assert.Equal(t, int64(1), low)
}
