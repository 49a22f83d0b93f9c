package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
)

// Repository is the durable ledger behind the service layer. Every method runs
// in its own unit of work; CommitSale and CommitRestock are all-or-nothing.
type Repository interface {
	ListItems(ctx context.Context, filter string) ([]domain.Item, error)
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int) (*domain.Item, error)

	CommitSale(ctx context.Context, sale domain.Sale) ([]domain.SaleRecord, error)
	ListSalesByReceipt(ctx context.Context, receiptID string) ([]domain.SaleRecord, error)
	SummarizeSales(ctx context.Context, from time.Time, to time.Time) (domain.Summary, error)

	CommitRestock(ctx context.Context, itemID int64, quantity int, newCost *decimal.Decimal, at time.Time) (*domain.PurchaseRecord, error)
	ListPurchases(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseRecord, error)

	InventoryStats(ctx context.Context, lowStockThreshold int) (totalStock int64, lowStock int64, err error)

	GetShopProfile(ctx context.Context) (domain.ShopProfile, error)
	UpdateShopProfile(ctx context.Context, profile domain.ShopProfile) error

	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserCredential(ctx context.Context, username string, credential string) error
}
