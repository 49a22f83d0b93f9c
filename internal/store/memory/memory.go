package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

// Store keeps the ledger in process. One write lock covers validation and
// mutation, which gives CommitSale the same serial guarantee as the postgres store.
type Store struct {
	mu             sync.RWMutex
	items          map[int64]domain.Item
	nextItemID     int64
	sales          []domain.SaleRecord
	nextSaleID     int64
	purchases      []domain.PurchaseRecord
	nextPurchaseID int64
	shop           domain.ShopProfile
	users          map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		items: make(map[int64]domain.Item),
		users: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store loaded with the demo shop and the default users.
func NewSeeded() *Store {
	s, err := NewWithSeed(store.DefaultSeed("", ""))
	if err != nil {
		panic(fmt.Sprintf("memory store seed: %v", err))
	}
	return s
}

func NewWithSeed(seed store.Seed) (*Store, error) {
	s := New()
	for _, u := range seed.Users {
		hash, err := store.HashCredential(u.Password)
		if err != nil {
			return nil, fmt.Errorf("hash seed credential for %s: %w", u.Username, err)
		}
		s.users[u.Username] = domain.UserAccount{Username: u.Username, Credential: hash, Role: u.Role}
	}
	s.shop = seed.Shop
	for _, item := range seed.Items {
		s.nextItemID++
		item.ID = s.nextItemID
		s.items[item.ID] = item
	}
	return s, nil
}

// PutUser stores an account exactly as given, including legacy plain-text credentials.
func (s *Store) PutUser(user domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
}

func (s *Store) ListItems(_ context.Context, filter string) ([]domain.Item, error) {
	needle := strings.ToLower(strings.TrimSpace(filter))

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		result = append(result, item)
	}
	slices.SortFunc(result, func(a, b domain.Item) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if err := checkItem(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	if err := checkItem(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id int64, delta int) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if delta < -item.Stock {
		return nil, &store.StockConflictError{ItemID: id, Name: item.Name, Requested: -delta, Available: item.Stock}
	}
	if !store.StockHeadroom(item.Stock, delta) {
		return nil, store.Invalid("delta", fmt.Sprintf("stock of %s would exceed %d", item.Name, store.MaxStock))
	}
	item.Stock += delta
	s.items[id] = item
	return &item, nil
}

func (s *Store) CommitSale(_ context.Context, sale domain.Sale) ([]domain.SaleRecord, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against a copy of the affected rows; nothing is applied until every
	// line has been checked.
	staged := make(map[int64]domain.Item, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.Invalid("quantity", "must be at least 1")
		}
		item, ok := staged[line.ItemID]
		if !ok {
			item, ok = s.items[line.ItemID]
			if !ok {
				return nil, &store.StockConflictError{ItemID: line.ItemID, Name: line.Name, Requested: line.Quantity}
			}
		}
		if item.Stock < line.Quantity {
			return nil, &store.StockConflictError{ItemID: item.ID, Name: item.Name, Requested: line.Quantity, Available: item.Stock}
		}
		if _, _, err := store.LineAmounts(line, item.PurchasePrice); err != nil {
			return nil, err
		}
		item.Stock -= line.Quantity
		staged[item.ID] = item
	}

	records := make([]domain.SaleRecord, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		item := staged[line.ItemID]
		total, profit, _ := store.LineAmounts(line, item.PurchasePrice)
		s.nextSaleID++
		records = append(records, domain.SaleRecord{
			ID:        s.nextSaleID,
			ReceiptID: sale.ReceiptID,
			ItemID:    item.ID,
			ItemName:  item.Name,
			Quantity:  line.Quantity,
			SalePrice: line.UnitPrice,
			Profit:    profit,
			Total:     total,
			SoldAt:    sale.SoldAt,
		})
	}
	for id, item := range staged {
		s.items[id] = item
	}
	s.sales = append(s.sales, records...)
	return slices.Clone(records), nil
}

func (s *Store) ListSalesByReceipt(_ context.Context, receiptID string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SaleRecord, 0, 4)
	for _, record := range s.sales {
		if record.ReceiptID != receiptID {
			continue
		}
		record.ItemName = domain.UnknownItemName
		if item, ok := s.items[record.ItemID]; ok {
			record.ItemName = item.Name
		}
		result = append(result, record)
	}
	if len(result) == 0 {
		return nil, store.ErrNotFound
	}
	return result, nil
}

func (s *Store) SummarizeSales(_ context.Context, from time.Time, to time.Time) (domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.Summary{From: from, To: to, TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero}
	receipts := make(map[string]struct{})
	for _, record := range s.sales {
		if record.SoldAt.Before(from) || !record.SoldAt.Before(to) {
			continue
		}
		receipts[record.ReceiptID] = struct{}{}
		summary.LineCount++
		summary.TotalRevenue = summary.TotalRevenue.Add(record.Total)
		summary.TotalProfit = summary.TotalProfit.Add(record.Profit)
	}
	summary.TransactionCount = int64(len(receipts))
	return summary, nil
}

func (s *Store) CommitRestock(_ context.Context, itemID int64, quantity int, newCost *decimal.Decimal, at time.Time) (*domain.PurchaseRecord, error) {
	if quantity < 1 {
		return nil, store.Invalid("quantity", "must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !store.StockHeadroom(item.Stock, quantity) {
		return nil, store.Invalid("quantity", fmt.Sprintf("stock of %s would exceed %d", item.Name, store.MaxStock))
	}
	if newCost != nil {
		item.PurchasePrice = *newCost
	}
	item.Stock += quantity
	s.items[itemID] = item

	s.nextPurchaseID++
	record := domain.PurchaseRecord{
		ID:            s.nextPurchaseID,
		ItemID:        itemID,
		ItemName:      item.Name,
		Quantity:      quantity,
		PurchasePrice: item.PurchasePrice,
		PurchasedAt:   at,
	}
	s.purchases = append(s.purchases, record)
	return &record, nil
}

func (s *Store) ListPurchases(_ context.Context, from time.Time, to time.Time) ([]domain.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PurchaseRecord, 0, 16)
	for _, record := range s.purchases {
		if record.PurchasedAt.Before(from) || !record.PurchasedAt.Before(to) {
			continue
		}
		record.ItemName = domain.UnknownItemName
		if item, ok := s.items[record.ItemID]; ok {
			record.ItemName = item.Name
		}
		result = append(result, record)
	}
	slices.SortFunc(result, func(a, b domain.PurchaseRecord) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) InventoryStats(_ context.Context, lowStockThreshold int) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, low int64
	for _, item := range s.items {
		total += int64(item.Stock)
		if item.Stock <= lowStockThreshold {
			low++
		}
	}
	return total, low, nil
}

func (s *Store) GetShopProfile(_ context.Context) (domain.ShopProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shop, nil
}

func (s *Store) UpdateShopProfile(_ context.Context, profile domain.ShopProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shop = profile
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		result = append(result, user)
	}
	slices.SortFunc(result, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return result, nil
}

func (s *Store) UpdateUserCredential(_ context.Context, username string, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Credential = credential
	s.users[username] = user
	return nil
}

// checkItem mirrors the CHECK constraints of the postgres schema.
func checkItem(item domain.Item) error {
	if strings.TrimSpace(item.Name) == "" {
		return store.Invalid("name", "is required")
	}
	if item.Stock < 0 {
		return store.Invalid("stock", "must not be negative")
	}
	if item.Stock > store.MaxStock {
		return store.Invalid("stock", fmt.Sprintf("must be at most %d", store.MaxStock))
	}
	if item.PurchasePrice.IsNegative() {
		return store.Invalid("purchase_price", "must not be negative")
	}
	if item.SalePrice.IsNegative() {
		return store.Invalid("sale_price", "must not be negative")
	}
	return nil
}
