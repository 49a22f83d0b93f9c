package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

const maxTxAttempts = 4

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListItems(ctx context.Context, filter string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, season, purchase_price, sale_price, stock
		FROM items
		WHERE $1::text = '' OR name ILIKE '%' || $1::text || '%'
		ORDER BY id DESC
	`, escapeLike(strings.TrimSpace(filter)))
	if err != nil {
		return nil, store.Storage("list items", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.Season, &item.PurchasePrice, &item.SalePrice, &item.Stock); err != nil {
			return nil, store.Storage("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Storage("list items", err)
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, name, category, season, purchase_price, sale_price, stock
		FROM items
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, store.Storage("get item", err)
	}
	return item, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if err := insertItem(ctx, s.db, &item); err != nil {
		return nil, store.Storage("create item", classify(err))
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	updated, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE items
		SET name = $2, category = $3, season = $4, purchase_price = $5, sale_price = $6, stock = $7
		WHERE id = $1
		RETURNING id, name, category, season, purchase_price, sale_price, stock
	`, item.ID, item.Name, item.Category, item.Season, item.PurchasePrice, item.SalePrice, item.Stock))
	if err != nil {
		return nil, store.Storage("update item", classify(err))
	}
	return updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return store.Storage("delete item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Storage("delete item", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Item, error) {
	if delta > store.MaxStock || delta < -store.MaxStock {
		return nil, store.Invalid("delta", fmt.Sprintf("must be within %d", store.MaxStock))
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE items
		SET stock = stock + $2
		WHERE id = $1
		RETURNING id, name, category, season, purchase_price, sale_price, stock
	`, id, delta))
	if err == nil {
		return item, nil
	}
	if isOutOfRange(err) {
		return nil, store.Invalid("delta", fmt.Sprintf("stock would exceed %d", store.MaxStock))
	}
	if !isCheckViolation(err) {
		return nil, store.Storage("adjust stock", err)
	}

	current, getErr := s.GetItem(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &store.StockConflictError{ItemID: id, Name: current.Name, Requested: -delta, Available: current.Stock}
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) ([]domain.SaleRecord, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	var records []domain.SaleRecord
	err := s.serializable(ctx, "commit sale", func(tx *sql.Tx) error {
		var err error
		records, err = commitSale(ctx, tx, sale)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

type lockedItem struct {
	name  string
	cost  decimal.Decimal
	stock int
}

func commitSale(ctx context.Context, tx *sql.Tx, sale domain.Sale) ([]domain.SaleRecord, error) {
	ids := make([]int64, 0, len(sale.Lines))
	seen := make(map[int64]bool, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.Invalid("quantity", "must be at least 1")
		}
		if !seen[line.ItemID] {
			seen[line.ItemID] = true
			ids = append(ids, line.ItemID)
		}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, purchase_price, stock
		FROM items
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	locked := make(map[int64]*lockedItem, len(ids))
	for rows.Next() {
		var id int64
		item := &lockedItem{}
		if err := rows.Scan(&id, &item.name, &item.cost, &item.stock); err != nil {
			_ = rows.Close()
			return nil, err
		}
		locked[id] = item
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	taken := make(map[int64]int, len(ids))
	for _, line := range sale.Lines {
		item, ok := locked[line.ItemID]
		if !ok {
			return nil, &store.StockConflictError{ItemID: line.ItemID, Name: line.Name, Requested: line.Quantity}
		}
		remaining := item.stock - taken[line.ItemID]
		if remaining < line.Quantity {
			return nil, &store.StockConflictError{ItemID: line.ItemID, Name: item.name, Requested: line.Quantity, Available: remaining}
		}
		if _, _, err := store.LineAmounts(line, item.cost); err != nil {
			return nil, err
		}
		taken[line.ItemID] += line.Quantity
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET stock = stock - $2 WHERE id = $1`, id, taken[id]); err != nil {
			return nil, err
		}
	}

	records := make([]domain.SaleRecord, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		item := locked[line.ItemID]
		total, profit, _ := store.LineAmounts(line, item.cost)
		record := domain.SaleRecord{
			ReceiptID: sale.ReceiptID,
			ItemID:    line.ItemID,
			ItemName:  item.name,
			Quantity:  line.Quantity,
			SalePrice: line.UnitPrice,
			Profit:    profit,
			Total:     total,
			SoldAt:    sale.SoldAt,
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO sales (receipt_id, item_id, quantity, sale_price, profit, total, sold_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, record.ReceiptID, record.ItemID, record.Quantity, record.SalePrice, record.Profit, record.Total, record.SoldAt).Scan(&record.ID); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store) ListSalesByReceipt(ctx context.Context, receiptID string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.receipt_id, s.item_id, COALESCE(i.name, $2), s.quantity, s.sale_price, s.profit, s.total, s.sold_at
		FROM sales s
		LEFT JOIN items i ON i.id = s.item_id
		WHERE s.receipt_id = $1
		ORDER BY s.id
	`, receiptID, domain.UnknownItemName)
	if err != nil {
		return nil, store.Storage("list sales", err)
	}
	defer rows.Close()

	records := make([]domain.SaleRecord, 0, 8)
	for rows.Next() {
		var r domain.SaleRecord
		if err := rows.Scan(&r.ID, &r.ReceiptID, &r.ItemID, &r.ItemName, &r.Quantity, &r.SalePrice, &r.Profit, &r.Total, &r.SoldAt); err != nil {
			return nil, store.Storage("list sales", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Storage("list sales", err)
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	return records, nil
}

func (s *Store) SummarizeSales(ctx context.Context, from time.Time, to time.Time) (domain.Summary, error) {
	summary := domain.Summary{From: from, To: to}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT receipt_id), COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(profit), 0)
		FROM sales
		WHERE sold_at >= $1 AND sold_at < $2
	`, from, to).Scan(&summary.TransactionCount, &summary.LineCount, &summary.TotalRevenue, &summary.TotalProfit)
	if err != nil {
		return domain.Summary{}, store.Storage("summarize sales", err)
	}
	return summary, nil
}

func (s *Store) CommitRestock(ctx context.Context, itemID int64, quantity int, newCost *decimal.Decimal, at time.Time) (*domain.PurchaseRecord, error) {
	if quantity < 1 {
		return nil, store.Invalid("quantity", "must be at least 1")
	}
	if quantity > store.MaxStock {
		return nil, store.Invalid("quantity", fmt.Sprintf("must be at most %d", store.MaxStock))
	}

	var record domain.PurchaseRecord
	err := s.serializable(ctx, "commit restock", func(tx *sql.Tx) error {
		var cost any
		if newCost != nil {
			cost = *newCost
		}
		record = domain.PurchaseRecord{ItemID: itemID, Quantity: quantity, PurchasedAt: at}
		err := tx.QueryRowContext(ctx, `
			UPDATE items
			SET stock = stock + $2, purchase_price = COALESCE($3::numeric, purchase_price)
			WHERE id = $1
			RETURNING name, purchase_price
		`, itemID, quantity, cost).Scan(&record.ItemName, &record.PurchasePrice)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if isOutOfRange(err) {
			return store.Invalid("quantity", fmt.Sprintf("stock would exceed %d", store.MaxStock))
		}
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO purchases (item_id, quantity, purchase_price, purchased_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, itemID, quantity, record.PurchasePrice, at).Scan(&record.ID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) ListPurchases(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.item_id, COALESCE(i.name, $3), p.quantity, p.purchase_price, p.purchased_at
		FROM purchases p
		LEFT JOIN items i ON i.id = p.item_id
		WHERE p.purchased_at >= $1 AND p.purchased_at < $2
		ORDER BY p.id DESC
	`, from, to, domain.UnknownItemName)
	if err != nil {
		return nil, store.Storage("list purchases", err)
	}
	defer rows.Close()

	records := make([]domain.PurchaseRecord, 0, 16)
	for rows.Next() {
		var r domain.PurchaseRecord
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ItemName, &r.Quantity, &r.PurchasePrice, &r.PurchasedAt); err != nil {
			return nil, store.Storage("list purchases", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Storage("list purchases", err)
	}
	return records, nil
}

func (s *Store) InventoryStats(ctx context.Context, lowStockThreshold int) (int64, int64, error) {
	var total, low int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(stock), 0), COUNT(*) FILTER (WHERE stock <= $1)
		FROM items
	`, lowStockThreshold).Scan(&total, &low)
	if err != nil {
		return 0, 0, store.Storage("inventory stats", err)
	}
	return total, low, nil
}

func (s *Store) GetShopProfile(ctx context.Context) (domain.ShopProfile, error) {
	var p domain.ShopProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT name, address, phone, terms FROM shop_profile WHERE id = 1
	`).Scan(&p.Name, &p.Address, &p.Phone, &p.Terms)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ShopProfile{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ShopProfile{}, store.Storage("get shop profile", err)
	}
	return p, nil
}

func (s *Store) UpdateShopProfile(ctx context.Context, p domain.ShopProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shop_profile (id, name, address, phone, terms)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone, terms = EXCLUDED.terms
	`, p.Name, p.Address, p.Phone, p.Terms)
	return store.Storage("update shop profile", err)
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, credential, role FROM users WHERE username = $1
	`, username).Scan(&u.Username, &u.Credential, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Storage("get user", err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, credential, role FROM users ORDER BY username`)
	if err != nil {
		return nil, store.Storage("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 4)
	for rows.Next() {
		var u domain.UserAccount
		var role string
		if err := rows.Scan(&u.Username, &u.Credential, &role); err != nil {
			return nil, store.Storage("list users", err)
		}
		u.Role = domain.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Storage("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserCredential(ctx context.Context, username string, credential string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET credential = $2 WHERE username = $1`, username, credential)
	if err != nil {
		return store.Storage("update credential", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Storage("update credential", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// serializable runs fn in a SERIALIZABLE transaction, retrying when postgres
// aborts it with a serialization failure. A retried attempt re-reads stock, so
// the loser of a race reports a stock conflict rather than a storage error.
func (s *Store) serializable(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isSerializationFailure(err) {
			break
		}
		select {
		case <-ctx.Done():
			return store.Storage(op, ctx.Err())
		case <-time.After(time.Duration(attempt*attempt) * 5 * time.Millisecond):
		}
	}
	return store.Storage(op, classify(err))
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItem(ctx context.Context, q execQuerier, item *domain.Item) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO items (name, category, season, purchase_price, sale_price, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, item.Name, item.Category, item.Season, item.PurchasePrice, item.SalePrice, item.Stock).Scan(&item.ID)
}

func scanItem(row *sql.Row) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Season, &item.PurchasePrice, &item.SalePrice, &item.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// classify turns constraint violations into validation errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return &store.ValidationError{Field: pgErr.ConstraintName, Reason: "violates constraint", Err: err}
	}
	return err
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}

// isOutOfRange matches integer and numeric overflow (22003).
func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22003"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func escapeLike(filter string) string {
	out := make([]rune, 0, len(filter))
	for _, r := range filter {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

var _ store.Repository = (*Store)(nil)
