package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// UnknownItemName is displayed for ledger rows whose item has since been deleted.
const UnknownItemName = "unknown item"

type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Season        string          `json:"season"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
}

// ItemInput carries item fields as typed by an operator. Prices and stock are
// parsed after validation so malformed text can be reported per field.
type ItemInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	Category      string `json:"category" validate:"max=60"`
	Season        string `json:"season" validate:"max=60"`
	PurchasePrice string `json:"purchase_price" validate:"required,money"`
	SalePrice     string `json:"sale_price" validate:"required,money"`
	Stock         string `json:"stock" validate:"required,count"`
}

type ItemPatch struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Category      *string `json:"category,omitempty" validate:"omitempty,max=60"`
	Season        *string `json:"season,omitempty" validate:"omitempty,max=60"`
	PurchasePrice *string `json:"purchase_price,omitempty" validate:"omitempty,money"`
	SalePrice     *string `json:"sale_price,omitempty" validate:"omitempty,money"`
	Stock         *string `json:"stock,omitempty" validate:"omitempty,count"`
}

type CartLine struct {
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Sale is one checkout handed to the store for an atomic commit.
type Sale struct {
	ReceiptID string
	SoldAt    time.Time
	Lines     []CartLine
}

type SaleRecord struct {
	ID        int64           `json:"id"`
	ReceiptID string          `json:"receipt_id"`
	ItemID    int64           `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Profit    decimal.Decimal `json:"profit"`
	Total     decimal.Decimal `json:"total"`
	SoldAt    time.Time       `json:"sold_at"`
}

type PurchaseRecord struct {
	ID            int64           `json:"id"`
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}

type RestockRequest struct {
	ItemID       int64  `json:"item_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,gt=0,lte=2147483647"`
	NewCostPrice string `json:"new_cost_price,omitempty" validate:"omitempty,money"`
}

type StockAdjustment struct {
	Delta int `json:"delta"`
}

type ShopProfile struct {
	Name    string `json:"name" validate:"required,max=120"`
	Address string `json:"address" validate:"max=240"`
	Phone   string `json:"phone" validate:"max=40"`
	Terms   string `json:"terms" validate:"max=240"`
}

type UserAccount struct {
	Username   string `json:"username"`
	Credential string `json:"-"`
	Role       Role   `json:"role"`
}

type Actor struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Summary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TransactionCount int64           `json:"transaction_count"`
	LineCount        int64           `json:"line_count"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
}

type DashboardStats struct {
	TotalStock        int64           `json:"total_stock"`
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	LowStockItems     int64           `json:"low_stock_items"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

type Receipt struct {
	ID         string          `json:"receipt_id"`
	Shop       ShopProfile     `json:"shop"`
	IssuedAt   time.Time       `json:"issued_at"`
	Lines      []CartLine      `json:"lines"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type CheckoutResult struct {
	ReceiptID    string          `json:"receipt_id"`
	SoldAt       time.Time       `json:"sold_at"`
	Records      []SaleRecord    `json:"records"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	ReceiptPath  string          `json:"receipt_path,omitempty"`
	ReceiptError string          `json:"receipt_error,omitempty"`
}
