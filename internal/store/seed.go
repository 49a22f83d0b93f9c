package store

import (
	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
)

const (
	DefaultAdminPassword = "admin123"
	DefaultStaffPassword = "staff123"
)

type SeedUser struct {
	Username string
	Password string
	Role     domain.Role
}

// Seed is the content written on first initialization of an empty store.
type Seed struct {
	Users []SeedUser
	Shop  domain.ShopProfile
	Items []domain.Item
}

// DefaultSeed returns the demo shop. Empty passwords fall back to the
// development defaults.
func DefaultSeed(adminPassword string, staffPassword string) Seed {
	if adminPassword == "" {
		adminPassword = DefaultAdminPassword
	}
	if staffPassword == "" {
		staffPassword = DefaultStaffPassword
	}
	return Seed{
		Users: []SeedUser{
			{Username: "admin", Password: adminPassword, Role: domain.RoleAdmin},
			{Username: "staff", Password: staffPassword, Role: domain.RoleStaff},
		},
		Shop: domain.ShopProfile{
			Name:    "Dolmen Clothes",
			Address: "123 Market St",
			Phone:   "0300-1234567",
			Terms:   "No Returns",
		},
		Items: []domain.Item{
			{Name: "Men Formal Shirt", Category: "Men", Season: "Summer", PurchasePrice: decimal.NewFromInt(800), SalePrice: decimal.NewFromInt(1500), Stock: 50},
			{Name: "Women Kurti", Category: "Women", Season: "Summer", PurchasePrice: decimal.NewFromInt(1000), SalePrice: decimal.NewFromInt(1800), Stock: 28},
			{Name: "Kids Winter Jacket", Category: "Kids", Season: "Winter", PurchasePrice: decimal.NewFromInt(1200), SalePrice: decimal.NewFromInt(2500), Stock: 19},
		},
	}
}
