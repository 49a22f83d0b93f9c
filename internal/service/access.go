package service

import (
	"context"
	"fmt"
	"slices"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

type Operation string

const (
	OpViewCatalog    Operation = "catalog.view"
	OpManageItems    Operation = "items.manage"
	OpAdjustStock    Operation = "items.adjust_stock"
	OpRestock        Operation = "restock"
	OpViewPurchases  Operation = "purchases.view"
	OpUseCart        Operation = "cart.use"
	OpCheckout       Operation = "checkout"
	OpReprintReceipt Operation = "receipts.reprint"
	OpViewReports    Operation = "reports.view"
	OpViewDashboard  Operation = "dashboard.view"
	OpViewSettings   Operation = "settings.view"
	OpUpdateSettings Operation = "settings.update"
)

var permissions = map[Operation][]domain.Role{
	OpViewCatalog:    {domain.RoleAdmin, domain.RoleStaff},
	OpManageItems:    {domain.RoleAdmin},
	OpAdjustStock:    {domain.RoleAdmin},
	OpRestock:        {domain.RoleAdmin},
	OpViewPurchases:  {domain.RoleAdmin},
	OpUseCart:        {domain.RoleStaff},
	OpCheckout:       {domain.RoleStaff},
	OpReprintReceipt: {domain.RoleAdmin},
	OpViewReports:    {domain.RoleAdmin},
	OpViewDashboard:  {domain.RoleAdmin, domain.RoleStaff},
	OpViewSettings:   {domain.RoleAdmin, domain.RoleStaff},
	OpUpdateSettings: {domain.RoleAdmin},
}

// Permitted reports whether role may invoke op. Unknown operations are denied.
func Permitted(role domain.Role, op Operation) bool {
	return slices.Contains(permissions[op], role)
}

// Operations lists every gated operation in a stable order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(permissions))
	for op := range permissions {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

func (s *Service) authorize(ctx context.Context, op Operation) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%s: no authenticated user: %w", op, store.ErrForbidden)
	}
	if !Permitted(actor.Role, op) {
		return domain.Actor{}, fmt.Errorf("%s as %s: %w", op, actor.Role, store.ErrForbidden)
	}
	return actor, nil
}
