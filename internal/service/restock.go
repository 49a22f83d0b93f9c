package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
	"dolmen/pos/internal/validate"
)

// Restock records a purchase: stock grows by the quantity, the cost price is
// replaced when a new one is given, and one purchase row is appended. All
// three happen in one transaction.
func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) (domain.PurchaseRecord, error) {
	actor, err := s.authorize(ctx, OpRestock)
	if err != nil {
		return domain.PurchaseRecord{}, err
	}

	req.NewCostPrice = strings.TrimSpace(req.NewCostPrice)
	if err := validate.Struct(req); err != nil {
		return domain.PurchaseRecord{}, err
	}

	var newCost *decimal.Decimal
	if req.NewCostPrice != "" {
		cost, err := validate.Money("new_cost_price", req.NewCostPrice)
		if err != nil {
			return domain.PurchaseRecord{}, err
		}
		newCost = &cost
	}

	record, err := s.repo.CommitRestock(ctx, req.ItemID, req.Quantity, newCost, s.now().In(s.loc))
	if errors.Is(err, store.ErrNotFound) {
		return domain.PurchaseRecord{}, &store.ValidationError{Field: "item_id", Reason: "unknown item", Err: err}
	}
	if err != nil {
		return domain.PurchaseRecord{}, err
	}

	log.Info().
		Str("actor", actor.Username).
		Int64("item_id", req.ItemID).
		Int("quantity", req.Quantity).
		Str("cost", record.PurchasePrice.StringFixed(2)).
		Msg("restock recorded")
	return *record, nil
}

// ListPurchases returns purchase rows recorded in [from, to), newest first.
func (s *Service) ListPurchases(ctx context.Context, from time.Time, to time.Time) ([]domain.PurchaseRecord, error) {
	if _, err := s.authorize(ctx, OpViewPurchases); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, store.Invalid("to", "must be after from")
	}
	return s.repo.ListPurchases(ctx, from, to)
}
