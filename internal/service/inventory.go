package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
	"dolmen/pos/internal/validate"
)

// FindItems returns items whose name contains filter, case-insensitively,
// newest first. An empty filter returns every item.
func (s *Service) FindItems(ctx context.Context, filter string) ([]domain.Item, error) {
	if _, err := s.authorize(ctx, OpViewCatalog); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, filter)
}

// SaleableItems is FindItems restricted to items with stock on hand.
func (s *Service) SaleableItems(ctx context.Context, filter string) ([]domain.Item, error) {
	items, err := s.FindItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	saleable := items[:0]
	for _, item := range items {
		if item.Stock > 0 {
			saleable = append(saleable, item)
		}
	}
	return saleable, nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	if _, err := s.authorize(ctx, OpViewCatalog); err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, in domain.ItemInput) (domain.Item, error) {
	actor, err := s.authorize(ctx, OpManageItems)
	if err != nil {
		return domain.Item{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Season = strings.TrimSpace(in.Season)
	if err := validate.Struct(in); err != nil {
		return domain.Item{}, err
	}

	item := domain.Item{Name: in.Name, Category: in.Category, Season: in.Season}
	if item.PurchasePrice, err = validate.Money("purchase_price", in.PurchasePrice); err != nil {
		return domain.Item{}, err
	}
	if item.SalePrice, err = validate.Money("sale_price", in.SalePrice); err != nil {
		return domain.Item{}, err
	}
	if item.Stock, err = validate.Count("stock", in.Stock); err != nil {
		return domain.Item{}, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}
	log.Info().Str("actor", actor.Username).Int64("item_id", created.ID).Str("name", created.Name).Msg("item created")
	return *created, nil
}

// UpdateItem applies the fields present in patch and keeps the rest.
func (s *Service) UpdateItem(ctx context.Context, id int64, patch domain.ItemPatch) (domain.Item, error) {
	actor, err := s.authorize(ctx, OpManageItems)
	if err != nil {
		return domain.Item{}, err
	}
	if err := validate.Struct(patch); err != nil {
		return domain.Item{}, err
	}

	existing, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	item := *existing
	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
		if item.Name == "" {
			return domain.Item{}, store.Invalid("name", "is required")
		}
	}
	if patch.Category != nil {
		item.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Season != nil {
		item.Season = strings.TrimSpace(*patch.Season)
	}
	if patch.PurchasePrice != nil {
		if item.PurchasePrice, err = validate.Money("purchase_price", *patch.PurchasePrice); err != nil {
			return domain.Item{}, err
		}
	}
	if patch.SalePrice != nil {
		if item.SalePrice, err = validate.Money("sale_price", *patch.SalePrice); err != nil {
			return domain.Item{}, err
		}
	}
	if patch.Stock != nil {
		if item.Stock, err = validate.Count("stock", *patch.Stock); err != nil {
			return domain.Item{}, err
		}
	}

	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}
	log.Info().Str("actor", actor.Username).Int64("item_id", id).Msg("item updated")
	return *updated, nil
}

// DeleteItem removes the item. Ledger rows that reference it are kept and
// report the item as unknown.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	actor, err := s.authorize(ctx, OpManageItems)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	log.Info().Str("actor", actor.Username).Int64("item_id", id).Msg("item deleted")
	return nil
}

// AdjustStock applies delta to the item's stock. The store rejects a result
// below zero with a stock conflict.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (domain.Item, error) {
	actor, err := s.authorize(ctx, OpAdjustStock)
	if err != nil {
		return domain.Item{}, err
	}
	if delta == 0 {
		return domain.Item{}, store.Invalid("delta", "must not be zero")
	}
	item, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return domain.Item{}, fmt.Errorf("adjust stock: %w", err)
	}
	log.Info().Str("actor", actor.Username).Int64("item_id", id).Int("delta", delta).Int("stock", item.Stock).Msg("stock adjusted")
	return *item, nil
}
