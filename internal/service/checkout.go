package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"dolmen/pos/internal/cart"
	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
	"dolmen/pos/internal/xid"
)

var fallbackShop = domain.ShopProfile{Name: "Point of Sale"}

func (s *Service) AddToCart(ctx context.Context, c *cart.Cart, itemID int64, quantity int) (domain.CartLine, error) {
	if _, err := s.authorize(ctx, OpUseCart); err != nil {
		return domain.CartLine{}, err
	}
	return c.AddLine(ctx, s.repo, itemID, quantity)
}

func (s *Service) RemoveFromCart(ctx context.Context, c *cart.Cart, index int) error {
	if _, err := s.authorize(ctx, OpUseCart); err != nil {
		return err
	}
	return c.RemoveLine(index)
}

func (s *Service) ClearCart(ctx context.Context, c *cart.Cart) error {
	if _, err := s.authorize(ctx, OpUseCart); err != nil {
		return err
	}
	c.Clear()
	return nil
}

func (s *Service) ViewCart(ctx context.Context, c *cart.Cart) ([]domain.CartLine, decimal.Decimal, error) {
	if _, err := s.authorize(ctx, OpUseCart); err != nil {
		return nil, decimal.Zero, err
	}
	lines := c.Lines()
	return lines, cart.Total(lines), nil
}

// Checkout commits the cart as one sale. The lines are taken out of the cart
// for the duration of the commit, so concurrent checkouts of one cart sell it
// once. Stock is re-validated inside the commit; on any error nothing is
// written and the lines go back into the cart. A receipt that cannot be
// written is reported in the result without undoing the sale.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart) (domain.CheckoutResult, error) {
	actor, err := s.authorize(ctx, OpCheckout)
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	lines := c.Take()
	if len(lines) == 0 {
		return domain.CheckoutResult{}, store.ErrEmptyCart
	}

	soldAt := s.now().In(s.loc)
	seq, err := s.seq.Next(ctx)
	if err != nil {
		c.Restore(lines)
		return domain.CheckoutResult{}, store.Storage("receipt sequence", err)
	}
	receiptID := xid.Receipt(soldAt, seq)

	records, err := s.repo.CommitSale(ctx, domain.Sale{ReceiptID: receiptID, SoldAt: soldAt, Lines: lines})
	if err != nil {
		c.Restore(lines)
		log.Warn().Err(err).Str("actor", actor.Username).Str("receipt_id", receiptID).Msg("checkout rejected")
		return domain.CheckoutResult{}, fmt.Errorf("checkout: %w", err)
	}

	result := domain.CheckoutResult{
		ReceiptID:   receiptID,
		SoldAt:      soldAt,
		Records:     records,
		GrandTotal:  decimal.Zero,
		TotalProfit: decimal.Zero,
	}
	for _, record := range records {
		result.GrandTotal = result.GrandTotal.Add(record.Total)
		result.TotalProfit = result.TotalProfit.Add(record.Profit)
	}

	path, err := s.writeReceipt(ctx, receiptID, soldAt, records)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", receiptID).Msg("sale committed but receipt was not written")
		result.ReceiptError = err.Error()
	}
	result.ReceiptPath = path

	log.Info().
		Str("actor", actor.Username).
		Str("receipt_id", receiptID).
		Int("lines", len(records)).
		Str("total", result.GrandTotal.StringFixed(2)).
		Msg("checkout committed")
	return result, nil
}

// ReprintReceipt rebuilds the receipt artifact from the ledger rows of a past
// sale and writes it again.
func (s *Service) ReprintReceipt(ctx context.Context, receiptID string) (string, error) {
	if _, err := s.authorize(ctx, OpReprintReceipt); err != nil {
		return "", err
	}
	if !xid.ValidReceipt(receiptID) {
		return "", store.Invalid("receipt_id", "malformed")
	}
	records, err := s.repo.ListSalesByReceipt(ctx, receiptID)
	if err != nil {
		return "", err
	}
	return s.writeReceipt(ctx, receiptID, records[0].SoldAt.In(s.loc), records)
}

func (s *Service) writeReceipt(ctx context.Context, receiptID string, issuedAt time.Time, records []domain.SaleRecord) (string, error) {
	if s.receipts == nil {
		return "", errors.New("no receipt writer configured")
	}
	shop, err := s.repo.GetShopProfile(ctx)
	if err != nil || shop.Name == "" {
		log.Warn().Err(err).Str("receipt_id", receiptID).Msg("shop profile unavailable, using generic receipt header")
		shop = fallbackShop
	}
	r := receiptFor(shop, receiptID, records)
	r.IssuedAt = issuedAt
	return s.receipts.Write(r)
}

func receiptFor(shop domain.ShopProfile, receiptID string, records []domain.SaleRecord) domain.Receipt {
	r := domain.Receipt{ID: receiptID, Shop: shop, GrandTotal: decimal.Zero}
	for _, record := range records {
		r.Lines = append(r.Lines, domain.CartLine{
			ItemID:    record.ItemID,
			Name:      record.ItemName,
			Quantity:  record.Quantity,
			UnitPrice: record.SalePrice,
			LineTotal: record.Total,
		})
		r.GrandTotal = r.GrandTotal.Add(record.Total)
	}
	return r
}
