package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

type Catalog interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
}

// Cart is one session's pending sale. The add-time stock check is advisory;
// checkout re-validates against fresh stock.
type Cart struct {
	mu    sync.Mutex
	lines []domain.CartLine
}

func New() *Cart {
	return &Cart{}
}

// AddLine appends a line for itemID, capturing its current name and sale
// price. Adding the same item twice yields two lines.
func (c *Cart) AddLine(ctx context.Context, catalog Catalog, itemID int64, quantity int) (domain.CartLine, error) {
	if quantity < 1 {
		return domain.CartLine{}, store.Invalid("quantity", "must be at least 1")
	}
	item, err := catalog.GetItem(ctx, itemID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("add line: %w", err)
	}
	if quantity > item.Stock {
		return domain.CartLine{}, store.Invalid("quantity", fmt.Sprintf("only %d of %s in stock", item.Stock, item.Name))
	}

	line := domain.CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: item.SalePrice,
		LineTotal: item.SalePrice.Mul(decimal.NewFromInt(int64(quantity))),
	}

	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return line, nil
}

func (c *Cart) RemoveLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lines) {
		return store.Invalid("index", fmt.Sprintf("no cart line %d", index))
	}
	c.lines = slices.Delete(c.lines, index, index+1)
	return nil
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Take empties the cart and returns what it held. A checkout owns the taken
// lines, so a second checkout on the same cart sees an empty cart.
func (c *Cart) Take() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	c.lines = nil
	return lines
}

// Restore puts taken lines back ahead of anything added since Take.
func (c *Cart) Restore(lines []domain.CartLine) {
	if len(lines) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(slices.Clone(lines), c.lines...)
}

func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) GrandTotal() decimal.Decimal {
	return Total(c.Lines())
}

func Total(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total
}
