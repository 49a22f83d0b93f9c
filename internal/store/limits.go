package store

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
)

// MaxStock is the largest stock level or quantity the ledger holds, the range
// of its INTEGER columns.
const MaxStock = math.MaxInt32

// MaxAmount is the exclusive upper bound of every money column (NUMERIC(12,2)).
var MaxAmount = decimal.New(1, 10)

// LineAmounts computes the total and profit of one sale line and rejects lines
// whose amounts the ledger cannot hold.
func LineAmounts(line domain.CartLine, cost decimal.Decimal) (total decimal.Decimal, profit decimal.Decimal, err error) {
	qty := decimal.NewFromInt(int64(line.Quantity))
	total = line.UnitPrice.Mul(qty)
	profit = line.UnitPrice.Sub(cost).Mul(qty)
	if total.Abs().GreaterThanOrEqual(MaxAmount) || profit.Abs().GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, decimal.Zero, Invalid("quantity", fmt.Sprintf("line total for %s is too large", line.Name))
	}
	return total, profit, nil
}

// StockHeadroom reports whether delta can be added to stock without leaving
// the range of MaxStock.
func StockHeadroom(stock int, delta int) bool {
	return delta <= MaxStock-stock
}
