package billing

import (
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/money"
)

// TotalLine is the price/quantity pair fed to the totals calculation.
type TotalLine struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Totals carries the computed components of a bill. Only Total is rounded;
// the intermediate figures stay exact so downstream proration can reuse them.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives subtotal, discount, tax and the rounded total from the
// ordered line sequence. Preconditions (percentages within [0,100], sane
// quantities) are the caller's responsibility; no validation happens here.
func ComputeTotals(lines []TotalLine, discountPercent, taxPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	discount := money.Percent(subtotal, discountPercent)
	afterDiscount := subtotal.Sub(discount)
	tax := money.Percent(afterDiscount, taxPercent)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    money.Round2(afterDiscount.Add(tax)),
	}
}
