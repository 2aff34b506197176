// Package returns implements return and exchange valuation against finalized
// bills: prorating each line's charged share through the bill's discount, tax
// and manual-override footprint, and reconciling full returns to the stored
// final total without rounding leakage.
package returns

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/money"
)

// ErrInconsistentTotals signals that the per-line refund values failed to sum
// to the reconciliation target after absorption. This is a programming defect,
// never a user error; callers log it as fatal instead of swallowing it.
var ErrInconsistentTotals = errors.New("per-line refund values do not reconcile with the bill final total")

// Pricing is the proration context of a source bill. Factor scales each
// line's formula share so the whole bill maps onto the stored final total
// (which can diverge from the computed one through a manual override).
type Pricing struct {
	DiscountPercent decimal.Decimal
	TaxPercent      decimal.Decimal
	Factor          decimal.Decimal
}

// NewPricing derives the proration context from a bill's percentages and its
// computed vs. stored totals.
func NewPricing(discountPercent, taxPercent, computedTotal, finalTotal decimal.Decimal) Pricing {
	return Pricing{
		DiscountPercent: discountPercent,
		TaxPercent:      taxPercent,
		Factor:          money.Ratio(finalTotal, computedTotal),
	}
}

// ChargedShare is the amount actually charged for qty units of a line:
// the unit price run through the bill's discount, tax and override factor,
// rounded to cents.
func (p Pricing) ChargedShare(unitPrice decimal.Decimal, qty int64) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	sub := unitPrice.Mul(decimal.NewFromInt(qty))
	afterDiscount := sub.Mul(one.Sub(p.DiscountPercent.Div(hundred)))
	afterTax := afterDiscount.Mul(one.Add(p.TaxPercent.Div(hundred)))
	return money.Round2(afterTax.Mul(p.Factor))
}

// Line is one bill line in a return selection, in original bill order.
// Remaining is the returnable quantity still open on that line.
type Line struct {
	ItemID    int64
	UnitPrice decimal.Decimal
	Selected  int64
	Remaining int64
}

// IsFullSelection reports whether the selection unwinds everything that is
// still returnable: every line's selected quantity equals its remaining
// returnable quantity, with at least one unit selected.
func IsFullSelection(lines []Line) bool {
	any := false
	for _, l := range lines {
		if l.Selected != l.Remaining {
			return false
		}
		if l.Selected > 0 {
			any = true
		}
	}
	return any
}

// LineValues computes the per-line refund value for the selection. For a
// partial selection each line is its charged share and no bill-level
// correction applies. For a full selection the rounding difference against
// target is added to the last line with a nonzero value, so the displayed and
// refunded figures sum to the target exactly. Absorbing in one deterministic
// spot (rather than redistributing) keeps repeated runs idempotent and
// auditable; changing this policy breaks reconciliation against historical
// records.
func LineValues(lines []Line, p Pricing, target decimal.Decimal, full bool) ([]decimal.Decimal, error) {
	values := make([]decimal.Decimal, len(lines))
	sum := decimal.Zero
	for i, l := range lines {
		if l.Selected <= 0 {
			values[i] = decimal.Zero
			continue
		}
		values[i] = p.ChargedShare(l.UnitPrice, l.Selected)
		sum = sum.Add(values[i])
	}
	if !full {
		return values, nil
	}

	diff := money.Round2(target.Sub(sum))
	if !diff.IsZero() {
		last := -1
		for i := len(values) - 1; i >= 0; i-- {
			if !values[i].IsZero() {
				last = i
				break
			}
		}
		if last >= 0 {
			values[last] = money.Round2(values[last].Add(diff))
		}
	}

	check := decimal.Zero
	for _, v := range values {
		check = check.Add(v)
	}
	if !money.Equal2(check, target) {
		return nil, ErrInconsistentTotals
	}
	return values, nil
}

// Value is the total refund/charge value of a selection: the reconciliation
// target for a full selection, otherwise the sum of charged shares over the
// selected lines only.
func Value(lines []Line, p Pricing, target decimal.Decimal, full bool) (decimal.Decimal, error) {
	if full {
		return money.Round2(target), nil
	}
	values, err := LineValues(lines, p, target, false)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return money.Round2(sum), nil
}
