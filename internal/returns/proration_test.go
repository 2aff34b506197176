package returns

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/billing"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// Bill from the worked example: [(100 x2), (50 x1)], 10% discount, 5% tax,
// computed total 236.25, manual override 230.
func overriddenBillPricing() Pricing {
	return NewPricing(dec(10), dec(5), dec(236.25), dec(230))
}

func TestFullReturnReconcilesToOverride(t *testing.T) {
	p := overriddenBillPricing()
	lines := []Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 2, Remaining: 2},
		{ItemID: 2, UnitPrice: dec(50), Selected: 1, Remaining: 1},
	}
	if !IsFullSelection(lines) {
		t.Fatal("selection covering all remaining quantity must be full")
	}
	values, err := LineValues(lines, p, dec(230), true)
	if err != nil {
		t.Fatalf("LineValues: %v", err)
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	if !sum.Equal(dec(230)) {
		t.Fatalf("full return must refund exactly 230.00, got %s", sum)
	}
	// The rounding difference lands in the second (last nonzero) line.
	base0 := p.ChargedShare(dec(100), 2)
	if !values[0].Equal(base0) {
		t.Fatalf("first line must stay at its charged share %s, got %s", base0, values[0])
	}
	base1 := p.ChargedShare(dec(50), 1)
	if values[1].Equal(base1) && !sum.Equal(base0.Add(base1)) {
		t.Fatalf("second line should have absorbed the difference")
	}
}

func TestFullReturnIdempotentAcrossRequests(t *testing.T) {
	// Returning everything in one request vs. in two requests that together
	// cover the full quantity must refund the same grand total.
	p := overriddenBillPricing()
	final := dec(230)

	oneShot, err := Value([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 2, Remaining: 2},
		{ItemID: 2, UnitPrice: dec(50), Selected: 1, Remaining: 1},
	}, p, final, true)
	if err != nil {
		t.Fatalf("one-shot value: %v", err)
	}

	// First request: one unit of line 1 (partial).
	first, err := Value([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 1, Remaining: 2},
		{ItemID: 2, UnitPrice: dec(50), Selected: 0, Remaining: 1},
	}, p, final, false)
	if err != nil {
		t.Fatalf("first partial value: %v", err)
	}
	// Second request completes the bill; its target is what is left of the
	// final total after the first refund.
	second, err := Value([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 1, Remaining: 1},
		{ItemID: 2, UnitPrice: dec(50), Selected: 1, Remaining: 1},
	}, p, final.Sub(first), true)
	if err != nil {
		t.Fatalf("completing value: %v", err)
	}

	if !first.Add(second).Equal(oneShot) {
		t.Fatalf("chunked refunds %s + %s != one-shot %s", first, second, oneShot)
	}
	if !oneShot.Equal(final) {
		t.Fatalf("one-shot refund %s != final total %s", oneShot, final)
	}
}

func TestPartialNotGreaterThanFull(t *testing.T) {
	p := overriddenBillPricing()
	final := dec(230)
	partial, err := Value([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 2, Remaining: 2},
		{ItemID: 2, UnitPrice: dec(50), Selected: 0, Remaining: 1},
	}, p, final, false)
	if err != nil {
		t.Fatalf("partial value: %v", err)
	}
	if partial.GreaterThan(final) {
		t.Fatalf("partial value %s exceeds full value %s", partial, final)
	}
}

func TestPartialUsesChargedShares(t *testing.T) {
	p := NewPricing(dec(10), dec(5), dec(236.25), dec(236.25))
	got, err := Value([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 1, Remaining: 2},
	}, p, dec(236.25), false)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	// 100 * 0.9 * 1.05 = 94.5, factor 1
	if !got.Equal(dec(94.5)) {
		t.Fatalf("charged share = %s, want 94.50", got)
	}
}

func TestFactorDefaultsToOneOnZeroComputedTotal(t *testing.T) {
	p := NewPricing(decimal.Zero, decimal.Zero, decimal.Zero, dec(100))
	if !p.Factor.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("factor = %s, want 1", p.Factor)
	}
}

func TestIsFullSelection(t *testing.T) {
	if IsFullSelection([]Line{{Selected: 1, Remaining: 2}}) {
		t.Fatal("partial quantity must not count as full")
	}
	if IsFullSelection([]Line{{Selected: 0, Remaining: 0}}) {
		t.Fatal("empty selection must not count as full")
	}
	// A line already fully returned earlier (remaining 0) does not block
	// fullness of the rest.
	if !IsFullSelection([]Line{{Selected: 0, Remaining: 0}, {Selected: 3, Remaining: 3}}) {
		t.Fatal("selection matching all remaining quantity must be full")
	}
}

func TestWorkedExampleMatchesTotalsCalculator(t *testing.T) {
	totals := billing.ComputeTotals([]billing.TotalLine{
		{UnitPrice: dec(100), Quantity: 2},
		{UnitPrice: dec(50), Quantity: 1},
	}, dec(10), dec(5))
	if !totals.Total.Equal(dec(236.25)) {
		t.Fatalf("computed total = %s, want 236.25", totals.Total)
	}
	p := NewPricing(dec(10), dec(5), totals.Total, dec(230))
	values, err := LineValues([]Line{
		{ItemID: 1, UnitPrice: dec(100), Selected: 2, Remaining: 2},
		{ItemID: 2, UnitPrice: dec(50), Selected: 1, Remaining: 1},
	}, p, dec(230), true)
	if err != nil {
		t.Fatalf("LineValues: %v", err)
	}
	sum := values[0].Add(values[1])
	if !sum.Equal(dec(230)) {
		t.Fatalf("refund = %s, want exactly 230", sum)
	}
}
