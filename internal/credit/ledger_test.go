package credit

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestApplyPaymentSequence(t *testing.T) {
	final := dec(500)
	paid := decimal.Zero

	paid, err := ApplyPayment(final, paid, dec(200), decimal.Zero)
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	paid, err = ApplyPayment(final, paid, decimal.Zero, dec(200))
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}

	// 400 paid, 150 would exceed 500 + epsilon.
	got, err := ApplyPayment(final, paid, dec(150), decimal.Zero)
	if err != ErrOverpayment {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if !got.Equal(paid) || !paid.Equal(dec(400)) {
		t.Fatalf("paid amount must stay 400 after rejection, got %s", got)
	}
	if s := DeriveStatus(final, paid); s != StatusPartial {
		t.Fatalf("expected PARTIAL, got %s", s)
	}
}

func TestApplyPaymentEpsilonAbsorbsRounding(t *testing.T) {
	final := dec(236.25)
	paid, err := ApplyPayment(final, dec(236.25), dec(0.01), decimal.Zero)
	if err != nil {
		t.Fatalf("one extra cent must be absorbed: %v", err)
	}
	if s := DeriveStatus(final, paid); s != StatusPaid {
		t.Fatalf("expected PAID, got %s", s)
	}

	if _, err := ApplyPayment(final, dec(236.25), dec(0.02), decimal.Zero); err != ErrOverpayment {
		t.Fatalf("two cents past total must be rejected, got %v", err)
	}
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	if _, err := ApplyPayment(dec(100), decimal.Zero, decimal.Zero, decimal.Zero); err == nil {
		t.Fatal("zero payment must be rejected")
	}
	if _, err := ApplyPayment(dec(100), decimal.Zero, dec(-5), dec(10)); err == nil {
		t.Fatal("negative cash must be rejected")
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		final, paid float64
		want        Status
	}{
		{500, 0, StatusUnpaid},
		{500, 100, StatusPartial},
		{500, 500, StatusPaid},
		{500, 499.995, StatusPaid}, // within epsilon
		{500, 499.98, StatusPartial},
		{0, 0, StatusUnpaid},
	}
	for _, c := range cases {
		if got := DeriveStatus(dec(c.final), dec(c.paid)); got != c.want {
			t.Fatalf("DeriveStatus(%v, %v) = %s, want %s", c.final, c.paid, got, c.want)
		}
	}
}

func TestStatusMonotonicUnderPayments(t *testing.T) {
	// Status never regresses from PAID while paid amount only grows.
	final := dec(120)
	paid := decimal.Zero
	reachedPaid := false
	for _, amt := range []float64{40, 40, 40} {
		next, err := ApplyPayment(final, paid, dec(amt), decimal.Zero)
		if err != nil {
			t.Fatalf("payment of %v: %v", amt, err)
		}
		paid = next
		if DeriveStatus(final, paid) == StatusPaid {
			reachedPaid = true
		} else if reachedPaid {
			t.Fatal("status regressed from PAID without a refund")
		}
	}
	if !reachedPaid {
		t.Fatal("expected bill to reach PAID")
	}
}

func TestPendingClampsAtZero(t *testing.T) {
	if got := Pending(dec(100), dec(100.01)); !got.Equal(decimal.Zero) {
		t.Fatalf("pending must clamp at zero, got %s", got)
	}
	if got := Pending(dec(500), dec(400)); !got.Equal(dec(100)) {
		t.Fatalf("pending = %s, want 100", got)
	}
}
