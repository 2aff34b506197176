// Package credit implements the pure payment ledger rules for credit bills:
// how partial payments accumulate against a bill total and how the payment
// status is derived from them. It has no storage or transport concerns.
package credit

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/money"
)

// ErrOverpayment is returned when a payment would push the paid amount past
// the bill total. Surfaced distinctly so callers can offer "apply remaining
// balance only" as a recovery path.
var ErrOverpayment = errors.New("payment exceeds remaining balance")

// Status is the derived payment state of a bill.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusPartial Status = "PARTIAL"
	StatusUnpaid  Status = "UNPAID"
)

// DeriveStatus computes the authoritative payment status from the bill total
// and the accumulated paid amount. Any stored status field is a cache of this
// derivation and must be recomputed on every paid-amount write.
func DeriveStatus(finalTotal, paidAmount decimal.Decimal) Status {
	if paidAmount.Sign() <= 0 {
		return StatusUnpaid
	}
	if finalTotal.Sub(paidAmount).LessThanOrEqual(money.Epsilon) {
		return StatusPaid
	}
	return StatusPartial
}

// Outstanding reports whether a bill still owes money. A bill qualifies for
// collections regardless of how its payment mode was originally recorded.
func Outstanding(status Status) bool {
	return status == StatusUnpaid || status == StatusPartial
}

// Pending returns the remaining payable amount, clamped at zero.
func Pending(finalTotal, paidAmount decimal.Decimal) decimal.Decimal {
	pending := money.Round2(finalTotal.Sub(paidAmount))
	if pending.Sign() < 0 {
		return decimal.Zero
	}
	return pending
}

// ApplyPayment validates an incoming cash/online payment against the bill and
// returns the new paid amount. The one-cent epsilon absorbs rounding on the
// final installment. On ErrOverpayment the paid amount is unchanged.
func ApplyPayment(finalTotal, paidAmount, cash, online decimal.Decimal) (decimal.Decimal, error) {
	if cash.Sign() < 0 || online.Sign() < 0 {
		return paidAmount, errors.New("payment amounts must not be negative")
	}
	incoming := money.Round2(cash.Add(online))
	if incoming.Sign() <= 0 {
		return paidAmount, errors.New("payment amount must be > 0")
	}
	if paidAmount.Add(incoming).GreaterThan(finalTotal.Add(money.Epsilon)) {
		return paidAmount, ErrOverpayment
	}
	return money.Round2(paidAmount.Add(incoming)), nil
}
