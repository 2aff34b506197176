package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/credit"
	"github.com/nikhilpal/kirana-pos/internal/lock"
	"github.com/nikhilpal/kirana-pos/internal/obs"
)

// BillStore is the persistence surface the service needs.
type BillStore interface {
	CreateBill(ctx context.Context, p CreateBillParams) (Bill, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	AddPayment(ctx context.Context, billID int64, mode PaymentMode, cash, online decimal.Decimal, note string) (Bill, error)
}

// BillLocker serializes writers touching the same bill.
type BillLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// BalanceCacheInvalidator drops cached cashbook closing balances from a given
// day forward. Any write that moves cash on a past day must call it.
type BalanceCacheInvalidator interface {
	InvalidateFrom(ctx context.Context, day time.Time) error
}

// Service owns bill finalization and credit installments.
type Service struct {
	Bills   BillStore
	Locker  BillLocker
	Cache   BalanceCacheInvalidator
	LockTTL time.Duration
}

var hundredPct = decimal.NewFromInt(100)

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundredPct)
}

// CreateBill validates the request and finalizes the sale.
func (s *Service) CreateBill(ctx context.Context, p CreateBillParams) (Bill, error) {
	if len(p.Lines) == 0 {
		return Bill{}, common.ValidationError("a bill needs at least one line")
	}
	seen := make(map[int64]bool, len(p.Lines))
	for _, ln := range p.Lines {
		if ln.ItemID <= 0 {
			return Bill{}, common.ValidationError("item_id must be positive")
		}
		if ln.Quantity <= 0 {
			return Bill{}, common.ValidationError("quantity must be positive")
		}
		if seen[ln.ItemID] {
			return Bill{}, common.ValidationError(fmt.Sprintf("item %d appears twice; merge the quantities", ln.ItemID))
		}
		seen[ln.ItemID] = true
	}
	if !validPercent(p.DiscountPercent) || !validPercent(p.TaxPercent) {
		return Bill{}, common.ValidationError("discount and tax percentages must be between 0 and 100")
	}
	if !ValidBillMode(p.Mode) {
		return Bill{}, common.ValidationError("payment_mode must be cash, online, split or credit")
	}
	if p.FinalOverride != nil && p.FinalOverride.IsNegative() {
		return Bill{}, common.ValidationError("final total override cannot be negative")
	}
	if p.Mode == ModeSplit && (p.SplitCash.IsNegative() || p.SplitOnline.IsNegative()) {
		return Bill{}, common.ValidationError("split amounts cannot be negative")
	}

	bill, err := s.Bills.CreateBill(ctx, p)
	if err != nil {
		return Bill{}, err
	}
	obs.BillsCreatedTotal.WithLabelValues(string(bill.PaymentMode)).Inc()
	if s.Cache != nil && bill.PaymentCash.IsPositive() {
		if err := s.Cache.InvalidateFrom(ctx, bill.CreatedAt); err != nil {
			return bill, fmt.Errorf("invalidate cashbook cache: %w", err)
		}
	}
	return bill, nil
}

// ReceivePayment records an installment against an outstanding credit bill.
// It runs under the bill lock so concurrent installments never validate
// against a stale paid amount.
func (s *Service) ReceivePayment(ctx context.Context, billID int64, mode PaymentMode, cash, online decimal.Decimal, note string) (Bill, error) {
	if billID <= 0 {
		return Bill{}, common.ValidationError("invalid bill id")
	}
	if !ValidPaymentMode(mode) {
		return Bill{}, common.ValidationError("payment mode must be cash, online or split")
	}
	switch mode {
	case ModeCash:
		if !online.IsZero() {
			return Bill{}, common.ValidationError("cash payments cannot carry an online amount")
		}
	case ModeOnline:
		if !cash.IsZero() {
			return Bill{}, common.ValidationError("online payments cannot carry a cash amount")
		}
	}

	var out Bill
	err := s.Locker.WithLock(ctx, lock.BillKey(billID), s.LockTTL, func(ctx context.Context) error {
		bill, err := s.Bills.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if !bill.IsCredit {
			return common.ValidationError("bill was settled at sale; nothing to collect")
		}
		if !credit.Outstanding(bill.PaymentStatus) {
			return common.ValidationError("bill is already fully paid")
		}
		if _, err := credit.ApplyPayment(bill.FinalTotal, bill.PaidAmount, cash, online); err != nil {
			if errors.Is(err, credit.ErrOverpayment) {
				pending := credit.Pending(bill.FinalTotal, bill.PaidAmount)
				return common.ValidationError(fmt.Sprintf(
					"payment exceeds pending balance of %s", pending.StringFixed(2)))
			}
			return common.ValidationError(err.Error())
		}
		out, err = s.Bills.AddPayment(ctx, billID, mode, cash, online, note)
		return err
	})
	if err != nil {
		obs.PaymentsReceivedTotal.WithLabelValues(string(mode), "rejected").Inc()
		return Bill{}, err
	}
	obs.PaymentsReceivedTotal.WithLabelValues(string(mode), "ok").Inc()
	if s.Cache != nil && cash.IsPositive() {
		if err := s.Cache.InvalidateFrom(ctx, time.Now()); err != nil {
			return out, fmt.Errorf("invalidate cashbook cache: %w", err)
		}
	}
	return out, nil
}
