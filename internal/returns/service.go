package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/lock"
	"github.com/nikhilpal/kirana-pos/internal/money"
	"github.com/nikhilpal/kirana-pos/internal/obs"
)

// ReturnStore is the persistence surface the service needs.
type ReturnStore interface {
	CreateReturn(ctx context.Context, ret Return) (Return, error)
	ReturnedQuantities(ctx context.Context, billID int64) (map[int64]int64, error)
	RefundedTotal(ctx context.Context, billID int64) (decimal.Decimal, error)
}

// BillReader loads the source bill a return is valuated against.
type BillReader interface {
	GetBill(ctx context.Context, id int64) (billing.Bill, error)
}

// BillLocker serializes writers touching the same bill.
type BillLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service validates and valuates returns against their source bill.
type Service struct {
	Returns ReturnStore
	Bills   BillReader
	Locker  BillLocker
	LockTTL time.Duration
	// Tolerance is how far the operator-entered refund may deviate from the
	// computed value, covering drawer rounding on cash handovers.
	Tolerance decimal.Decimal
}

// LineRequest is one requested return line.
type LineRequest struct {
	ItemID   int64
	Quantity int64
}

// CreateReturnInput is a validated-at-the-edge return request.
type CreateReturnInput struct {
	SourceBillID int64
	Lines        []LineRequest
	RefundMode   RefundMode
	RefundCash   decimal.Decimal
	RefundOnline decimal.Decimal
	Notes        string
}

// CreateReturn processes a return under the source bill's lock, so two
// concurrent requests can never both validate against the same remaining
// quantities.
func (s *Service) CreateReturn(ctx context.Context, in CreateReturnInput) (Return, error) {
	if in.SourceBillID <= 0 {
		return Return{}, common.ValidationError("source_bill_id is required")
	}
	if len(in.Lines) == 0 {
		return Return{}, common.ValidationError("a return needs at least one item")
	}
	if !ValidRefundMode(in.RefundMode) {
		return Return{}, common.ValidationError("refund_mode must be cash, online or split")
	}
	if in.RefundCash.IsNegative() || in.RefundOnline.IsNegative() {
		return Return{}, common.ValidationError("refund amounts cannot be negative")
	}

	var out Return
	err := s.Locker.WithLock(ctx, lock.BillKey(in.SourceBillID), s.LockTTL, func(ctx context.Context) error {
		ret, err := s.valuate(ctx, in.SourceBillID, in.Lines, KindReturn, in.Notes)
		if err != nil {
			return err
		}
		ret.RefundCash, ret.RefundOnline, err = s.checkRefund(in, ret.SubtotalReturn)
		if err != nil {
			return err
		}
		out, err = s.Returns.CreateReturn(ctx, ret)
		return err
	})
	if err != nil {
		return Return{}, err
	}
	obs.ReturnsCreatedTotal.WithLabelValues(string(KindReturn)).Inc()
	return out, nil
}

// ValuateExchangeReturn prices the return half of an exchange without
// persisting anything. It must run under the source bill's lock, which the
// exchange flow owns for its whole transaction.
func (s *Service) ValuateExchangeReturn(ctx context.Context, billID int64, lines []LineRequest, notes string) (Return, error) {
	return s.valuate(ctx, billID, lines, KindExchange, notes)
}

// valuate checks quantities against the remaining returnable state and prices
// the selection. It must run under the bill lock.
func (s *Service) valuate(ctx context.Context, billID int64, lines []LineRequest, kind Kind, notes string) (Return, error) {
	bill, err := s.Bills.GetBill(ctx, billID)
	if err != nil {
		return Return{}, err
	}
	returned, err := s.Returns.ReturnedQuantities(ctx, billID)
	if err != nil {
		return Return{}, err
	}

	requested := make(map[int64]int64, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return Return{}, common.ValidationError("return quantity must be positive")
		}
		if _, dup := requested[ln.ItemID]; dup {
			return Return{}, common.ValidationError(fmt.Sprintf("item %d appears twice; merge the quantities", ln.ItemID))
		}
		requested[ln.ItemID] = ln.Quantity
	}

	// Engine lines follow original bill order so full-return absorption lands
	// on a deterministic line.
	engineLines := make([]Line, 0, len(bill.Lines))
	for _, bl := range bill.Lines {
		remaining := bl.Quantity - returned[bl.ItemID]
		if remaining < 0 {
			remaining = 0
		}
		sel := requested[bl.ItemID]
		if sel > 0 {
			if remaining <= 0 {
				return Return{}, common.ValidationError(fmt.Sprintf("no remaining quantity to return for %q", bl.ItemName))
			}
			if sel > remaining {
				return Return{}, common.ValidationError(fmt.Sprintf(
					"return quantity exceeds remaining for %q (remaining %d)", bl.ItemName, remaining))
			}
		}
		delete(requested, bl.ItemID)
		engineLines = append(engineLines, Line{
			ItemID:    bl.ItemID,
			UnitPrice: bl.MRP,
			Selected:  sel,
			Remaining: remaining,
		})
	}
	for itemID := range requested {
		return Return{}, common.ValidationError(fmt.Sprintf("item %d is not on bill %d", itemID, billID))
	}

	pricing := NewPricing(bill.DiscountPercent, bill.TaxPercent, bill.ComputedTotal, bill.FinalTotal)
	full := IsFullSelection(engineLines)

	// A request that returns everything still open reconciles to whatever is
	// left of the final total, so chunked returns sum to the bill exactly.
	refunded, err := s.Returns.RefundedTotal(ctx, billID)
	if err != nil {
		return Return{}, err
	}
	target := money.Round2(bill.FinalTotal.Sub(refunded))

	values, err := LineValues(engineLines, pricing, target, full)
	if err != nil {
		return Return{}, err
	}
	value, err := Value(engineLines, pricing, target, full)
	if err != nil {
		return Return{}, err
	}

	ret := Return{
		SourceBillID:   billID,
		Kind:           kind,
		SubtotalReturn: value,
		Notes:          notes,
	}
	for i, el := range engineLines {
		if el.Selected <= 0 {
			continue
		}
		ret.Items = append(ret.Items, Item{
			ItemID:    el.ItemID,
			ItemName:  bill.Lines[i].ItemName,
			MRP:       el.UnitPrice,
			Quantity:  el.Selected,
			LineTotal: values[i],
		})
	}
	return ret, nil
}

// checkRefund enforces the channel rules and the deviation tolerance against
// the computed value.
func (s *Service) checkRefund(in CreateReturnInput, value decimal.Decimal) (cash, online decimal.Decimal, err error) {
	tol := s.Tolerance
	switch in.RefundMode {
	case RefundCash:
		if !in.RefundOnline.IsZero() {
			return decimal.Zero, decimal.Zero, common.ValidationError("cash refunds cannot carry an online amount")
		}
		cash = money.Round2(in.RefundCash)
		if cash.Sub(value).Abs().GreaterThan(tol) {
			return decimal.Zero, decimal.Zero, common.ValidationError(fmt.Sprintf(
				"refund_cash deviates from the computed value %s by more than %s",
				value.StringFixed(2), tol.StringFixed(2)))
		}
	case RefundOnline:
		if !in.RefundCash.IsZero() {
			return decimal.Zero, decimal.Zero, common.ValidationError("online refunds cannot carry a cash amount")
		}
		online = money.Round2(in.RefundOnline)
		if online.Sub(value).Abs().GreaterThan(tol) {
			return decimal.Zero, decimal.Zero, common.ValidationError(fmt.Sprintf(
				"refund_online deviates from the computed value %s by more than %s",
				value.StringFixed(2), tol.StringFixed(2)))
		}
	case RefundSplit:
		cash = money.Round2(in.RefundCash)
		online = money.Round2(in.RefundOnline)
		if money.Round2(cash.Add(online)).Sub(value).Abs().GreaterThan(tol) {
			return decimal.Zero, decimal.Zero, common.ValidationError(fmt.Sprintf(
				"cash + online deviates from the computed value %s by more than %s",
				value.StringFixed(2), tol.StringFixed(2)))
		}
	}
	return cash, online, nil
}

// Summary reports the sold, returned and remaining quantities per item of a
// bill, the read the return form is driven by.
func (s *Service) Summary(ctx context.Context, billID int64) ([]Remaining, error) {
	bill, err := s.Bills.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	returned, err := s.Returns.ReturnedQuantities(ctx, billID)
	if err != nil {
		return nil, err
	}
	out := make([]Remaining, 0, len(bill.Lines))
	for _, bl := range bill.Lines {
		rem := bl.Quantity - returned[bl.ItemID]
		if rem < 0 {
			rem = 0
		}
		out = append(out, Remaining{
			ItemID:    bl.ItemID,
			ItemName:  bl.ItemName,
			Sold:      bl.Quantity,
			Returned:  returned[bl.ItemID],
			Remaining: rem,
		})
	}
	return out, nil
}
