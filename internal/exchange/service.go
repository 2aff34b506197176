package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/inventory"
	"github.com/nikhilpal/kirana-pos/internal/lock"
	"github.com/nikhilpal/kirana-pos/internal/obs"
	"github.com/nikhilpal/kirana-pos/internal/returns"
)

// ExchangeStore persists the paired return and bill.
type ExchangeStore interface {
	CreateExchange(ctx context.Context, ret returns.Return, billParams billing.CreateBillParams) (returns.Return, billing.Bill, error)
}

// ReturnValuator prices the return half against the source bill.
type ReturnValuator interface {
	ValuateExchangeReturn(ctx context.Context, billID int64, lines []returns.LineRequest, notes string) (returns.Return, error)
}

// ItemReader supplies current prices for the settlement preview. The bill
// transaction re-reads them under lock; a price edit racing an exchange is
// caught there.
type ItemReader interface {
	GetItem(ctx context.Context, id int64) (inventory.Item, error)
}

// BillLocker serializes writers touching the same bill.
type BillLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// BalanceCacheInvalidator drops cached cashbook closing balances from a day
// forward.
type BalanceCacheInvalidator interface {
	InvalidateFrom(ctx context.Context, day time.Time) error
}

// Service runs the exchange flow end to end.
type Service struct {
	Store   ExchangeStore
	Returns ReturnValuator
	Items   ItemReader
	Locker  BillLocker
	Cache   BalanceCacheInvalidator
	LockTTL time.Duration
}

// CreateExchangeInput is a validated-at-the-edge exchange request.
type CreateExchangeInput struct {
	SourceBillID    int64
	ReturnLines     []returns.LineRequest
	NewLines        []billing.LineInput
	DiscountPercent decimal.Decimal
	// Override replaces the magnitude of the net amount, never its sign.
	Override *decimal.Decimal
	Mode     billing.PaymentMode
	Notes    string
}

// Result is the full exchange outcome: the settlement figures plus the two
// records they were persisted as.
type Result struct {
	Settlement Settlement     `json:"settlement"`
	Return     returns.Return `json:"return"`
	Bill       billing.Bill   `json:"bill"`
}

var hundredPct = decimal.NewFromInt(100)

// CreateExchange valuates both halves, settles, and persists everything
// atomically under the source bill's lock.
func (s *Service) CreateExchange(ctx context.Context, in CreateExchangeInput) (Result, error) {
	if in.SourceBillID <= 0 {
		return Result{}, common.ValidationError("source_bill_id is required")
	}
	if len(in.ReturnLines) == 0 {
		return Result{}, common.ValidationError("an exchange needs at least one returned item")
	}
	if len(in.NewLines) == 0 {
		return Result{}, common.ValidationError("an exchange needs at least one new item")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundredPct) {
		return Result{}, common.ValidationError("discount_percent must be between 0 and 100")
	}
	if in.Mode != billing.ModeCash && in.Mode != billing.ModeOnline {
		return Result{}, common.ValidationError("payment_mode must be cash or online")
	}
	seen := make(map[int64]bool, len(in.NewLines))
	for _, ln := range in.NewLines {
		if ln.ItemID <= 0 || ln.Quantity <= 0 {
			return Result{}, common.ValidationError("new items need a positive item_id and quantity")
		}
		if seen[ln.ItemID] {
			return Result{}, common.ValidationError(fmt.Sprintf("item %d appears twice; merge the quantities", ln.ItemID))
		}
		seen[ln.ItemID] = true
	}

	var out Result
	err := s.Locker.WithLock(ctx, lock.BillKey(in.SourceBillID), s.LockTTL, func(ctx context.Context) error {
		ret, err := s.Returns.ValuateExchangeReturn(ctx, in.SourceBillID, in.ReturnLines, in.Notes)
		if err != nil {
			return err
		}

		newValue := decimal.Zero
		for _, ln := range in.NewLines {
			item, err := s.Items.GetItem(ctx, ln.ItemID)
			if err != nil {
				return err
			}
			newValue = newValue.Add(item.MRP.Mul(decimal.NewFromInt(ln.Quantity)))
		}

		settlement := Settle(Input{
			ReturnValue:     ret.SubtotalReturn,
			NewItemsValue:   newValue,
			DiscountPercent: in.DiscountPercent,
			Override:        in.Override,
			Mode:            in.Mode,
		})

		ret.RefundCash = settlement.RefundCash
		ret.RefundOnline = settlement.RefundOnline
		ret.RoundingAdjustment = settlement.RoundingAdjustment

		createdRet, bill, err := s.Store.CreateExchange(ctx, ret, billing.CreateBillParams{
			Lines:           in.NewLines,
			DiscountPercent: in.DiscountPercent,
			TaxPercent:      decimal.Zero,
			Mode:            in.Mode,
			Notes:           in.Notes,
			Exchange: &billing.ExchangeTerms{
				PaymentCash:   settlement.PaymentCash,
				PaymentOnline: settlement.PaymentOnline,
			},
		})
		if err != nil {
			return err
		}
		out = Result{Settlement: settlement, Return: createdRet, Bill: bill}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	obs.ReturnsCreatedTotal.WithLabelValues(string(returns.KindExchange)).Inc()
	if s.Cache != nil && out.Settlement.PaymentCash.IsPositive() {
		if err := s.Cache.InvalidateFrom(ctx, out.Bill.CreatedAt); err != nil {
			return out, fmt.Errorf("invalidate cashbook cache: %w", err)
		}
	}
	return out, nil
}
