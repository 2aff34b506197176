// Package exchange derives the signed net amount of an exchange: the value of
// the goods coming back versus the value of the goods going out, with an
// exchange-only discount and an optional operator override of the magnitude.
package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Input gathers the settlement terms. ReturnValue is the prorated valuation
// of the returned lines (full-return rule already applied by the caller when
// the whole bill is unwound). NewItemsValue is the straight sum of the added
// items at MRP, before the exchange discount.
type Input struct {
	ReturnValue     decimal.Decimal
	NewItemsValue   decimal.Decimal
	DiscountPercent decimal.Decimal
	// Override replaces the magnitude of the net amount, never its sign.
	Override *decimal.Decimal
	// Mode decides whether the single cash flow is cash or online.
	Mode billing.PaymentMode
}

// Settlement is the outcome. Exactly one of the four flow fields is nonzero:
// a payment when the customer owes, a refund when the store owes, none when
// the exchange nets to zero.
type Settlement struct {
	ReturnValue        decimal.Decimal `json:"return_value"`
	NewItemsValue      decimal.Decimal `json:"new_items_value"`
	DiscountedNew      decimal.Decimal `json:"discounted_new"`
	AutoDelta          decimal.Decimal `json:"theoretical_net"`
	ChosenDelta        decimal.Decimal `json:"net_due"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	PaymentCash        decimal.Decimal `json:"payment_cash"`
	PaymentOnline      decimal.Decimal `json:"payment_online"`
	RefundCash         decimal.Decimal `json:"refund_cash"`
	RefundOnline       decimal.Decimal `json:"refund_online"`
}

// Settle computes the exchange outcome. The discount applies only to the new
// items. The sign of the net amount always comes from the computed figures;
// when the discounted delta is exactly zero the undiscounted difference
// breaks the tie (and a dead-even exchange treats an override as a charge).
// RoundingAdjustment records the gap the override introduced so downstream
// reconciliation can explain it.
func Settle(in Input) Settlement {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)

	discountedNew := in.NewItemsValue.Mul(one.Sub(in.DiscountPercent.Div(hundred)))
	autoDelta := money.Round2(discountedNew.Sub(in.ReturnValue))

	sign := autoDelta.Sign()
	if sign == 0 {
		if in.NewItemsValue.Sub(in.ReturnValue).Sign() < 0 {
			sign = -1
		} else {
			sign = 1
		}
	}

	magnitude := autoDelta.Abs()
	if in.Override != nil {
		magnitude = money.Round2(in.Override.Abs())
	}
	chosen := magnitude.Mul(decimal.NewFromInt(int64(sign)))
	if magnitude.IsZero() {
		chosen = decimal.Zero
	}

	s := Settlement{
		ReturnValue:        money.Round2(in.ReturnValue),
		NewItemsValue:      money.Round2(in.NewItemsValue),
		DiscountedNew:      money.Round2(discountedNew),
		AutoDelta:          autoDelta,
		ChosenDelta:        chosen,
		RoundingAdjustment: money.Round2(chosen.Sub(autoDelta)),
	}

	online := in.Mode == billing.ModeOnline
	switch {
	case chosen.Sign() > 0:
		if online {
			s.PaymentOnline = chosen
		} else {
			s.PaymentCash = chosen
		}
	case chosen.Sign() < 0:
		if online {
			s.RefundOnline = chosen.Neg()
		} else {
			s.RefundCash = chosen.Neg()
		}
	}
	return s
}
