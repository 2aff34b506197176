package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/credit"
)

// PaymentMode identifies how a bill (or a later installment) is settled.
type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeOnline PaymentMode = "online"
	ModeSplit  PaymentMode = "split"
	ModeCredit PaymentMode = "credit"
)

// ValidBillMode reports whether the mode is allowed at bill creation.
func ValidBillMode(m PaymentMode) bool {
	switch m {
	case ModeCash, ModeOnline, ModeSplit, ModeCredit:
		return true
	}
	return false
}

// ValidPaymentMode reports whether the mode is allowed for an installment on a
// credit bill (credit-on-credit makes no sense).
func ValidPaymentMode(m PaymentMode) bool {
	switch m {
	case ModeCash, ModeOnline, ModeSplit:
		return true
	}
	return false
}

// BillLine is an immutable line of a finalized bill. MRP is captured at sale
// time so later price changes never alter historical figures.
type BillLine struct {
	ItemID    int64           `json:"item_id"`
	ItemName  string          `json:"item_name"`
	MRP       decimal.Decimal `json:"mrp"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Bill is a finalized sale. FinalTotal defaults to ComputedTotal but may carry
// a manual override; reconciliation always trusts FinalTotal.
type Bill struct {
	ID              int64           `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []BillLine      `json:"items"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ComputedTotal   decimal.Decimal `json:"computed_total"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	PaymentCash     decimal.Decimal `json:"payment_cash"`
	PaymentOnline   decimal.Decimal `json:"payment_online"`
	Notes           string          `json:"notes,omitempty"`
	IsCredit        bool            `json:"is_credit"`
	PaymentStatus   credit.Status   `json:"payment_status"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
}

// Payment is an immutable, append-only record of money received against a
// bill. The sum of a bill's payments always equals its paid amount.
type Payment struct {
	ID           int64           `json:"id"`
	BillID       int64           `json:"bill_id"`
	Mode         PaymentMode     `json:"mode"`
	CashAmount   decimal.Decimal `json:"cash_amount"`
	OnlineAmount decimal.Decimal `json:"online_amount"`
	ReceivedAt   time.Time       `json:"received_at"`
	Note         string          `json:"note,omitempty"`
}
