package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells a plain return apart from the return half of an exchange.
type Kind string

const (
	KindReturn   Kind = "RETURN"
	KindExchange Kind = "EXCHANGE"
)

// RefundMode is the channel money goes back through.
type RefundMode string

const (
	RefundCash   RefundMode = "cash"
	RefundOnline RefundMode = "online"
	RefundSplit  RefundMode = "split"
)

// ValidRefundMode reports whether the mode is one an operator may submit.
func ValidRefundMode(m RefundMode) bool {
	return m == RefundCash || m == RefundOnline || m == RefundSplit
}

// Item is one returned line, priced at its prorated charged share so return
// records reconcile against the source bill rather than raw MRP.
type Item struct {
	ItemID    int64           `json:"item_id"`
	ItemName  string          `json:"item_name"`
	MRP       decimal.Decimal `json:"mrp"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Return is a processed return or the return half of an exchange.
// RoundingAdjustment is only nonzero for exchanges that charged a manually
// overridden amount; it is kept for audit, never re-applied.
type Return struct {
	ID                 int64           `json:"id"`
	SourceBillID       int64           `json:"source_bill_id"`
	Kind               Kind            `json:"kind"`
	CreatedAt          time.Time       `json:"created_at"`
	SubtotalReturn     decimal.Decimal `json:"subtotal_return"`
	RefundCash         decimal.Decimal `json:"refund_cash"`
	RefundOnline       decimal.Decimal `json:"refund_online"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	ExchangeBillID     *int64          `json:"exchange_bill_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	Items              []Item          `json:"items"`
}

// Remaining is the per-item returnable state of a bill.
type Remaining struct {
	ItemID    int64  `json:"item_id"`
	ItemName  string `json:"item_name"`
	Sold      int64  `json:"sold"`
	Returned  int64  `json:"returned"`
	Remaining int64  `json:"remaining"`
}
