package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a sellable product. MRP is the canonical unit price used in billing.
type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	MRP       decimal.Decimal `json:"mrp"`
	Stock     int64           `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

// Movement reasons. Sales and exchange-out reduce stock; returns and
// exchange-in restore it.
const (
	ReasonSale        = "SALE"
	ReasonReturn      = "RETURN"
	ReasonExchangeIn  = "EXCHANGE_IN"
	ReasonExchangeOut = "EXCHANGE_OUT"
	ReasonAdjust      = "ADJUST"
)

// Movement is one row of the append-only stock ledger. Positive delta is
// stock in, negative is stock out.
type Movement struct {
	ID      int64     `json:"id"`
	ItemID  int64     `json:"item_id"`
	At      time.Time `json:"ts"`
	Delta   int64     `json:"delta"`
	Reason  string    `json:"reason"`
	RefType string    `json:"ref_type"`
	RefID   int64     `json:"ref_id"`
	Note    string    `json:"note,omitempty"`
}
