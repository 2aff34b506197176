// Package cashbook tracks the cash drawer: manual withdrawals and expenses,
// receipts synthesized from bill payments, and the per-day opening/closing
// balance chain.
package cashbook

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/money"
)

// EntryType classifies a cashbook row.
type EntryType string

const (
	// TypeOpening is synthesized at read time, never stored.
	TypeOpening EntryType = "OPENING"
	// TypeReceipt rows are projected from bill payments, never stored.
	TypeReceipt    EntryType = "RECEIPT"
	TypeWithdrawal EntryType = "WITHDRAWAL"
	TypeExpense    EntryType = "EXPENSE"
)

// ManualEntryType reports whether operators may create the type directly.
func ManualEntryType(t EntryType) bool {
	return t == TypeWithdrawal || t == TypeExpense
}

// Entry is a stored manual cash movement. Entries are created and deleted
// whole, never edited.
type Entry struct {
	ID        int64           `json:"id"`
	EntryType EntryType       `json:"entry_type"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Receipt is a cash inflow projected from a bill payment.
type Receipt struct {
	BillID     int64
	Amount     decimal.Decimal
	ReceivedAt time.Time
}

// Row is one line of the materialized day view. Synthetic rows (OPENING,
// RECEIPT) carry no stored entry id.
type Row struct {
	EntryID   *int64          `json:"entry_id,omitempty"`
	EntryType EntryType       `json:"entry_type"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	At        time.Time       `json:"at"`
	BillID    *int64          `json:"bill_id,omitempty"`
}

// Summary aggregates a day's movements. Receipts exclude the opening row.
type Summary struct {
	Receipts    decimal.Decimal `json:"receipts"`
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Expenses    decimal.Decimal `json:"expenses"`
	CashOut     decimal.Decimal `json:"cash_out"`
	NetChange   decimal.Decimal `json:"net_change"`
}

// Day is the full materialized view for one calendar date.
type Day struct {
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Summary        Summary         `json:"summary"`
	Rows           []Row           `json:"entries"`
}

// DayDelta folds a day's raw movements into its receipt and cash-out sums.
// closing(D) = opening(D) + receipts − cashOut; opening(D) = closing(D−1),
// zero on day one. This fold is the single source of truth the balance chain
// (and its cache) must always be recomputable from.
func DayDelta(manual []Entry, receipts []Receipt) (receiptSum, cashOut decimal.Decimal) {
	receiptSum = decimal.Zero
	cashOut = decimal.Zero
	for _, r := range receipts {
		receiptSum = receiptSum.Add(r.Amount)
	}
	for _, e := range manual {
		if ManualEntryType(e.EntryType) {
			cashOut = cashOut.Add(e.Amount)
		}
	}
	return money.Round2(receiptSum), money.Round2(cashOut)
}

// MaterializeDay builds the read-time projection for a date: the synthetic
// opening row, the stored manual rows, and one synthetic receipt row per cash
// payment on a bill of that day. Nothing here is persisted, which keeps the
// view free of dual-write drift.
func MaterializeDay(date time.Time, opening decimal.Decimal, manual []Entry, receipts []Receipt) Day {
	rows := make([]Row, 0, len(manual)+len(receipts)+1)
	rows = append(rows, Row{
		EntryType: TypeOpening,
		Amount:    money.Round2(opening),
		Note:      "Opening Balance",
		At:        startOfDay(date),
	})

	summary := Summary{
		Receipts:    decimal.Zero,
		Withdrawals: decimal.Zero,
		Expenses:    decimal.Zero,
	}
	for _, e := range manual {
		e := e
		rows = append(rows, Row{
			EntryID:   &e.ID,
			EntryType: e.EntryType,
			Amount:    e.Amount,
			Note:      e.Note,
			At:        e.CreatedAt,
		})
		switch e.EntryType {
		case TypeWithdrawal:
			summary.Withdrawals = summary.Withdrawals.Add(e.Amount)
		case TypeExpense:
			summary.Expenses = summary.Expenses.Add(e.Amount)
		}
	}
	for _, r := range receipts {
		r := r
		rows = append(rows, Row{
			EntryType: TypeReceipt,
			Amount:    r.Amount,
			Note:      fmt.Sprintf("Bill #%d", r.BillID),
			At:        r.ReceivedAt,
			BillID:    &r.BillID,
		})
		summary.Receipts = summary.Receipts.Add(r.Amount)
	}

	summary.Receipts = money.Round2(summary.Receipts)
	summary.Withdrawals = money.Round2(summary.Withdrawals)
	summary.Expenses = money.Round2(summary.Expenses)
	summary.CashOut = money.Round2(summary.Withdrawals.Add(summary.Expenses))
	summary.NetChange = money.Round2(summary.Receipts.Sub(summary.CashOut))

	return Day{
		Date:           date.Format("2006-01-02"),
		OpeningBalance: money.Round2(opening),
		ClosingBalance: money.Round2(opening.Add(summary.NetChange)),
		Summary:        summary,
		Rows:           rows,
	}
}

func startOfDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}
