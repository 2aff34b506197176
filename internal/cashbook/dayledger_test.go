package cashbook

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMaterializeDayExample(t *testing.T) {
	// Opening 1000, one expense of 50, one cash payment of 300.
	d := day("2026-08-20")
	manual := []Entry{
		{ID: 1, EntryType: TypeExpense, Amount: dec(50), CreatedAt: d.Add(10 * time.Hour)},
	}
	receipts := []Receipt{
		{BillID: 77, Amount: dec(300), ReceivedAt: d.Add(12 * time.Hour)},
	}

	view := MaterializeDay(d, dec(1000), manual, receipts)

	if !view.ClosingBalance.Equal(dec(1250)) {
		t.Fatalf("closing = %s, want 1250", view.ClosingBalance)
	}
	if !view.Summary.Receipts.Equal(dec(300)) {
		t.Fatalf("receipts = %s, want 300", view.Summary.Receipts)
	}
	if !view.Summary.CashOut.Equal(dec(50)) {
		t.Fatalf("cash out = %s, want 50", view.Summary.CashOut)
	}
	if len(view.Rows) != 3 {
		t.Fatalf("expected OPENING + 1 manual + 1 receipt, got %d rows", len(view.Rows))
	}
	if view.Rows[0].EntryType != TypeOpening || !view.Rows[0].Amount.Equal(dec(1000)) {
		t.Fatalf("first row must be the opening balance, got %+v", view.Rows[0])
	}
	if view.Rows[0].EntryID != nil {
		t.Fatal("opening row must not reference a stored entry")
	}
	last := view.Rows[2]
	if last.EntryType != TypeReceipt || last.BillID == nil || *last.BillID != 77 {
		t.Fatalf("receipt row must reference its bill, got %+v", last)
	}
}

func TestOpeningExcludedFromReceipts(t *testing.T) {
	view := MaterializeDay(day("2026-08-20"), dec(500), nil, nil)
	if !view.Summary.Receipts.IsZero() {
		t.Fatalf("opening must not count as a receipt, got %s", view.Summary.Receipts)
	}
	if !view.ClosingBalance.Equal(dec(500)) {
		t.Fatalf("closing = %s, want 500 on an idle day", view.ClosingBalance)
	}
}

func TestClosureIdentityOverChunkedRanges(t *testing.T) {
	// Folding three days one at a time must agree with folding them at once,
	// however the range is chunked.
	days := []struct {
		manual   []Entry
		receipts []Receipt
	}{
		{
			manual:   []Entry{{EntryType: TypeWithdrawal, Amount: dec(100)}},
			receipts: []Receipt{{BillID: 1, Amount: dec(450.55)}},
		},
		{
			manual: []Entry{{EntryType: TypeExpense, Amount: dec(20.45)}},
		},
		{
			receipts: []Receipt{{BillID: 2, Amount: dec(99.99)}, {BillID: 3, Amount: dec(0.01)}},
		},
	}

	running := decimal.Zero
	for _, d := range days {
		in, out := DayDelta(d.manual, d.receipts)
		running = running.Add(in).Sub(out)
	}

	var allManual []Entry
	var allReceipts []Receipt
	for _, d := range days {
		allManual = append(allManual, d.manual...)
		allReceipts = append(allReceipts, d.receipts...)
	}
	in, out := DayDelta(allManual, allReceipts)
	whole := in.Sub(out)

	if !running.Equal(whole) {
		t.Fatalf("chunked fold %s != whole-range fold %s", running, whole)
	}
	if !whole.Equal(dec(430.10)) {
		t.Fatalf("net change = %s, want 430.10", whole)
	}
}

func TestManualEntryType(t *testing.T) {
	if ManualEntryType(TypeOpening) || ManualEntryType(TypeReceipt) {
		t.Fatal("synthetic types must not be creatable")
	}
	if !ManualEntryType(TypeWithdrawal) || !ManualEntryType(TypeExpense) {
		t.Fatal("withdrawal and expense are manual types")
	}
}
