package cashbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Store persists manual cash entries and projects receipts and refunds from
// the billing tables. Only WITHDRAWAL and EXPENSE rows are ever written here;
// everything else the cashbook shows is derived at read time.
type Store struct {
	Pool *pgxpool.Pool
}

const entryColumns = `id, entry_type, amount, COALESCE(note, ''), created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var amountF float64
	if err := row.Scan(&e.ID, &e.EntryType, &amountF, &e.Note, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Amount = money.FromFloat(amountF)
	return e, nil
}

// CreateEntry inserts a manual entry.
func (s Store) CreateEntry(ctx context.Context, typ EntryType, amount decimal.Decimal, note string) (Entry, error) {
	e, err := scanEntry(s.Pool.QueryRow(ctx,
		`INSERT INTO cashbook_entries (entry_type, amount, note) VALUES ($1, $2, $3)
		 RETURNING `+entryColumns, typ, amount, note))
	if err != nil {
		return Entry{}, fmt.Errorf("create cashbook entry: %w", err)
	}
	return e, nil
}

// GetEntry fetches one manual entry.
func (s Store) GetEntry(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(s.Pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM cashbook_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, common.NotFound(fmt.Sprintf("cashbook entry %d not found", id))
		}
		return Entry{}, fmt.Errorf("get cashbook entry: %w", err)
	}
	return e, nil
}

// ListEntries returns manual entries in creation order within an optional
// range.
func (s Store) ListEntries(ctx context.Context, dr common.DateRange, limit, offset int) ([]Entry, error) {
	sql := `SELECT ` + entryColumns + ` FROM cashbook_entries WHERE TRUE`
	args := []any{}
	if dr.Valid() {
		sql += ` AND created_at >= $1 AND created_at < $2`
		args = append(args, dr.From, dr.To)
	}
	sql += fmt.Sprintf(` ORDER BY id ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list cashbook entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntry removes one manual entry and returns it, so callers know which
// day's balances went stale.
func (s Store) DeleteEntry(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(s.Pool.QueryRow(ctx,
		`DELETE FROM cashbook_entries WHERE id = $1 RETURNING `+entryColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, common.NotFound(fmt.Sprintf("cashbook entry %d not found", id))
		}
		return Entry{}, fmt.Errorf("delete cashbook entry: %w", err)
	}
	return e, nil
}

// DeleteLast removes the newest manual entry within a range and returns it.
func (s Store) DeleteLast(ctx context.Context, dr common.DateRange) (Entry, error) {
	e, err := scanEntry(s.Pool.QueryRow(ctx,
		`DELETE FROM cashbook_entries WHERE id = (
		   SELECT id FROM cashbook_entries
		   WHERE created_at >= $1 AND created_at < $2
		   ORDER BY id DESC LIMIT 1
		 ) RETURNING `+entryColumns, dr.From, dr.To))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, common.NotFound("no cashbook entry to delete in range")
		}
		return Entry{}, fmt.Errorf("delete last cashbook entry: %w", err)
	}
	return e, nil
}

// ClearRange deletes all manual entries within a range and reports how many
// went.
func (s Store) ClearRange(ctx context.Context, dr common.DateRange) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM cashbook_entries WHERE created_at >= $1 AND created_at < $2`,
		dr.From, dr.To)
	if err != nil {
		return 0, fmt.Errorf("clear cashbook range: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClearAll deletes every manual entry.
func (s Store) ClearAll(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM cashbook_entries`)
	if err != nil {
		return 0, fmt.Errorf("clear cashbook: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CashReceipts projects the cash half of bill payments within a range into
// receipt rows, oldest first.
func (s Store) CashReceipts(ctx context.Context, dr common.DateRange) ([]Receipt, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT bill_id, cash_amount, received_at FROM bill_payments
		 WHERE cash_amount > 0 AND received_at >= $1 AND received_at < $2
		 ORDER BY id ASC`, dr.From, dr.To)
	if err != nil {
		return nil, fmt.Errorf("cash receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var r Receipt
		var amountF float64
		if err := rows.Scan(&r.BillID, &amountF, &r.ReceivedAt); err != nil {
			return nil, err
		}
		r.Amount = money.FromFloat(amountF)
		out = append(out, r)
	}
	return out, rows.Err()
}

// BalanceBefore folds every cash movement strictly before ts into a single
// closing figure: cash received on bills minus manual withdrawals and
// expenses. Two aggregate queries replace walking the day chain.
func (s Store) BalanceBefore(ctx context.Context, ts time.Time) (decimal.Decimal, error) {
	var receiptsF, outF float64
	err := s.Pool.QueryRow(ctx,
		`SELECT (SELECT COALESCE(SUM(cash_amount), 0) FROM bill_payments WHERE received_at < $1),
		        (SELECT COALESCE(SUM(amount), 0) FROM cashbook_entries WHERE created_at < $1)`,
		ts).Scan(&receiptsF, &outF)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance before: %w", err)
	}
	return money.Round2(money.FromFloat(receiptsF).Sub(money.FromFloat(outF))), nil
}

// RangeSummary aggregates the manual side of the book over a range.
type RangeSummary struct {
	Withdrawals decimal.Decimal `json:"withdrawals"`
	Expenses    decimal.Decimal `json:"expenses"`
	CashOut     decimal.Decimal `json:"cash_out"`
	Entries     int64           `json:"entries"`
}

// SummarizeRange sums withdrawals and expenses over a range.
func (s Store) SummarizeRange(ctx context.Context, dr common.DateRange) (RangeSummary, error) {
	sql := `SELECT
	          COALESCE(SUM(amount) FILTER (WHERE entry_type = $1), 0),
	          COALESCE(SUM(amount) FILTER (WHERE entry_type = $2), 0),
	          COUNT(*)
	        FROM cashbook_entries`
	args := []any{TypeWithdrawal, TypeExpense}
	if dr.Valid() {
		sql += ` WHERE created_at >= $3 AND created_at < $4`
		args = append(args, dr.From, dr.To)
	}
	var withdrawalsF, expensesF float64
	var count int64
	if err := s.Pool.QueryRow(ctx, sql, args...).Scan(&withdrawalsF, &expensesF, &count); err != nil {
		return RangeSummary{}, fmt.Errorf("summarize cashbook: %w", err)
	}
	sum := RangeSummary{
		Withdrawals: money.FromFloat(withdrawalsF),
		Expenses:    money.FromFloat(expensesF),
		Entries:     count,
	}
	sum.CashOut = money.Round2(sum.Withdrawals.Add(sum.Expenses))
	return sum, nil
}

// NetSums carries everything the net cash/online view needs for one range.
type NetSums struct {
	CashCollected   decimal.Decimal `json:"cash_collected"`
	CashRefunded    decimal.Decimal `json:"cash_refunded"`
	CashOut         decimal.Decimal `json:"cash_out"`
	OnlineCollected decimal.Decimal `json:"online_collected"`
	OnlineRefunded  decimal.Decimal `json:"online_refunded"`
}

// SumNet gathers collected, refunded and cash-out figures over a range.
// Refunds come from return records; cash-out from manual entries. Cashbook
// movements never touch the online figure since withdrawals and expenses are
// cash-only by definition.
func (s Store) SumNet(ctx context.Context, dr common.DateRange) (NetSums, error) {
	var cashIn, onlineIn, cashRef, onlineRef, out float64
	err := s.Pool.QueryRow(ctx,
		`SELECT
		   (SELECT COALESCE(SUM(cash_amount), 0) FROM bill_payments
		    WHERE received_at >= $1 AND received_at < $2),
		   (SELECT COALESCE(SUM(online_amount), 0) FROM bill_payments
		    WHERE received_at >= $1 AND received_at < $2),
		   (SELECT COALESCE(SUM(refund_cash), 0) FROM returns
		    WHERE created_at >= $1 AND created_at < $2),
		   (SELECT COALESCE(SUM(refund_online), 0) FROM returns
		    WHERE created_at >= $1 AND created_at < $2),
		   (SELECT COALESCE(SUM(amount), 0) FROM cashbook_entries
		    WHERE created_at >= $1 AND created_at < $2)`,
		dr.From, dr.To).Scan(&cashIn, &onlineIn, &cashRef, &onlineRef, &out)
	if err != nil {
		return NetSums{}, fmt.Errorf("net sums: %w", err)
	}
	return NetSums{
		CashCollected:   money.FromFloat(cashIn),
		CashRefunded:    money.FromFloat(cashRef),
		CashOut:         money.FromFloat(out),
		OnlineCollected: money.FromFloat(onlineIn),
		OnlineRefunded:  money.FromFloat(onlineRef),
	}, nil
}
