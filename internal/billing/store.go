package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/credit"
	"github.com/nikhilpal/kirana-pos/internal/inventory"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Store persists bills and their append-only payment rows.
type Store struct {
	Pool *pgxpool.Pool
}

// LineInput is one requested sale line. Price is never taken from the client;
// the MRP is read from the item row under lock.
type LineInput struct {
	ItemID   int64
	Quantity int64
}

// CreateBillParams carries everything needed to finalize a sale. Field-level
// validation happens in the service; amount-vs-total checks happen inside the
// transaction because the computed total is only known once item rows are
// locked.
type CreateBillParams struct {
	Lines           []LineInput
	DiscountPercent decimal.Decimal
	TaxPercent      decimal.Decimal
	FinalOverride   *decimal.Decimal
	Mode            PaymentMode
	SplitCash       decimal.Decimal
	SplitOnline     decimal.Decimal
	Notes           string

	// Exchange marks the bill as the outgoing half of an exchange: stock
	// movements log as EXCHANGE_OUT and the payment fields carry the
	// settlement flows rather than the bill total.
	Exchange *ExchangeTerms
}

// ExchangeTerms is the settlement outcome applied to an exchange bill. The
// amounts are what the customer actually handed over, which is zero when the
// exchange netted to a refund or to even.
type ExchangeTerms struct {
	PaymentCash   decimal.Decimal
	PaymentOnline decimal.Decimal
}

// CreateBill finalizes a sale in a single transaction: it locks the item rows,
// recomputes totals from stored prices, deducts stock, records SALE movements
// and, for non-credit modes, an initial payment row equal to the final total.
func (s Store) CreateBill(ctx context.Context, p CreateBillParams) (Bill, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Bill{}, err
	}
	defer tx.Rollback(ctx)

	bill, err := s.CreateBillTx(ctx, tx, p)
	if err != nil {
		return Bill{}, err
	}
	return bill, tx.Commit(ctx)
}

// CreateBillTx is CreateBill running inside a caller-owned transaction, so an
// exchange can settle a return and issue the replacement bill atomically.
func (s Store) CreateBillTx(ctx context.Context, tx pgx.Tx, p CreateBillParams) (Bill, error) {
	// Lock items in id order so concurrent sales never deadlock.
	sorted := make([]LineInput, len(p.Lines))
	copy(sorted, p.Lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	type locked struct {
		name string
		mrp  decimal.Decimal
	}
	items := make(map[int64]locked, len(sorted))
	for _, ln := range sorted {
		var name string
		var mrpF float64
		var stock int64
		row := tx.QueryRow(ctx,
			`SELECT name, mrp, stock FROM items WHERE id = $1 FOR UPDATE`, ln.ItemID)
		if err := row.Scan(&name, &mrpF, &stock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Bill{}, common.ValidationError(fmt.Sprintf("item %d not found", ln.ItemID))
			}
			return Bill{}, fmt.Errorf("lock item %d: %w", ln.ItemID, err)
		}
		if stock < ln.Quantity {
			return Bill{}, common.ValidationError(
				fmt.Sprintf("insufficient stock for %q: have %d, need %d", name, stock, ln.Quantity))
		}
		items[ln.ItemID] = locked{name: name, mrp: money.FromFloat(mrpF)}
	}

	totalLines := make([]TotalLine, 0, len(p.Lines))
	billLines := make([]BillLine, 0, len(p.Lines))
	for _, ln := range p.Lines {
		it := items[ln.ItemID]
		totalLines = append(totalLines, TotalLine{UnitPrice: it.mrp, Quantity: ln.Quantity})
		billLines = append(billLines, BillLine{
			ItemID:    ln.ItemID,
			ItemName:  it.name,
			MRP:       it.mrp,
			Quantity:  ln.Quantity,
			LineTotal: it.mrp.Mul(decimal.NewFromInt(ln.Quantity)),
		})
	}

	totals := ComputeTotals(totalLines, p.DiscountPercent, p.TaxPercent)
	final := totals.Total
	if p.FinalOverride != nil {
		final = money.Round2(*p.FinalOverride)
	}

	bill := Bill{
		Lines:           billLines,
		DiscountPercent: p.DiscountPercent,
		TaxPercent:      p.TaxPercent,
		Subtotal:        totals.Subtotal,
		ComputedTotal:   totals.Total,
		FinalTotal:      final,
		PaymentMode:     p.Mode,
		PaymentCash:     decimal.Zero,
		PaymentOnline:   decimal.Zero,
		Notes:           p.Notes,
	}

	if p.Exchange != nil {
		bill.PaymentCash = money.Round2(p.Exchange.PaymentCash)
		bill.PaymentOnline = money.Round2(p.Exchange.PaymentOnline)
	} else {
		switch p.Mode {
		case ModeCash:
			bill.PaymentCash = final
		case ModeOnline:
			bill.PaymentOnline = final
		case ModeSplit:
			if !money.Equal2(p.SplitCash.Add(p.SplitOnline), final) {
				return Bill{}, common.ValidationError(fmt.Sprintf(
					"split amounts must equal the bill total %s", final.StringFixed(2)))
			}
			bill.PaymentCash = money.Round2(p.SplitCash)
			bill.PaymentOnline = money.Round2(p.SplitOnline)
		case ModeCredit:
			bill.IsCredit = true
		}
	}

	if bill.IsCredit {
		bill.PaymentStatus = credit.StatusUnpaid
		bill.PaidAmount = decimal.Zero
	} else {
		bill.PaymentStatus = credit.StatusPaid
		bill.PaidAmount = final
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO bills (discount_percent, tax_percent, subtotal, computed_total, final_total,
		                    payment_mode, payment_cash, payment_online, notes, is_credit,
		                    payment_status, paid_amount, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         CASE WHEN $10 THEN NULL ELSE now() END)
		 RETURNING id, created_at, paid_at`,
		bill.DiscountPercent, bill.TaxPercent, bill.Subtotal, bill.ComputedTotal, bill.FinalTotal,
		bill.PaymentMode, bill.PaymentCash, bill.PaymentOnline, bill.Notes, bill.IsCredit,
		bill.PaymentStatus, bill.PaidAmount)
	if err := row.Scan(&bill.ID, &bill.CreatedAt, &bill.PaidAt); err != nil {
		return Bill{}, fmt.Errorf("insert bill: %w", err)
	}

	reason, refType := inventory.ReasonSale, "BILL"
	if p.Exchange != nil {
		reason, refType = inventory.ReasonExchangeOut, "EXCHANGE"
	}
	for _, ln := range bill.Lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bill_items (bill_id, item_id, item_name, mrp, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			bill.ID, ln.ItemID, ln.ItemName, ln.MRP, ln.Quantity, ln.LineTotal); err != nil {
			return Bill{}, fmt.Errorf("insert bill line: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE items SET stock = stock - $2 WHERE id = $1`, ln.ItemID, ln.Quantity); err != nil {
			return Bill{}, fmt.Errorf("deduct stock: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO stock_movements (item_id, delta, reason, ref_type, ref_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			ln.ItemID, -ln.Quantity, reason, refType, bill.ID); err != nil {
			return Bill{}, fmt.Errorf("record sale movement: %w", err)
		}
	}

	if !bill.IsCredit {
		note := "at sale"
		if p.Exchange != nil {
			note = "exchange settlement"
			if bill.PaymentCash.IsZero() && bill.PaymentOnline.IsZero() {
				return bill, nil
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO bill_payments (bill_id, mode, cash_amount, online_amount, note)
			 VALUES ($1, $2, $3, $4, $5)`,
			bill.ID, bill.PaymentMode, bill.PaymentCash, bill.PaymentOnline, note); err != nil {
			return Bill{}, fmt.Errorf("insert sale payment: %w", err)
		}
	}
	return bill, nil
}

const billColumns = `id, created_at, discount_percent, tax_percent, subtotal, computed_total,
	final_total, payment_mode, payment_cash, payment_online, COALESCE(notes, ''), is_credit,
	payment_status, paid_amount, paid_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var disc, tax, sub, comp, final, cash, online, paid float64
	err := row.Scan(&b.ID, &b.CreatedAt, &disc, &tax, &sub, &comp, &final,
		&b.PaymentMode, &cash, &online, &b.Notes, &b.IsCredit,
		&b.PaymentStatus, &paid, &b.PaidAt)
	if err != nil {
		return Bill{}, err
	}
	b.DiscountPercent = money.FromFloat(disc)
	b.TaxPercent = money.FromFloat(tax)
	b.Subtotal = money.FromFloat(sub)
	b.ComputedTotal = money.FromFloat(comp)
	b.FinalTotal = money.FromFloat(final)
	b.PaymentCash = money.FromFloat(cash)
	b.PaymentOnline = money.FromFloat(online)
	b.PaidAmount = money.FromFloat(paid)
	return b, nil
}

// GetBill fetches a bill with its lines.
func (s Store) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.getBill(ctx, s.Pool, id)
}

// GetBillTx fetches a bill with its lines using a caller-owned transaction,
// typically right after SELECT ... FOR UPDATE style flows.
func (s Store) GetBillTx(ctx context.Context, tx pgx.Tx, id int64) (Bill, error) {
	return s.getBill(ctx, tx, id)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s Store) getBill(ctx context.Context, q querier, id int64) (Bill, error) {
	b, err := scanBill(q.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, common.NotFound(fmt.Sprintf("bill %d not found", id))
		}
		return Bill{}, fmt.Errorf("get bill: %w", err)
	}
	lines, err := s.billLines(ctx, q, id)
	if err != nil {
		return Bill{}, err
	}
	b.Lines = lines
	return b, nil
}

func (s Store) billLines(ctx context.Context, q querier, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx,
		`SELECT item_id, item_name, mrp, quantity, line_total
		 FROM bill_items WHERE bill_id = $1 ORDER BY id`, billID)
	if err != nil {
		return nil, fmt.Errorf("bill lines: %w", err)
	}
	defer rows.Close()

	var out []BillLine
	for rows.Next() {
		var ln BillLine
		var mrpF, totalF float64
		if err := rows.Scan(&ln.ItemID, &ln.ItemName, &mrpF, &ln.Quantity, &totalF); err != nil {
			return nil, err
		}
		ln.MRP = money.FromFloat(mrpF)
		ln.LineTotal = money.FromFloat(totalF)
		out = append(out, ln)
	}
	return out, rows.Err()
}

// ListBills returns bills newest first, optionally filtered by a date range
// and a free-text query matched against the bill id, notes and line item
// names. Lines are loaded per bill.
func (s Store) ListBills(ctx context.Context, dr common.DateRange, query string, limit, offset int) ([]Bill, error) {
	sql := `SELECT ` + billColumns + ` FROM bills b WHERE TRUE`
	args := []any{}
	if dr.Valid() {
		sql += fmt.Sprintf(` AND b.created_at >= $%d AND b.created_at < $%d`, len(args)+1, len(args)+2)
		args = append(args, dr.From, dr.To)
	}
	if q := strings.TrimSpace(query); q != "" {
		n := len(args) + 1
		sql += fmt.Sprintf(` AND (CAST(b.id AS TEXT) = $%d
			OR lower(COALESCE(b.notes, '')) LIKE $%d
			OR EXISTS (SELECT 1 FROM bill_items bi
			           WHERE bi.bill_id = b.id AND lower(bi.item_name) LIKE $%d))`, n, n+1, n+1)
		args = append(args, q, "%"+strings.ToLower(q)+"%")
	}
	sql += fmt.Sprintf(` ORDER BY b.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bills {
		lines, err := s.billLines(ctx, s.Pool, bills[i].ID)
		if err != nil {
			return nil, err
		}
		bills[i].Lines = lines
	}
	return bills, nil
}

// ListCreditBills returns bills still carrying an outstanding balance, oldest
// first so collections work the aging queue front to back.
func (s Store) ListCreditBills(ctx context.Context, limit, offset int) ([]Bill, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+billColumns+` FROM bills
		 WHERE payment_status IN ($1, $2)
		 ORDER BY id ASC LIMIT $3 OFFSET $4`,
		credit.StatusUnpaid, credit.StatusPartial, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list credit bills: %w", err)
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ListPayments returns a bill's payment rows, newest first.
func (s Store) ListPayments(ctx context.Context, billID int64) ([]Payment, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, bill_id, mode, cash_amount, online_amount, received_at, COALESCE(note, '')
		 FROM bill_payments WHERE bill_id = $1 ORDER BY id DESC`, billID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var cash, online float64
		if err := rows.Scan(&p.ID, &p.BillID, &p.Mode, &cash, &online, &p.ReceivedAt, &p.Note); err != nil {
			return nil, err
		}
		p.CashAmount = money.FromFloat(cash)
		p.OnlineAmount = money.FromFloat(online)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PaymentsSummary aggregates money actually received over a range, split by
// channel. This reads payment rows, not bill headers, so credit installments
// land on the day they were collected.
type PaymentsSummary struct {
	Cash   decimal.Decimal `json:"cash"`
	Online decimal.Decimal `json:"online"`
	Total  decimal.Decimal `json:"total"`
}

// SummarizePayments sums payment rows over a date range.
func (s Store) SummarizePayments(ctx context.Context, dr common.DateRange) (PaymentsSummary, error) {
	sql := `SELECT COALESCE(SUM(cash_amount), 0), COALESCE(SUM(online_amount), 0)
	        FROM bill_payments WHERE TRUE`
	args := []any{}
	if dr.Valid() {
		sql += ` AND received_at >= $1 AND received_at < $2`
		args = append(args, dr.From, dr.To)
	}
	var cash, online float64
	if err := s.Pool.QueryRow(ctx, sql, args...).Scan(&cash, &online); err != nil {
		return PaymentsSummary{}, fmt.Errorf("payments summary: %w", err)
	}
	sum := PaymentsSummary{Cash: money.FromFloat(cash), Online: money.FromFloat(online)}
	sum.Total = sum.Cash.Add(sum.Online)
	return sum, nil
}

// SalesBucket is one row of the sales aggregate: gross billed, amount already
// collected and the outstanding remainder for the bucket.
type SalesBucket struct {
	Period  string          `json:"period"`
	Bills   int64           `json:"bills"`
	Gross   decimal.Decimal `json:"gross"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
}

// AggregateSales groups bills by calendar day or month.
func (s Store) AggregateSales(ctx context.Context, period string, dr common.DateRange) ([]SalesBucket, error) {
	var trunc, layout string
	switch period {
	case "month":
		trunc, layout = "month", "2006-01"
	default:
		trunc, layout = "day", common.DateLayout
	}
	sql := fmt.Sprintf(`SELECT date_trunc('%s', created_at) AS bucket, COUNT(*),
	        COALESCE(SUM(final_total), 0), COALESCE(SUM(paid_amount), 0)
	        FROM bills WHERE TRUE`, trunc)
	args := []any{}
	if dr.Valid() {
		sql += ` AND created_at >= $1 AND created_at < $2`
		args = append(args, dr.From, dr.To)
	}
	sql += ` GROUP BY bucket ORDER BY bucket DESC`

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate sales: %w", err)
	}
	defer rows.Close()

	var out []SalesBucket
	for rows.Next() {
		var bucket time.Time
		var b SalesBucket
		var gross, paid float64
		if err := rows.Scan(&bucket, &b.Bills, &gross, &paid); err != nil {
			return nil, err
		}
		b.Period = bucket.Format(layout)
		b.Gross = money.FromFloat(gross)
		b.Paid = money.FromFloat(paid)
		b.Pending = money.Round2(decimal.Max(decimal.Zero, b.Gross.Sub(b.Paid)))
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddPayment appends a payment row and recomputes the bill's paid amount from
// the payment ledger inside one transaction. The new status is derived from
// the recomputed figure, never incremented in place.
func (s Store) AddPayment(ctx context.Context, billID int64, mode PaymentMode, cash, online decimal.Decimal, note string) (Bill, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Bill{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO bill_payments (bill_id, mode, cash_amount, online_amount, note)
		 VALUES ($1, $2, $3, $4, $5)`,
		billID, mode, cash, online, note); err != nil {
		return Bill{}, fmt.Errorf("insert payment: %w", err)
	}

	var finalF, paidF float64
	row := tx.QueryRow(ctx,
		`SELECT final_total,
		        (SELECT COALESCE(SUM(cash_amount + online_amount), 0)
		         FROM bill_payments WHERE bill_id = $1)
		 FROM bills WHERE id = $1 FOR UPDATE`, billID)
	if err := row.Scan(&finalF, &paidF); err != nil {
		return Bill{}, fmt.Errorf("recompute paid: %w", err)
	}
	final := money.FromFloat(finalF)
	paid := money.FromFloat(paidF)
	status := credit.DeriveStatus(final, paid)

	if _, err := tx.Exec(ctx,
		`UPDATE bills SET paid_amount = $2, payment_status = $3,
		        paid_at = CASE WHEN $3 = $4 THEN now() ELSE paid_at END
		 WHERE id = $1`, billID, paid, status, credit.StatusPaid); err != nil {
		return Bill{}, fmt.Errorf("update bill payment state: %w", err)
	}

	bill, err := s.getBill(ctx, tx, billID)
	if err != nil {
		return Bill{}, err
	}
	return bill, tx.Commit(ctx)
}
