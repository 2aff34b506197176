package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/inventory"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Store persists return records and the returnable-quantity facts derived
// from them.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateReturn persists a valuated return in its own transaction.
func (s Store) CreateReturn(ctx context.Context, ret Return) (Return, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Return{}, err
	}
	defer tx.Rollback(ctx)

	out, err := s.CreateReturnTx(ctx, tx, ret)
	if err != nil {
		return Return{}, err
	}
	return out, tx.Commit(ctx)
}

// CreateReturnTx inserts the return header and items, restocks each item and
// appends the matching stock movements, all inside a caller-owned transaction
// so an exchange can pair it with the replacement bill. The movement reason
// follows the kind: RETURN for plain returns, EXCHANGE_IN for exchanges.
func (s Store) CreateReturnTx(ctx context.Context, tx pgx.Tx, ret Return) (Return, error) {
	reason := inventory.ReasonReturn
	if ret.Kind == KindExchange {
		reason = inventory.ReasonExchangeIn
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO returns (source_bill_id, kind, subtotal_return, refund_cash, refund_online,
		                      rounding_adjustment, exchange_bill_id, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		ret.SourceBillID, ret.Kind, ret.SubtotalReturn, ret.RefundCash, ret.RefundOnline,
		ret.RoundingAdjustment, ret.ExchangeBillID, ret.Notes)
	if err := row.Scan(&ret.ID, &ret.CreatedAt); err != nil {
		return Return{}, fmt.Errorf("insert return: %w", err)
	}

	for _, it := range ret.Items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO return_items (return_id, item_id, item_name, mrp, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ret.ID, it.ItemID, it.ItemName, it.MRP, it.Quantity, it.LineTotal); err != nil {
			return Return{}, fmt.Errorf("insert return item: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE items SET stock = stock + $2 WHERE id = $1`, it.ItemID, it.Quantity); err != nil {
			return Return{}, fmt.Errorf("restock item: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO stock_movements (item_id, delta, reason, ref_type, ref_id, note)
			 VALUES ($1, $2, $3, 'RETURN', $4, $5)`,
			it.ItemID, it.Quantity, reason, ret.ID, fmt.Sprintf("Return #%d", ret.ID)); err != nil {
			return Return{}, fmt.Errorf("record return movement: %w", err)
		}
	}
	return ret, nil
}

// ReturnedQuantities maps item id to the quantity already consumed by prior
// returns and exchanges against a bill.
func (s Store) ReturnedQuantities(ctx context.Context, billID int64) (map[int64]int64, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT ri.item_id, SUM(ri.quantity)
		 FROM return_items ri
		 JOIN returns r ON r.id = ri.return_id
		 WHERE r.source_bill_id = $1
		 GROUP BY ri.item_id`, billID)
	if err != nil {
		return nil, fmt.Errorf("returned quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// RefundedTotal sums the value already refunded against a bill. A completing
// return reconciles to final_total minus this figure, so chunked full returns
// still sum to the cent.
func (s Store) RefundedTotal(ctx context.Context, billID int64) (decimal.Decimal, error) {
	var sum float64
	err := s.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(subtotal_return), 0) FROM returns WHERE source_bill_id = $1`,
		billID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("refunded total: %w", err)
	}
	return money.FromFloat(sum), nil
}

const returnColumns = `id, source_bill_id, kind, created_at, subtotal_return, refund_cash,
	refund_online, rounding_adjustment, exchange_bill_id, COALESCE(notes, '')`

func scanReturn(row pgx.Row) (Return, error) {
	var r Return
	var sub, cash, online, adj float64
	err := row.Scan(&r.ID, &r.SourceBillID, &r.Kind, &r.CreatedAt, &sub, &cash, &online,
		&adj, &r.ExchangeBillID, &r.Notes)
	if err != nil {
		return Return{}, err
	}
	r.SubtotalReturn = money.FromFloat(sub)
	r.RefundCash = money.FromFloat(cash)
	r.RefundOnline = money.FromFloat(online)
	r.RoundingAdjustment = money.FromFloat(adj)
	return r, nil
}

// GetReturn fetches one return with its items.
func (s Store) GetReturn(ctx context.Context, id int64) (Return, error) {
	r, err := scanReturn(s.Pool.QueryRow(ctx,
		`SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, common.NotFound(fmt.Sprintf("return %d not found", id))
		}
		return Return{}, fmt.Errorf("get return: %w", err)
	}
	items, err := s.returnItems(ctx, id)
	if err != nil {
		return Return{}, err
	}
	r.Items = items
	return r, nil
}

func (s Store) returnItems(ctx context.Context, returnID int64) ([]Item, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT item_id, item_name, mrp, quantity, line_total
		 FROM return_items WHERE return_id = $1 ORDER BY id`, returnID)
	if err != nil {
		return nil, fmt.Errorf("return items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var mrpF, totalF float64
		if err := rows.Scan(&it.ItemID, &it.ItemName, &mrpF, &it.Quantity, &totalF); err != nil {
			return nil, err
		}
		it.MRP = money.FromFloat(mrpF)
		it.LineTotal = money.FromFloat(totalF)
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListReturns returns returns newest first within an optional date range.
func (s Store) ListReturns(ctx context.Context, dr common.DateRange, limit, offset int) ([]Return, error) {
	sql := `SELECT ` + returnColumns + ` FROM returns WHERE TRUE`
	args := []any{}
	if dr.Valid() {
		sql += fmt.Sprintf(` AND created_at >= $%d AND created_at < $%d`, len(args)+1, len(args)+2)
		args = append(args, dr.From, dr.To)
	}
	sql += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	defer rows.Close()

	var out []Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := s.returnItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, rows.Err()
}
