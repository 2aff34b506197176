package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// Store persists items and the stock-movement ledger.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateItem inserts a new item.
func (s Store) CreateItem(ctx context.Context, name string, mrp decimal.Decimal, stock int64) (Item, error) {
	var it Item
	var mrpF float64
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO items (name, mrp, stock) VALUES ($1, $2, $3)
		 RETURNING id, name, mrp, stock, created_at`,
		name, mrp, stock)
	if err := row.Scan(&it.ID, &it.Name, &mrpF, &it.Stock, &it.CreatedAt); err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	it.MRP = money.FromFloat(mrpF)
	return it, nil
}

// GetItem fetches a single item by id.
func (s Store) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	var mrpF float64
	row := s.Pool.QueryRow(ctx,
		`SELECT id, name, mrp, stock, created_at FROM items WHERE id = $1`, id)
	if err := row.Scan(&it.ID, &it.Name, &mrpF, &it.Stock, &it.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFound(fmt.Sprintf("item %d not found", id))
		}
		return Item{}, fmt.Errorf("get item: %w", err)
	}
	it.MRP = money.FromFloat(mrpF)
	return it, nil
}

// ListItems returns items, optionally filtered by a case-insensitive name
// match, most recent first. Pages with limit+1 so callers can detect more.
func (s Store) ListItems(ctx context.Context, query string, limit, offset int) ([]Item, error) {
	sql := `SELECT id, name, mrp, stock, created_at FROM items`
	args := []any{}
	if q := strings.TrimSpace(query); q != "" {
		sql += ` WHERE lower(name) LIKE $1`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	sql += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var mrpF float64
		if err := rows.Scan(&it.ID, &it.Name, &mrpF, &it.Stock, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.MRP = money.FromFloat(mrpF)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateItem changes the name and/or price of an item. Stock changes go
// through AdjustStock so the ledger stays complete.
func (s Store) UpdateItem(ctx context.Context, id int64, name *string, mrp *decimal.Decimal) (Item, error) {
	sets := []string{}
	args := []any{}
	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *name)
	}
	if mrp != nil {
		sets = append(sets, fmt.Sprintf("mrp = $%d", len(args)+1))
		args = append(args, *mrp)
	}
	if len(sets) == 0 {
		return s.GetItem(ctx, id)
	}
	args = append(args, id)
	sql := fmt.Sprintf(
		`UPDATE items SET %s WHERE id = $%d RETURNING id, name, mrp, stock, created_at`,
		strings.Join(sets, ", "), len(args))

	var it Item
	var mrpF float64
	if err := s.Pool.QueryRow(ctx, sql, args...).Scan(&it.ID, &it.Name, &mrpF, &it.Stock, &it.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.NotFound(fmt.Sprintf("item %d not found", id))
		}
		return Item{}, fmt.Errorf("update item: %w", err)
	}
	it.MRP = money.FromFloat(mrpF)
	return it, nil
}

// AdjustStock applies a manual delta and records it in the ledger within one
// transaction. Negative adjustments may not take stock below zero.
func (s Store) AdjustStock(ctx context.Context, id int64, delta int64, note string) (Item, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Item{}, err
	}
	defer tx.Rollback(ctx)

	var it Item
	var mrpF float64
	row := tx.QueryRow(ctx,
		`UPDATE items SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0
		 RETURNING id, name, mrp, stock, created_at`, id, delta)
	if err := row.Scan(&it.ID, &it.Name, &mrpF, &it.Stock, &it.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, common.ValidationError("item not found or adjustment would make stock negative")
		}
		return Item{}, fmt.Errorf("adjust stock: %w", err)
	}
	it.MRP = money.FromFloat(mrpF)

	if _, err := tx.Exec(ctx,
		`INSERT INTO stock_movements (item_id, delta, reason, ref_type, ref_id, note)
		 VALUES ($1, $2, $3, 'ADJUST', $1, $4)`,
		id, delta, ReasonAdjust, note); err != nil {
		return Item{}, fmt.Errorf("record adjustment: %w", err)
	}
	return it, tx.Commit(ctx)
}

// ListMovements returns stock-ledger rows, newest first, optionally scoped to
// one item and a date range.
func (s Store) ListMovements(ctx context.Context, itemID *int64, dr common.DateRange, limit, offset int) ([]Movement, error) {
	sql := `SELECT id, item_id, ts, delta, reason, ref_type, ref_id, COALESCE(note, '')
	        FROM stock_movements WHERE TRUE`
	args := []any{}
	if itemID != nil {
		sql += fmt.Sprintf(` AND item_id = $%d`, len(args)+1)
		args = append(args, *itemID)
	}
	if dr.Valid() {
		sql += fmt.Sprintf(` AND ts >= $%d AND ts < $%d`, len(args)+1, len(args)+2)
		args = append(args, dr.From, dr.To)
	}
	sql += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.At, &m.Delta, &m.Reason, &m.RefType, &m.RefID, &m.Note); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
