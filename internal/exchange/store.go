package exchange

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/returns"
)

// Store runs the two halves of an exchange in one transaction: the return
// restocks first so a customer swapping like for like never trips the stock
// check on the outgoing bill.
type Store struct {
	Pool    *pgxpool.Pool
	Bills   billing.Store
	Returns returns.Store
}

// CreateExchange persists the return half, then the replacement bill, then
// links the two.
func (s Store) CreateExchange(ctx context.Context, ret returns.Return, billParams billing.CreateBillParams) (returns.Return, billing.Bill, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return returns.Return{}, billing.Bill{}, err
	}
	defer tx.Rollback(ctx)

	createdRet, err := s.Returns.CreateReturnTx(ctx, tx, ret)
	if err != nil {
		return returns.Return{}, billing.Bill{}, err
	}
	bill, err := s.Bills.CreateBillTx(ctx, tx, billParams)
	if err != nil {
		return returns.Return{}, billing.Bill{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE returns SET exchange_bill_id = $2 WHERE id = $1`, createdRet.ID, bill.ID); err != nil {
		return returns.Return{}, billing.Bill{}, fmt.Errorf("link exchange bill: %w", err)
	}
	createdRet.ExchangeBillID = &bill.ID

	if err := tx.Commit(ctx); err != nil {
		return returns.Return{}, billing.Bill{}, err
	}
	return createdRet, bill, nil
}
