package cashbook

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/obs"
)

// closingKey is the Redis hash holding closing balances, one field per date.
const closingKey = "cashbook:closing"

// BalanceCache memoizes per-day closing balances. The chain folds forward,
// so any write on day D invalidates every cached field for dates >= D.
type BalanceCache struct {
	R   *redis.Client
	TTL time.Duration
}

// Get returns the cached closing balance for a date, if present.
func (c *BalanceCache) Get(ctx context.Context, day time.Time) (decimal.Decimal, bool, error) {
	if c == nil || c.R == nil {
		return decimal.Zero, false, nil
	}
	raw, err := c.R.HGet(ctx, closingKey, day.Format(common.DateLayout)).Result()
	if errors.Is(err, redis.Nil) {
		obs.CashbookCacheTotal.WithLabelValues("miss").Inc()
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	bal, err := decimal.NewFromString(raw)
	if err != nil {
		// A corrupt field is treated as a miss and overwritten on next Set.
		obs.CashbookCacheTotal.WithLabelValues("miss").Inc()
		return decimal.Zero, false, nil
	}
	obs.CashbookCacheTotal.WithLabelValues("hit").Inc()
	return bal, true, nil
}

// Set stores the closing balance for a date and refreshes the hash TTL.
func (c *BalanceCache) Set(ctx context.Context, day time.Time, balance decimal.Decimal) error {
	if c == nil || c.R == nil {
		return nil
	}
	pipe := c.R.TxPipeline()
	pipe.HSet(ctx, closingKey, day.Format(common.DateLayout), balance.StringFixed(2))
	if c.TTL > 0 {
		pipe.Expire(ctx, closingKey, c.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateFrom drops every cached closing balance for dates >= the given
// day. Date fields are ISO formatted, so a plain string compare orders them.
func (c *BalanceCache) InvalidateFrom(ctx context.Context, day time.Time) error {
	if c == nil || c.R == nil {
		return nil
	}
	cutoff := day.Format(common.DateLayout)
	fields, err := c.R.HKeys(ctx, closingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	stale := fields[:0]
	for _, f := range fields {
		if f >= cutoff {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return c.R.HDel(ctx, closingKey, stale...).Err()
}

// InvalidateAll drops the whole balance hash.
func (c *BalanceCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.R == nil {
		return nil
	}
	return c.R.Del(ctx, closingKey).Err()
}
