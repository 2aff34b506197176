package cashbook

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/money"
)

// EntryStore is the persistence surface the service needs.
type EntryStore interface {
	CreateEntry(ctx context.Context, typ EntryType, amount decimal.Decimal, note string) (Entry, error)
	ListEntries(ctx context.Context, dr common.DateRange, limit, offset int) ([]Entry, error)
	DeleteEntry(ctx context.Context, id int64) (Entry, error)
	DeleteLast(ctx context.Context, dr common.DateRange) (Entry, error)
	ClearRange(ctx context.Context, dr common.DateRange) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	CashReceipts(ctx context.Context, dr common.DateRange) ([]Receipt, error)
	BalanceBefore(ctx context.Context, ts time.Time) (decimal.Decimal, error)
	SummarizeRange(ctx context.Context, dr common.DateRange) (RangeSummary, error)
	SumNet(ctx context.Context, dr common.DateRange) (NetSums, error)
}

// dayEntryLimit bounds how many manual rows a single day view loads. A drawer
// never sees anywhere near this many movements in a day.
const dayEntryLimit = 10000

// Service materializes day views and keeps the closing-balance cache honest
// across mutations.
type Service struct {
	Store EntryStore
	Cache *BalanceCache
}

// CreateEntry records a manual withdrawal or expense.
func (s *Service) CreateEntry(ctx context.Context, typ EntryType, amount decimal.Decimal, note string) (Entry, error) {
	if !ManualEntryType(typ) {
		return Entry{}, common.ValidationError("entry_type must be WITHDRAWAL or EXPENSE")
	}
	if !amount.IsPositive() {
		return Entry{}, common.ValidationError("amount must be positive")
	}
	entry, err := s.Store.CreateEntry(ctx, typ, money.Round2(amount), note)
	if err != nil {
		return Entry{}, err
	}
	if err := s.Cache.InvalidateFrom(ctx, entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Day builds the materialized view for one calendar date. The opening balance
// is the previous day's closing, served from cache when possible; both ends
// of the day get their closing figure cached on the way out.
func (s *Service) Day(ctx context.Context, date time.Time) (Day, error) {
	dayStart, dayEnd := common.DayBounds(date)
	prevDay := dayStart.AddDate(0, 0, -1)

	opening, ok, err := s.Cache.Get(ctx, prevDay)
	if err != nil {
		return Day{}, err
	}
	if !ok {
		opening, err = s.Store.BalanceBefore(ctx, dayStart)
		if err != nil {
			return Day{}, err
		}
		if err := s.Cache.Set(ctx, prevDay, opening); err != nil {
			return Day{}, err
		}
	}

	dr := common.DateRange{From: dayStart, To: dayEnd}
	manual, err := s.Store.ListEntries(ctx, dr, dayEntryLimit, 0)
	if err != nil {
		return Day{}, err
	}
	receipts, err := s.Store.CashReceipts(ctx, dr)
	if err != nil {
		return Day{}, err
	}

	day := MaterializeDay(dayStart, opening, manual, receipts)
	if err := s.Cache.Set(ctx, dayStart, day.ClosingBalance); err != nil {
		return Day{}, err
	}
	return day, nil
}

// NetPosition is the money view for one date: what the drawer and the online
// account actually gained after refunds and cash-outs.
type NetPosition struct {
	Date      string          `json:"date"`
	Sums      NetSums         `json:"sums"`
	NetCash   decimal.Decimal `json:"net_cash"`
	NetOnline decimal.Decimal `json:"net_online"`
}

// Net computes the net cash-in-hand and net online figures for a date.
func (s *Service) Net(ctx context.Context, date time.Time) (NetPosition, error) {
	dayStart, dayEnd := common.DayBounds(date)
	sums, err := s.Store.SumNet(ctx, common.DateRange{From: dayStart, To: dayEnd})
	if err != nil {
		return NetPosition{}, err
	}
	return NetPosition{
		Date:      dayStart.Format(common.DateLayout),
		Sums:      sums,
		NetCash:   money.Round2(sums.CashCollected.Sub(sums.CashRefunded).Sub(sums.CashOut)),
		NetOnline: money.Round2(sums.OnlineCollected.Sub(sums.OnlineRefunded)),
	}, nil
}

// DeleteEntry removes one manual entry and invalidates the balance chain from
// its day forward.
func (s *Service) DeleteEntry(ctx context.Context, id int64) (Entry, error) {
	entry, err := s.Store.DeleteEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.Cache.InvalidateFrom(ctx, entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// DeleteLast removes the newest manual entry in the range, today when no
// range is given.
func (s *Service) DeleteLast(ctx context.Context, dr common.DateRange) (Entry, error) {
	if !dr.Valid() {
		from, to := common.DayBounds(time.Now())
		dr = common.DateRange{From: from, To: to}
	}
	entry, err := s.Store.DeleteLast(ctx, dr)
	if err != nil {
		return Entry{}, err
	}
	if err := s.Cache.InvalidateFrom(ctx, entry.CreatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ClearToday deletes today's manual entries. Synthetic rows are projections
// and are untouched by definition.
func (s *Service) ClearToday(ctx context.Context) (int64, error) {
	from, to := common.DayBounds(time.Now())
	n, err := s.Store.ClearRange(ctx, common.DateRange{From: from, To: to})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := s.Cache.InvalidateFrom(ctx, from); err != nil {
			return n, err
		}
	}
	return n, nil
}

// ClearAll deletes every manual entry and the whole balance cache.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.Store.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.Cache.InvalidateAll(ctx); err != nil {
		return n, err
	}
	return n, nil
}
