package returns

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilpal/kirana-pos/internal/billing"
	"github.com/nikhilpal/kirana-pos/internal/common"
	"github.com/nikhilpal/kirana-pos/internal/obs"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	m.Run()
}

type stubBills struct{ bill billing.Bill }

func (s *stubBills) GetBill(_ context.Context, id int64) (billing.Bill, error) {
	if id != s.bill.ID {
		return billing.Bill{}, common.NotFound("bill not found")
	}
	return s.bill, nil
}

type stubReturns struct {
	returned map[int64]int64
	refunded decimal.Decimal
	created  []Return
}

func (s *stubReturns) CreateReturn(_ context.Context, ret Return) (Return, error) {
	ret.ID = int64(len(s.created) + 1)
	s.created = append(s.created, ret)
	return ret, nil
}

func (s *stubReturns) ReturnedQuantities(_ context.Context, _ int64) (map[int64]int64, error) {
	if s.returned == nil {
		return map[int64]int64{}, nil
	}
	return s.returned, nil
}

func (s *stubReturns) RefundedTotal(_ context.Context, _ int64) (decimal.Decimal, error) {
	return s.refunded, nil
}

type inlineLocker struct{ calls int }

func (l *inlineLocker) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(context.Context) error) error {
	l.calls++
	return fn(ctx)
}

// Bill with a manual override: lines (100 x2, 50 x1), 10% discount, 5% tax,
// computed 236.25, final set to 230.
func overriddenBill() billing.Bill {
	return billing.Bill{
		ID: 9,
		Lines: []billing.BillLine{
			{ItemID: 1, ItemName: "Rice 5kg", MRP: dec(100), Quantity: 2, LineTotal: dec(200)},
			{ItemID: 2, ItemName: "Oil 1L", MRP: dec(50), Quantity: 1, LineTotal: dec(50)},
		},
		DiscountPercent: dec(10),
		TaxPercent:      dec(5),
		Subtotal:        dec(250),
		ComputedTotal:   dec(236.25),
		FinalTotal:      dec(230),
	}
}

func newService(bill billing.Bill, rs *stubReturns) (*Service, *inlineLocker) {
	locker := &inlineLocker{}
	return &Service{
		Returns:   rs,
		Bills:     &stubBills{bill: bill},
		Locker:    locker,
		Tolerance: dec(5),
	}, locker
}

func TestCreateReturnFullRefundsFinalTotal(t *testing.T) {
	rs := &stubReturns{refunded: decimal.Zero}
	svc, locker := newService(overriddenBill(), rs)

	ret, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}},
		RefundMode:   RefundCash,
		RefundCash:   dec(230),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.calls)
	assert.True(t, ret.SubtotalReturn.Equal(dec(230)), "got %s", ret.SubtotalReturn)
	require.Len(t, ret.Items, 2)
	assert.True(t, ret.Items[0].LineTotal.Equal(dec(184)), "got %s", ret.Items[0].LineTotal)
	assert.True(t, ret.Items[1].LineTotal.Equal(dec(46)), "got %s", ret.Items[1].LineTotal)
	assert.True(t, ret.RefundCash.Equal(dec(230)))
	assert.True(t, ret.RefundOnline.IsZero())
}

func TestCreateReturnChunkedFullCoverageSumsToFinalTotal(t *testing.T) {
	// First chunk: both units of item 1, a partial selection priced at its
	// charged share.
	rs := &stubReturns{refunded: decimal.Zero}
	svc, _ := newService(overriddenBill(), rs)

	first, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 1, Quantity: 2}},
		RefundMode:   RefundCash,
		RefundCash:   dec(184),
	})
	require.NoError(t, err)
	assert.True(t, first.SubtotalReturn.Equal(dec(184)), "got %s", first.SubtotalReturn)

	// Second chunk completes the bill; its target is what is left of the
	// final total, not the whole of it.
	rs.returned = map[int64]int64{1: 2}
	rs.refunded = first.SubtotalReturn

	second, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 2, Quantity: 1}},
		RefundMode:   RefundCash,
		RefundCash:   dec(46),
	})
	require.NoError(t, err)
	assert.True(t, second.SubtotalReturn.Equal(dec(46)), "got %s", second.SubtotalReturn)
	assert.True(t, first.SubtotalReturn.Add(second.SubtotalReturn).Equal(dec(230)))
}

func TestCreateReturnRejectsOverQuantity(t *testing.T) {
	rs := &stubReturns{returned: map[int64]int64{1: 1}}
	svc, _ := newService(overriddenBill(), rs)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 1, Quantity: 2}},
		RefundMode:   RefundCash,
		RefundCash:   dec(92),
	})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION", appErr.Code)
	assert.Contains(t, appErr.Message, "remaining 1")
	assert.Empty(t, rs.created)
}

func TestCreateReturnRejectsItemNotOnBill(t *testing.T) {
	rs := &stubReturns{}
	svc, _ := newService(overriddenBill(), rs)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 99, Quantity: 1}},
		RefundMode:   RefundCash,
		RefundCash:   dec(10),
	})
	require.Error(t, err)
	assert.Empty(t, rs.created)
}

func TestCreateReturnRefundTolerance(t *testing.T) {
	rs := &stubReturns{}
	svc, _ := newService(overriddenBill(), rs)

	in := CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 1, Quantity: 2}, {ItemID: 2, Quantity: 1}},
		RefundMode:   RefundCash,
	}

	// 5.00 off the computed 230 is the edge of the tolerance.
	in.RefundCash = dec(235)
	_, err := svc.CreateReturn(context.Background(), in)
	require.NoError(t, err)

	rs.created = nil
	in.RefundCash = dec(236)
	_, err = svc.CreateReturn(context.Background(), in)
	require.Error(t, err)
	assert.Empty(t, rs.created)
}

func TestCreateReturnRefundChannelRules(t *testing.T) {
	rs := &stubReturns{}
	svc, _ := newService(overriddenBill(), rs)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 2, Quantity: 1}},
		RefundMode:   RefundCash,
		RefundCash:   dec(46),
		RefundOnline: dec(1),
	})
	require.Error(t, err)

	_, err = svc.CreateReturn(context.Background(), CreateReturnInput{
		SourceBillID: 9,
		Lines:        []LineRequest{{ItemID: 2, Quantity: 1}},
		RefundMode:   RefundSplit,
		RefundCash:   dec(20),
		RefundOnline: dec(26),
	})
	require.NoError(t, err)
}

func TestSummaryReportsRemaining(t *testing.T) {
	rs := &stubReturns{returned: map[int64]int64{1: 1}}
	svc, _ := newService(overriddenBill(), rs)

	rows, err := svc.Summary(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].Sold)
	assert.Equal(t, int64(1), rows[0].Returned)
	assert.Equal(t, int64(1), rows[0].Remaining)
	assert.Equal(t, int64(1), rows[1].Remaining)
}
