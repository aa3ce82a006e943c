package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grid_trading/internal/grid"
	"grid_trading/internal/market"
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FakeBroker answers order polls from a scripted list of statuses.
type FakeBroker struct {
	mu       sync.Mutex
	changes  []market.PositionChange
	statuses []models.Order
	polls    int
	placeErr error
	canceled []string
}

func (f *FakeBroker) GetSnapshot(context.Context, string) (models.Snapshot, error) {
	return q("9.99", "10.00", 0), nil
}

func (f *FakeBroker) SetSecurityPosition(_ context.Context, c market.PositionChange) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.changes = append(f.changes, c)
	return &models.Order{ID: "ord-1", Symbol: c.Symbol, Status: "new"}, nil
}

func (f *FakeBroker) GetOrderStatus(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	o := f.statuses[i]
	o.ID = id
	return &o, nil
}

func (f *FakeBroker) CancelOrder(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *FakeBroker) GetClock(context.Context) (*models.Clock, error) {
	return &models.Clock{IsOpen: true}, nil
}

func fastExecutor(b market.Broker) *BrokerExecutor {
	return NewBrokerExecutor(b, time.Millisecond, 50*time.Millisecond)
}

func TestBrokerExecutor_PollsUntilFilled(t *testing.T) {
	broker := &FakeBroker{statuses: []models.Order{
		{Status: "new"},
		{Status: "partially_filled", FilledQty: money.FromInt(4)},
		{Status: models.OrderFilled, FilledQty: money.FromInt(10), FilledAvgPrice: money.MustParse("9.47")},
	}}

	fill, err := fastExecutor(broker).Execute(context.Background(), "ABC", 0, 10, q("9.48", "9.49", 0))
	require.NoError(t, err)
	assert.True(t, fill.Equal(money.MustParse("9.47")), "broker average price wins over the quote")
	assert.Equal(t, 3, broker.polls)
	require.Len(t, broker.changes, 1)
	assert.Equal(t, market.PositionChange{Symbol: "ABC", Current: 0, New: 10}, broker.changes[0])
}

func TestBrokerExecutor_Rejected(t *testing.T) {
	broker := &FakeBroker{statuses: []models.Order{{Status: models.OrderRejected}}}
	_, err := fastExecutor(broker).Execute(context.Background(), "ABC", 10, 0, q("9.48", "9.49", 0))
	assert.ErrorIs(t, err, ErrOrderRejected)
}

func TestBrokerExecutor_Timeout(t *testing.T) {
	broker := &FakeBroker{statuses: []models.Order{{Status: "new"}}}
	_, err := fastExecutor(broker).Execute(context.Background(), "ABC", 0, 10, q("9.48", "9.49", 0))
	assert.ErrorIs(t, err, ErrFillTimeout)
	assert.Equal(t, []string{"ord-1"}, broker.canceled, "working order is canceled on timeout")
}

func TestBrokerExecutor_QuantityMismatch(t *testing.T) {
	broker := &FakeBroker{statuses: []models.Order{
		{Status: models.OrderFilled, FilledQty: money.FromInt(5), FilledAvgPrice: money.MustParse("9.49")},
	}}
	_, err := fastExecutor(broker).Execute(context.Background(), "ABC", 0, 10, q("9.48", "9.49", 0))
	assert.ErrorIs(t, err, ErrQuantityMismatch)
}

func TestBrokerExecutor_PlaceError(t *testing.T) {
	boom := errors.New("insufficient buying power")
	broker := &FakeBroker{placeErr: boom}
	_, err := fastExecutor(broker).Execute(context.Background(), "ABC", 0, 10, q("9.48", "9.49", 0))
	assert.ErrorIs(t, err, boom)
}

func TestBrokerExecutor_ShutdownWaitsForPlacedOrder(t *testing.T) {
	broker := &FakeBroker{statuses: []models.Order{
		{Status: "new"},
		{Status: "new"},
		{Status: models.OrderFilled, FilledQty: money.FromInt(10), FilledAvgPrice: money.MustParse("9.47")},
	}}
	st := newState(t, exampleParams(), grid.Meta{})
	exec := NewBrokerExecutor(broker, 3*time.Millisecond, time.Second)
	e, err := New(st, &scriptedSource{snaps: []models.Snapshot{q("9.48", "9.49", 0)}}, exec, nil, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stop := time.AfterFunc(5*time.Millisecond, cancel)
	defer stop.Stop()

	res, err := e.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, broker.changes, 1)
	assert.Equal(t, 3, broker.polls)
	assert.Equal(t, 1, res.Fills)
	assert.Equal(t, int64(10), st.Position, "the filled order is booked")
	require.Len(t, st.TradingLog, 1)
	assert.True(t, st.TradingLog[0].FillPrice.Equal(money.MustParse("9.47")))
	assert.True(t, st.Intervals[st.LongRung(1)].Filled())
}

func TestPaperExecutor(t *testing.T) {
	snap := q("9.48", "9.49", 0)
	buy, _ := PaperExecutor{}.Execute(context.Background(), "ABC", 0, 10, snap)
	sell, _ := PaperExecutor{}.Execute(context.Background(), "ABC", 10, 0, snap)
	assert.True(t, buy.Equal(snap.Ask))
	assert.True(t, sell.Equal(snap.Bid))
}

func TestRealizedPnLPct_RequiresFlat(t *testing.T) {
	st := newState(t, exampleParams(), grid.Meta{})
	ApplyPositionChange(st, 0, 10, q("9.48", "9.49", 0), money.MustParse("9.49"))

	_, err := RealizedPnLPct(st)
	assert.ErrorIs(t, err, ErrOpenPosition)
	_, err = RealizedPnLPct(st)
	assert.ErrorIs(t, err, ErrOpenPosition, "fails the same way every time")

	ApplyPositionChange(st, 10, 0, q("9.60", "9.61", 1), money.MustParse("9.60"))
	pct, err := RealizedPnLPct(st)
	require.NoError(t, err)
	// 1.10 on (50 + 10) * 10
	assert.True(t, pct.Equal(money.MustParse("0.1833")), "pct %s", pct)
}

func TestApplyPositionChange_Commission(t *testing.T) {
	st := newState(t, exampleParams(), grid.Meta{CommissionPerShare: money.MustParse("0.005")})
	entry := ApplyPositionChange(st, 0, -20, q("9.70", "9.71", 0), money.MustParse("9.70"))

	assert.Equal(t, models.Sell, entry.Action)
	assert.True(t, entry.QuotedPrice.Equal(money.MustParse("9.70")))
	// +194.00 - 0.10
	assert.True(t, st.NetPositionValue.Equal(money.MustParse("193.90")))
	assert.Equal(t, int64(-20), st.Position)
	assert.True(t, st.RealizedPnL.IsZero(), "realized PnL moves only when flat")
}

func TestExitPnLPct_ShortUsesAsk(t *testing.T) {
	st := newState(t, exampleParams(), grid.Meta{})
	ApplyPositionChange(st, 0, -10, q("9.70", "9.71", 0), money.MustParse("9.70"))
	st.LastBid = money.MustParse("9.49")
	st.LastAsk = money.MustParse("9.50")

	// 97.00 - 95.00 on 600
	assert.True(t, ExitPnLPct(st).Equal(money.MustParse("0.3333")))
}

func TestUpdateExitPnL_Watermarks(t *testing.T) {
	st := newState(t, exampleParams(), grid.Meta{})
	ApplyPositionChange(st, 0, 10, q("9.99", "10.00", 0), money.MustParse("10.00"))

	for _, bid := range []string{"10.30", "9.40", "10.00"} {
		st.LastBid = money.MustParse(bid)
		updateExitPnL(st)
	}
	assert.True(t, st.ExitPnLHigh.Equal(money.MustParse("0.5")))
	assert.True(t, st.ExitPnLLow.Equal(money.MustParse("-1")))
	assert.True(t, st.ExitPnLPct.IsZero())
}
