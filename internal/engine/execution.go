package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"grid_trading/internal/market"
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

var (
	// ErrOpenPosition is returned when realized PnL is asked for while shares are held.
	ErrOpenPosition = errors.New("position is not flat")
	// ErrFillTimeout is returned when an order is not filled within the fill timeout.
	ErrFillTimeout = errors.New("order not filled in time")
	// ErrOrderRejected is returned when the broker cancels, rejects or expires an order.
	ErrOrderRejected = errors.New("order rejected by broker")
	// ErrQuantityMismatch is returned when the filled quantity differs from the order.
	ErrQuantityMismatch = errors.New("filled quantity does not match order")
)

// Executor moves the held position of a symbol and reports the fill price.
type Executor interface {
	Execute(ctx context.Context, symbol string, current, next int64, snap models.Snapshot) (decimal.Decimal, error)
}

// quotedPrice is the side of the quote a reposition trades against.
func quotedPrice(current, next int64, snap models.Snapshot) decimal.Decimal {
	if next > current {
		return snap.Ask
	}
	return snap.Bid
}

// PaperExecutor fills every order immediately at the quote: buys at the ask,
// sells at the bid.
type PaperExecutor struct{}

func (PaperExecutor) Execute(_ context.Context, _ string, current, next int64, snap models.Snapshot) (decimal.Decimal, error) {
	return quotedPrice(current, next, snap), nil
}

// canceler is implemented by brokers that can withdraw a working order.
type canceler interface {
	CancelOrder(orderID string) error
}

// BrokerExecutor places the order with the broker, then polls until it fills.
// An order still working at the timeout is canceled when the broker allows it.
type BrokerExecutor struct {
	Broker       market.Broker
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewBrokerExecutor(broker market.Broker, poll, timeout time.Duration) *BrokerExecutor {
	if poll <= 0 {
		poll = time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrokerExecutor{Broker: broker, PollInterval: poll, Timeout: timeout}
}

func (b *BrokerExecutor) Execute(ctx context.Context, symbol string, current, next int64, snap models.Snapshot) (decimal.Decimal, error) {
	change := market.PositionChange{Symbol: symbol, Current: current, New: next}
	order, err := b.Broker.SetSecurityPosition(ctx, change)
	if err != nil {
		return decimal.Zero, fmt.Errorf("set position %s %d -> %d: %w", symbol, current, next, err)
	}

	// The order is live at the broker: confirm it even when shutdown is
	// requested, so the booked position matches the broker's.
	pollCtx := context.WithoutCancel(ctx)
	deadline := time.Now().Add(b.Timeout)
	for {
		if order != nil {
			switch order.Status {
			case models.OrderFilled:
				return b.fillPrice(order, change, snap)
			case models.OrderCanceled, models.OrderRejected, models.OrderExpired:
				return decimal.Zero, fmt.Errorf("%w: order %s for %s ended as %s", ErrOrderRejected, order.ID, symbol, order.Status)
			}
		}
		if !time.Now().Before(deadline) {
			b.cancel(symbol, orderID(order))
			return decimal.Zero, fmt.Errorf("%w: order %s for %s after %s", ErrFillTimeout, orderID(order), symbol, b.Timeout)
		}

		time.Sleep(b.PollInterval)

		polled, err := b.Broker.GetOrderStatus(pollCtx, orderID(order))
		if err != nil {
			log.Printf("[%s] WARN: fill poll for order %s failed: %v", symbol, orderID(order), err)
			continue
		}
		order = polled
	}
}

func (b *BrokerExecutor) cancel(symbol, id string) {
	c, ok := b.Broker.(canceler)
	if !ok || id == "" {
		return
	}
	if err := c.CancelOrder(id); err != nil {
		log.Printf("[%s] WARN: cancel timed out order %s: %v", symbol, id, err)
	}
}

func (b *BrokerExecutor) fillPrice(order *models.Order, change market.PositionChange, snap models.Snapshot) (decimal.Decimal, error) {
	if !order.FilledQty.Equal(money.FromInt(change.Qty())) {
		return decimal.Zero, fmt.Errorf("%w: order %s filled %s of %d", ErrQuantityMismatch, order.ID, order.FilledQty, change.Qty())
	}
	if !order.FilledAvgPrice.IsPositive() {
		q := quotedPrice(change.Current, change.New, snap)
		log.Printf("[%s] WARN: order %s has no average fill price, using quote %s", change.Symbol, order.ID, q)
		return q, nil
	}
	return order.FilledAvgPrice, nil
}

func orderID(o *models.Order) string {
	if o == nil {
		return ""
	}
	return o.ID
}

// ApplyPositionChange books a reposition from prev to next at the fill price:
// commission is charged on the traded quantity, buys spend cash and sells
// receive it. The trading log gains one entry and, when the position is
// flat afterwards, realized PnL is updated.
func ApplyPositionChange(st *models.StockState, prev, next int64, snap models.Snapshot, fill decimal.Decimal) models.TradingLog {
	action := models.Sell
	if next > prev {
		action = models.Buy
	}
	qty := next - prev
	if qty < 0 {
		qty = -qty
	}
	shares := money.FromInt(qty)

	st.NetPositionValue = money.Sub(st.NetPositionValue, money.Mul(shares, st.CommissionPerShare))
	if action == models.Buy {
		st.NetPositionValue = money.Sub(st.NetPositionValue, money.Mul(shares, fill))
	} else {
		st.NetPositionValue = money.Add(st.NetPositionValue, money.Mul(shares, fill))
	}
	st.Position = next

	entry := models.TradingLog{
		Action:           action,
		Timestamp:        snap.Timestamp,
		QuotedPrice:      quotedPrice(prev, next, snap),
		FillPrice:        fill,
		PreviousPosition: prev,
		NewPosition:      next,
	}
	st.TradingLog = append(st.TradingLog, entry)

	if next == 0 {
		st.RealizedPnL = st.NetPositionValue
		if pct, err := RealizedPnLPct(st); err == nil {
			st.RealizedPnLPct = pct
		}
	}
	return entry
}

// capital is the notional the PnL percentages are expressed against.
func capital(st *models.StockState) decimal.Decimal {
	return money.Mul(money.FromInt(st.TargetPosition+st.SharesPerInterval), st.InitialPrice)
}

// RealizedPnLPct returns the net position value as a percentage of capital.
// It is only defined while the position is flat.
func RealizedPnLPct(st *models.StockState) (decimal.Decimal, error) {
	if st.Position != 0 {
		return decimal.Zero, fmt.Errorf("%s: %w (%d shares)", st.Symbol, ErrOpenPosition, st.Position)
	}
	return money.Percent(st.NetPositionValue, capital(st)), nil
}

// ExitPnLPct is the PnL percentage of flattening now: longs sell at the last
// bid, shorts buy back at the last ask, commission included.
func ExitPnLPct(st *models.StockState) decimal.Decimal {
	price := st.LastBid
	if st.Position < 0 {
		price = st.LastAsk
	}
	abs := st.Position
	if abs < 0 {
		abs = -abs
	}
	value := money.Sub(st.NetPositionValue, money.Mul(money.FromInt(abs), st.CommissionPerShare))
	value = money.Add(value, money.Mul(money.FromInt(st.Position), price))
	return money.Percent(value, capital(st))
}

// updateExitPnL recomputes the exit PnL and its high/low watermarks.
func updateExitPnL(st *models.StockState) {
	st.ExitPnLPct = ExitPnLPct(st)
	st.ExitPnLHigh = money.Max(st.ExitPnLHigh, st.ExitPnLPct)
	st.ExitPnLLow = money.Min(st.ExitPnLLow, st.ExitPnLPct)
}
