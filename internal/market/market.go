package market

import (
	"context"
	"errors"
	"fmt"

	"grid_trading/internal/models"
)

// ErrExhausted is returned by a finite source read past its last snapshot.
var ErrExhausted = errors.New("snapshot source exhausted")

// PositionChange asks the broker to move a symbol from its current signed
// position to a new one.
type PositionChange struct {
	Symbol  string
	Current int64
	New     int64
}

// Qty is the absolute number of shares to trade.
func (c PositionChange) Qty() int64 {
	d := c.New - c.Current
	if d < 0 {
		return -d
	}
	return d
}

// Side is "buy" when the position grows and "sell" otherwise.
func (c PositionChange) Side() string {
	if c.New > c.Current {
		return "buy"
	}
	return "sell"
}

// Broker is the brokerage surface the strategy needs.
// Any struct that implements these methods satisfies the interface, so the
// Alpaca client, a paper broker or a test fake can be swapped freely.
type Broker interface {
	GetSnapshot(ctx context.Context, symbol string) (models.Snapshot, error)
	SetSecurityPosition(ctx context.Context, change PositionChange) (*models.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (*models.Order, error)
	GetClock(ctx context.Context) (*models.Clock, error)
}

// SnapshotSource supplies quotes to one strategy loop.
type SnapshotSource interface {
	Next(ctx context.Context) (models.Snapshot, error)
	// Exhausted reports whether a finite source has served its last snapshot.
	// Live sources never exhaust.
	Exhausted() bool
}

// LiveSource reads quotes from the broker.
type LiveSource struct {
	broker Broker
	symbol string
}

func NewLiveSource(broker Broker, symbol string) *LiveSource {
	return &LiveSource{broker: broker, symbol: symbol}
}

func (s *LiveSource) Next(ctx context.Context) (models.Snapshot, error) {
	snap, err := s.broker.GetSnapshot(ctx, s.symbol)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("live snapshot %s: %w", s.symbol, err)
	}
	return snap, nil
}

func (s *LiveSource) Exhausted() bool { return false }
