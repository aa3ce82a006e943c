package models

import (
	"time"

	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// Snapshot is one bid/ask quote for a stock.
type Snapshot struct {
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// Usable reports whether both sides of the quote are present.
func (s Snapshot) Usable() bool {
	return s.Bid.IsPositive() && s.Ask.IsPositive()
}

// Spread is ask minus bid.
func (s Snapshot) Spread() decimal.Decimal {
	return money.Sub(s.Ask, s.Bid)
}

// Order status values reported by the broker.
const (
	OrderFilled   = "filled"
	OrderCanceled = "canceled"
	OrderRejected = "rejected"
	OrderExpired  = "expired"
)

// Order represents a generic order found in any broker.
type Order struct {
	ID             string          `json:"id"`
	ClientOrderID  string          `json:"client_order_id"`
	Symbol         string          `json:"symbol"`
	Qty            decimal.Decimal `json:"qty"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	Side           string          `json:"side"`   // buy, sell
	Status         string          `json:"status"` // new, filled, canceled, expired, rejected
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
	CreatedAt      time.Time       `json:"created_at"`
	FilledAt       *time.Time      `json:"filled_at,omitempty"`
}

// Clock represents the market status.
type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}
