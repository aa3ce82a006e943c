package models

import (
	"fmt"
	"time"

	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the current layout of the persisted state file.
const SchemaVersion = "1.1"

// IntervalKind tells which half of the ladder an interval belongs to.
type IntervalKind string

const (
	Long  IntervalKind = "long"
	Short IntervalKind = "short"
)

// Action is the side of an executed reposition.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Status is the lifecycle of a stock strategy instance.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CloseReason is the outcome marker written into the closed file name.
type CloseReason string

const (
	CloseNone CloseReason = ""
	CloseWin  CloseReason = "W" // exit PnL reached the profit threshold
	CloseLoss CloseReason = "L" // exit PnL reached the loss threshold
	CloseTime CloseReason = "N" // trading session ended
)

// Threshold is one side (buy or sell) of an interval.
type Threshold struct {
	Price   decimal.Decimal `json:"price"`
	Active  bool            `json:"active"`
	Crossed bool            `json:"crossed"`
}

// Interval is one rung of the grid.
type Interval struct {
	Kind          IntervalKind `json:"kind"`
	PositionLimit int64        `json:"position_limit"`
	Buy           Threshold    `json:"buy"`
	Sell          Threshold    `json:"sell"`
}

// Filled reports whether the rung currently holds shares: a long rung after its
// buy executed, a short rung after its sell executed.
func (iv Interval) Filled() bool {
	if iv.Kind == Long {
		return iv.Sell.Active
	}
	return iv.Buy.Active
}

// Open resets the rung to its unfilled flags. Latches are cleared.
func (iv *Interval) Open() {
	if iv.Kind == Long {
		iv.Buy = Threshold{Price: iv.Buy.Price, Active: true}
		iv.Sell = Threshold{Price: iv.Sell.Price}
		return
	}
	iv.Sell = Threshold{Price: iv.Sell.Price, Active: true}
	iv.Buy = Threshold{Price: iv.Buy.Price}
}

// Fill flips the rung to its filled flags.
func (iv *Interval) Fill() {
	if iv.Kind == Long {
		iv.Buy = Threshold{Price: iv.Buy.Price}
		iv.Sell = Threshold{Price: iv.Sell.Price, Active: true}
		return
	}
	iv.Sell = Threshold{Price: iv.Sell.Price}
	iv.Buy = Threshold{Price: iv.Buy.Price, Active: true}
}

// Shift moves both thresholds by delta.
func (iv *Interval) Shift(delta decimal.Decimal) {
	iv.Buy.Price = money.Add(iv.Buy.Price, delta)
	iv.Sell.Price = money.Add(iv.Sell.Price, delta)
}

// TradingLog is one executed reposition. Entries are never edited.
type TradingLog struct {
	Action           Action          `json:"action"`
	Timestamp        time.Time       `json:"timestamp"`
	QuotedPrice      decimal.Decimal `json:"quoted_price"`
	FillPrice        decimal.Decimal `json:"fill_price"`
	PreviousPosition int64           `json:"previous_position"`
	NewPosition      int64           `json:"new_position"`
}

// StockState is everything the strategy knows about one stock for one session.
// This struct matches the structure of the JSON state file.
type StockState struct {
	Version     string `json:"version"`
	Symbol      string `json:"symbol"`
	SessionDate string `json:"session_date"`

	InitialPrice      decimal.Decimal `json:"initial_price"`
	Anchor            decimal.Decimal `json:"anchor"` // centre of the ladder after re-anchoring
	SharesPerInterval int64           `json:"shares_per_interval"`
	Spacing           decimal.Decimal `json:"spacing"`
	TargetPosition    int64           `json:"target_position"`
	IntervalProfit    decimal.Decimal `json:"interval_profit"`
	Static            bool            `json:"static"`

	CommissionPerShare decimal.Decimal  `json:"commission_per_share"`
	ExitProfitPct      *decimal.Decimal `json:"exit_profit_pct,omitempty"`
	ExitLossPct        *decimal.Decimal `json:"exit_loss_pct,omitempty"`

	Position         int64           `json:"position"`
	LastBid          decimal.Decimal `json:"last_bid"`
	LastAsk          decimal.Decimal `json:"last_ask"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	RealizedPnLPct   decimal.Decimal `json:"realized_pnl_pct"`
	ExitPnLPct       decimal.Decimal `json:"exit_pnl_pct"`
	ExitPnLHigh      decimal.Decimal `json:"exit_pnl_high"`
	ExitPnLLow       decimal.Decimal `json:"exit_pnl_low"`
	NetPositionValue decimal.Decimal `json:"net_position_value"`

	Intervals  []Interval   `json:"intervals"`
	TradingLog []TradingLog `json:"trading_log"`

	Status      Status      `json:"status"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
}

// HasExitThresholds reports whether profit/loss exits are configured.
func (s *StockState) HasExitThresholds() bool {
	return s.ExitProfitPct != nil || s.ExitLossPct != nil
}

// Closed reports whether the strategy reached its terminal state.
func (s *StockState) Closed() bool { return s.Status == StatusClosed }

// MarkClosed moves the state to its terminal status.
func (s *StockState) MarkClosed(reason CloseReason, at time.Time) {
	s.Status = StatusClosed
	s.CloseReason = reason
	s.ClosedAt = &at
}

// Rungs returns the number of intervals on each side.
func (s *StockState) Rungs() int { return len(s.Intervals) / 2 }

// LongRung returns the ladder index of long rung i (1 is nearest the anchor).
func (s *StockState) LongRung(i int) int { return s.Rungs() - i }

// ShortRung returns the ladder index of short rung i (1 is nearest the anchor).
func (s *StockState) ShortRung(i int) int { return s.Rungs() + i - 1 }

// FilledCounts returns how many rungs are filled on each side.
func (s *StockState) FilledCounts() (long, short int) {
	for _, iv := range s.Intervals {
		if !iv.Filled() {
			continue
		}
		if iv.Kind == Long {
			long++
		} else {
			short++
		}
	}
	return long, short
}

// Validate checks the ladder and position invariants.
func (s *StockState) Validate() error {
	n := len(s.Intervals)
	if n == 0 || n%2 != 0 {
		return fmt.Errorf("%s: ladder has %d intervals, want an even non-zero count", s.Symbol, n)
	}
	half := n / 2
	for i, iv := range s.Intervals {
		wantKind := Long
		if i >= half {
			wantKind = Short
		}
		if iv.Kind != wantKind {
			return fmt.Errorf("%s: interval %d is %s, want %s", s.Symbol, i, iv.Kind, wantKind)
		}
		if (iv.Kind == Long && iv.PositionLimit <= 0) || (iv.Kind == Short && iv.PositionLimit >= 0) {
			return fmt.Errorf("%s: interval %d has limit %d on the %s side", s.Symbol, i, iv.PositionLimit, iv.Kind)
		}
		if i > 0 && money.Cmp(iv.Sell.Price, s.Intervals[i-1].Sell.Price) >= 0 {
			return fmt.Errorf("%s: interval %d sell %s not below previous %s", s.Symbol, i, iv.Sell.Price, s.Intervals[i-1].Sell.Price)
		}
		if money.Cmp(money.Sub(iv.Sell.Price, iv.Buy.Price), s.IntervalProfit) != 0 {
			return fmt.Errorf("%s: interval %d buy %s / sell %s not %s apart", s.Symbol, i, iv.Buy.Price, iv.Sell.Price, s.IntervalProfit)
		}
		if iv.Kind == Long && money.Cmp(iv.Sell.Price, s.Anchor) <= 0 {
			return fmt.Errorf("%s: long interval %d sell %s not above anchor %s", s.Symbol, i, iv.Sell.Price, s.Anchor)
		}
		if iv.Kind == Short && money.Cmp(iv.Buy.Price, s.Anchor) >= 0 {
			return fmt.Errorf("%s: short interval %d buy %s not below anchor %s", s.Symbol, i, iv.Buy.Price, s.Anchor)
		}
		if iv.Buy.Active && iv.Sell.Active {
			return fmt.Errorf("%s: interval %d has both sides active", s.Symbol, i)
		}
		if (iv.Buy.Crossed && !iv.Buy.Active) || (iv.Sell.Crossed && !iv.Sell.Active) {
			return fmt.Errorf("%s: interval %d crossed on an inactive side", s.Symbol, i)
		}
	}

	if s.Position > s.TargetPosition || s.Position < -s.TargetPosition {
		return fmt.Errorf("%s: position %d outside ±%d", s.Symbol, s.Position, s.TargetPosition)
	}
	long, short := s.FilledCounts()
	if long > 0 && short > 0 {
		return fmt.Errorf("%s: %d long and %d short rungs filled at once", s.Symbol, long, short)
	}
	if want := s.SharesPerInterval * int64(long-short); want != s.Position {
		return fmt.Errorf("%s: position %d does not match %d filled rungs (want %d)", s.Symbol, s.Position, long-short, want)
	}
	return nil
}
