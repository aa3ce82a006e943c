// Package engine runs the per-tick reconciliation of one stock's grid: it reads
// a quote, latches crossings, sizes fills, re-anchors dynamic grids, executes
// the reposition and decides when the strategy closes.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"grid_trading/internal/market"
	"grid_trading/internal/metrics"
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// Store persists the state of a strategy.
type Store interface {
	Save(st *models.StockState) error
	Close(st *models.StockState) error
}

type Options struct {
	// PersistTicks saves the state after every tick whose quote changed.
	PersistTicks bool
	// SessionEnd is the end of trading; zero means the session never ends.
	SessionEnd time.Time
	Metrics    *metrics.Metrics
	Debug      bool
}

// TickResult describes what one tick did.
type TickResult struct {
	Snapshot     models.Snapshot
	Changed      bool
	Latched      int
	Fills        int
	Shifts       int
	PrevPosition int64
	Position     int64
	Closed       bool
	Reason       models.CloseReason
}

// Engine owns one stock's state for the lifetime of a strategy loop.
type Engine struct {
	state  *models.StockState
	source market.SnapshotSource
	exec   Executor
	store  Store
	opts   Options
}

// New validates the state and returns its engine. store may be nil.
func New(st *models.StockState, source market.SnapshotSource, exec Executor, store Store, opts Options) (*Engine, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &Engine{state: st, source: source, exec: exec, store: store, opts: opts}, nil
}

// State returns the engine's state. It must not be modified while ticking.
func (e *Engine) State() *models.StockState { return e.state }

func (e *Engine) sessionOver(at time.Time) bool {
	return !e.opts.SessionEnd.IsZero() && !at.Before(e.opts.SessionEnd)
}

// Tick runs one reconciliation step.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	st := e.state
	res := TickResult{PrevPosition: st.Position, Position: st.Position}
	if st.Closed() {
		res.Closed, res.Reason = true, st.CloseReason
		return res, nil
	}

	snap, err := e.source.Next(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: fetch snapshot: %w", st.Symbol, err)
	}
	res.Snapshot = snap
	e.opts.Metrics.Tick(st.Symbol)

	// Last bid and ask keep the last usable value of each side, so a zero
	// field neither moves the exit PnL nor hides a crossing on the next quote.
	prevBid, prevAsk := st.LastBid, st.LastAsk
	res.Changed = sideChanged(snap.Bid, prevBid) || sideChanged(snap.Ask, prevAsk)
	if snap.Bid.IsPositive() {
		st.LastBid = snap.Bid
	}
	if snap.Ask.IsPositive() {
		st.LastAsk = snap.Ask
	}
	usable := snap.Usable()
	over := e.sessionOver(snap.Timestamp)

	if (res.Changed && usable) || over {
		if usable {
			updateExitPnL(st)
			e.opts.Metrics.ExitPnL(st.Symbol, st.ExitPnLPct)
		}

		if reason := e.exitReason(over, usable); reason != models.CloseNone {
			closeAt, ok := e.closeQuote(snap)
			if ok {
				if err := e.close(ctx, closeAt, reason); err != nil {
					return res, err
				}
				res.Closed, res.Reason, res.Position = true, reason, st.Position
				return res, nil
			}
			log.Printf("[%s] WARN: %s close deferred, no usable quote to flatten %d shares", st.Symbol, reason, st.Position)
		}
	}

	intervals := cloneIntervals(st.Intervals)
	res.Latched = detectCrossings(intervals, prevBid, prevAsk, snap)

	if err := e.reconcile(ctx, snap, prevBid, prevAsk, intervals, &res); err != nil {
		return res, err
	}
	res.Position = st.Position

	if e.opts.Debug {
		log.Printf("[%s] DEBUG: bid=%s ask=%s pos=%d exit=%s%% latched=%d fills=%d",
			st.Symbol, snap.Bid, snap.Ask, st.Position, st.ExitPnLPct, res.Latched, res.Fills)
	}

	if res.Changed && e.opts.PersistTicks && e.store != nil {
		if err := e.store.Save(st); err != nil {
			return res, fmt.Errorf("%s: persist tick: %w", st.Symbol, err)
		}
	}
	return res, nil
}

// reconcile sizes, applies and executes the fills of one quote. The working
// copy is committed to the state only after the executor succeeds.
func (e *Engine) reconcile(ctx context.Context, snap models.Snapshot, prevBid, prevAsk decimal.Decimal, intervals []models.Interval, res *TickResult) error {
	st := e.state
	if !snap.Usable() || money.Cmp(snap.Spread(), st.Spacing) >= 0 {
		st.Intervals = intervals
		return nil
	}

	action := models.Buy
	picked := selectBuys(st, intervals, snap.Ask)
	if len(picked) == 0 {
		action = models.Sell
		picked = selectSells(st, intervals, snap.Bid)
	}
	if len(picked) == 0 {
		st.Intervals = intervals
		return nil
	}

	applyFills(intervals, picked, action)
	delta := st.SharesPerInterval * int64(len(picked))
	if action == models.Sell {
		delta = -delta
	}
	prev, next := st.Position, st.Position+delta

	anchor := st.Anchor
	if !st.Static {
		res.Shifts = correct(intervals, &anchor, st.Spacing)
	}

	fill, err := e.exec.Execute(ctx, st.Symbol, prev, next, snap)
	if err != nil {
		return fmt.Errorf("%s: execute %s %d -> %d: %w", st.Symbol, action, prev, next, err)
	}

	st.Intervals = intervals
	st.Anchor = anchor
	entry := ApplyPositionChange(st, prev, next, snap, fill)
	detectCrossings(st.Intervals, prevBid, prevAsk, snap)
	updateExitPnL(st)
	res.Fills = len(picked)

	e.opts.Metrics.Fill(st.Symbol, string(action))
	e.opts.Metrics.Position(st.Symbol, st.Position)
	e.opts.Metrics.ExitPnL(st.Symbol, st.ExitPnLPct)

	log.Printf("[%s] INFO: %s %d @ %s (quote %s) position %d -> %d, %d interval(s)",
		st.Symbol, entry.Action, abs(next-prev), entry.FillPrice, entry.QuotedPrice, prev, next, len(picked))
	if res.Shifts > 0 {
		log.Printf("[%s] INFO: re-anchored %d spacing(s) to %s", st.Symbol, res.Shifts, st.Anchor)
	}

	if err := st.Validate(); err != nil {
		return fmt.Errorf("invariant violated after tick: %w", err)
	}
	return nil
}

// exitReason decides whether the strategy closes on this quote. Profit and
// loss exits need a usable quote; the session end does not.
func (e *Engine) exitReason(sessionOver, usable bool) models.CloseReason {
	st := e.state
	if usable && st.Position != 0 && st.HasExitThresholds() {
		if st.ExitProfitPct != nil && money.Cmp(st.ExitPnLPct, *st.ExitProfitPct) >= 0 {
			return models.CloseWin
		}
		if st.ExitLossPct != nil && money.Cmp(st.ExitPnLPct, *st.ExitLossPct) <= 0 {
			return models.CloseLoss
		}
	}
	if sessionOver {
		return models.CloseTime
	}
	return models.CloseNone
}

// closeQuote is the quote a close flattens at: the snapshot when usable,
// otherwise the last usable bid and ask at the snapshot's time. A flat
// position closes on any quote.
func (e *Engine) closeQuote(snap models.Snapshot) (models.Snapshot, bool) {
	st := e.state
	if snap.Usable() || st.Position == 0 {
		return snap, true
	}
	last := models.Snapshot{Bid: st.LastBid, Ask: st.LastAsk, Timestamp: snap.Timestamp}
	return last, last.Usable()
}

// sideChanged reports a new usable value on one side of the quote.
func sideChanged(cur, last decimal.Decimal) bool {
	return cur.IsPositive() && !cur.Equal(last)
}

// close flattens the position, books realized PnL and moves the state to its
// terminal status.
func (e *Engine) close(ctx context.Context, snap models.Snapshot, reason models.CloseReason) error {
	st := e.state
	if prev := st.Position; prev != 0 {
		fill, err := e.exec.Execute(ctx, st.Symbol, prev, 0, snap)
		if err != nil {
			return fmt.Errorf("%s: flatten %d on close %s: %w", st.Symbol, prev, reason, err)
		}
		entry := ApplyPositionChange(st, prev, 0, snap, fill)
		log.Printf("[%s] INFO: flattened %s %d @ %s", st.Symbol, entry.Action, abs(prev), fill)
		e.opts.Metrics.Fill(st.Symbol, string(entry.Action))
	}
	for i := range st.Intervals {
		st.Intervals[i].Open()
	}

	pct, err := RealizedPnLPct(st)
	if err != nil {
		return err
	}
	st.RealizedPnL = st.NetPositionValue
	st.RealizedPnLPct = pct
	st.ExitPnLPct = pct
	st.MarkClosed(reason, snap.Timestamp)

	e.opts.Metrics.Position(st.Symbol, 0)
	e.opts.Metrics.Close(string(reason))
	log.Printf("[%s] INFO: closed (%s) realized PnL %s (%s%%)", st.Symbol, reason, st.RealizedPnL.StringFixed(2), pct)

	if e.store != nil {
		if err := e.store.Close(st); err != nil {
			return fmt.Errorf("%s: persist close: %w", st.Symbol, err)
		}
	}
	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
