// Package driver runs one strategy loop per stock until each loop's source is
// exhausted, its market closes or its state closes.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"grid_trading/internal/config"
	"grid_trading/internal/engine"
	"grid_trading/internal/market"
	"grid_trading/internal/metrics"
	"grid_trading/internal/models"
	"grid_trading/internal/telegram"

	"golang.org/x/sync/errgroup"
)

// StateStore loads and persists strategy states.
type StateStore interface {
	Load(date, symbol string) (*models.StockState, error)
	Save(st *models.StockState) error
	Close(st *models.StockState) error
}

// SourceFactory builds the snapshot source of one stock from its loaded state.
type SourceFactory func(ctx context.Context, st *models.StockState) (market.SnapshotSource, error)

// Recorder appends live quotes to the history log.
type Recorder interface {
	Append(ctx context.Context, symbol string, snap models.Snapshot) error
}

// Deps are the collaborators shared by every loop.
type Deps struct {
	Store    StateStore
	Executor engine.Executor
	Sources  SourceFactory
	// Broker is required in live mode for the market clock.
	Broker   market.Broker
	Recorder Recorder
	Notifier *telegram.Notifier
	Metrics  *metrics.Metrics
}

// Settings control the pacing of the loops.
type Settings struct {
	Mode        config.Mode
	SessionDate string
	SessionEnd  time.Time
	// TickInterval paces live loops; simulated loops run back to back.
	TickInterval time.Duration
	// ClockPoll is how often a live loop checks whether the market opened.
	ClockPoll time.Duration
	Debug     bool
}

// Outcome is the result of one loop.
type Outcome struct {
	Symbol   string
	Ticks    int
	Position int64
	Reason   models.CloseReason // CloseNone while the strategy is still open
	Err      error
}

type Driver struct {
	deps     Deps
	settings Settings
}

func New(deps Deps, settings Settings) (*Driver, error) {
	if deps.Store == nil || deps.Executor == nil || deps.Sources == nil {
		return nil, errors.New("driver: store, executor and sources are required")
	}
	if settings.Mode == config.ModeLive && deps.Broker == nil {
		return nil, errors.New("driver: live mode requires a broker")
	}
	if settings.ClockPoll <= 0 {
		settings.ClockPoll = 30 * time.Second
	}
	return &Driver{deps: deps, settings: settings}, nil
}

// Run starts a loop per symbol and waits for all of them. A failing loop does
// not stop the others; the first loop error is returned alongside every outcome.
func (d *Driver) Run(ctx context.Context, symbols []string) ([]Outcome, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		outcomes = make([]Outcome, len(symbols))
	)
	for i, symbol := range symbols {
		g.Go(func() error {
			out := d.runLoop(ctx, symbol)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			if out.Err != nil && !errors.Is(out.Err, context.Canceled) {
				d.deps.Metrics.LoopError(symbol)
				d.deps.Notifier.Notify(telegram.Failed(symbol, out.Err))
				log.Printf("[%s] ERROR: loop stopped: %v", symbol, out.Err)
				return out.Err
			}
			return nil
		})
	}
	err := g.Wait()
	return outcomes, err
}

func (d *Driver) runLoop(ctx context.Context, symbol string) Outcome {
	out := Outcome{Symbol: symbol}

	st, err := d.deps.Store.Load(d.settings.SessionDate, symbol)
	if err != nil {
		out.Err = err
		return out
	}
	out.Position = st.Position
	if st.Closed() {
		out.Reason = st.CloseReason
		return out
	}

	source, err := d.deps.Sources(ctx, st)
	if err != nil {
		out.Err = fmt.Errorf("%s: snapshot source: %w", symbol, err)
		return out
	}

	var marketClose time.Time
	if d.settings.Mode == config.ModeLive {
		clock, err := d.waitForOpen(ctx, symbol)
		if err != nil {
			out.Err = err
			return out
		}
		marketClose = clock.NextClose
	}

	eng, err := engine.New(st, source, d.deps.Executor, d.deps.Store, engine.Options{
		PersistTicks: d.settings.Mode == config.ModeLive,
		SessionEnd:   d.settings.SessionEnd,
		Metrics:      d.deps.Metrics,
		Debug:        d.settings.Debug,
	})
	if err != nil {
		out.Err = err
		return out
	}

	log.Printf("[%s] INFO: strategy started (%s), position %d", symbol, d.settings.Mode, st.Position)
	d.deps.Notifier.Notify(telegram.Started(st, string(d.settings.Mode)))

	for !source.Exhausted() {
		if err := ctx.Err(); err != nil {
			out.Err = err
			break
		}

		res, err := eng.Tick(ctx)
		if err != nil {
			out.Err = err
			break
		}
		out.Ticks++

		if res.Changed && d.deps.Recorder != nil {
			if err := d.deps.Recorder.Append(ctx, symbol, res.Snapshot); err != nil {
				log.Printf("[%s] WARN: record quote: %v", symbol, err)
			}
		}

		if res.Closed {
			out.Reason = res.Reason
			d.deps.Notifier.Notify(telegram.Closed(eng.State()))
			break
		}

		if d.settings.Mode != config.ModeLive {
			continue
		}
		if !marketClose.IsZero() && !res.Snapshot.Timestamp.Before(marketClose) {
			log.Printf("[%s] INFO: market closed at %s", symbol, marketClose.Format(time.RFC3339))
			break
		}
		if err := sleep(ctx, d.settings.TickInterval); err != nil {
			out.Err = err
			break
		}
	}

	out.Position = eng.State().Position
	if !eng.State().Closed() {
		// Simulated loops do not persist per tick; keep the final state.
		if err := d.deps.Store.Save(eng.State()); err != nil && out.Err == nil {
			out.Err = fmt.Errorf("%s: save final state: %w", symbol, err)
		}
	}
	return out
}

// waitForOpen polls the broker clock until the market is open.
func (d *Driver) waitForOpen(ctx context.Context, symbol string) (*models.Clock, error) {
	for {
		clock, err := d.deps.Broker.GetClock(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: market clock: %w", symbol, err)
		}
		if clock.IsOpen {
			return clock, nil
		}
		log.Printf("[%s] INFO: market closed, next open %s", symbol, clock.NextOpen.Format(time.RFC3339))
		if err := sleep(ctx, d.settings.ClockPoll); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
