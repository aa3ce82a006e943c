package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid_trading/internal/config"
	"grid_trading/internal/driver"
	"grid_trading/internal/engine"
	"grid_trading/internal/market"
	"grid_trading/internal/market/alpaca"
	"grid_trading/internal/market/history"
	"grid_trading/internal/metrics"
	"grid_trading/internal/models"
	"grid_trading/internal/storage"
	"grid_trading/internal/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [symbols...]",
		Short: "Run the grids of the session (all onboarded stocks by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, args)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, symbols []string) error {
	store := storage.New(cfg.StateDir)
	if len(symbols) == 0 {
		active, err := store.ListActive(cfg.SessionDate)
		if err != nil {
			return err
		}
		symbols = active
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no onboarded stocks for session %s in %s", cfg.SessionDate, cfg.StateDir)
	}

	end, err := cfg.SessionEnd()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("WARN: metrics server stopped: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("INFO: Serving metrics on %s/metrics", cfg.MetricsAddr)
	}

	notifier, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Printf("WARN: notifications disabled: %v", err)
	}

	deps := driver.Deps{Store: store, Notifier: notifier, Metrics: m}
	switch cfg.Mode {
	case config.ModeLive:
		provider := alpaca.NewProvider()
		deps.Broker = provider
		deps.Executor = engine.NewBrokerExecutor(provider, cfg.FillPollInterval, cfg.FillTimeout)
		deps.Sources = func(_ context.Context, st *models.StockState) (market.SnapshotSource, error) {
			return market.NewLiveSource(provider, st.Symbol), nil
		}
		if cfg.HistoryRecord && cfg.HistoryDB != "" {
			db, err := history.OpenSQLite(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()
			deps.Recorder = db
		}
	case config.ModeRandom:
		deps.Executor = engine.PaperExecutor{}
		start := sessionOpen(cfg)
		deps.Sources = func(_ context.Context, st *models.StockState) (market.SnapshotSource, error) {
			return market.NewRandomWalk(st.InitialPrice, cfg.RandomTicks, cfg.RandomSeed+symbolSeed(st.Symbol), start), nil
		}
	case config.ModeHistorical:
		deps.Executor = engine.PaperExecutor{}
		cache, closeLoader, err := historyCache(cfg)
		if err != nil {
			return err
		}
		defer closeLoader()
		r, err := history.ParseRange(cfg.HistoryFrom, cfg.HistoryTo)
		if err != nil {
			return err
		}
		deps.Sources = func(ctx context.Context, st *models.StockState) (market.SnapshotSource, error) {
			return market.NewReplaySource(ctx, cache, st.Symbol, r)
		}
	}

	d, err := driver.New(deps, driver.Settings{
		Mode:         cfg.Mode,
		SessionDate:  cfg.SessionDate,
		SessionEnd:   end,
		TickInterval: cfg.TickInterval,
		Debug:        cfg.Debug(),
	})
	if err != nil {
		return err
	}

	log.Printf("Grid Trader %s starting %d stock(s) in %s mode for %s", readVersion(), len(symbols), cfg.Mode, cfg.SessionDate)
	started := time.Now()
	outcomes, runErr := d.Run(ctx, symbols)
	for _, o := range outcomes {
		status := "open"
		if o.Reason != models.CloseNone {
			status = "closed " + string(o.Reason)
		}
		if o.Err != nil {
			status = "error: " + o.Err.Error()
		}
		log.Printf("[%s] INFO: %d tick(s), position %d, %s", o.Symbol, o.Ticks, o.Position, status)
	}
	log.Printf("🛑 Run finished in %s", time.Since(started).Round(time.Millisecond))
	return runErr
}

// symbolSeed gives each stock its own reproducible walk.
func symbolSeed(symbol string) int64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int64(h.Sum32())
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// historyCache picks the SQLite quote log when HISTORY_DB is set, otherwise the
// per-day JSON files under HISTORY_DIR.
func historyCache(cfg *config.Config) (*history.Cache, func(), error) {
	if cfg.HistoryDB != "" {
		db, err := history.OpenSQLite(cfg.HistoryDB)
		if err != nil {
			return nil, nil, err
		}
		return history.NewCache(db), func() { db.Close() }, nil
	}
	return history.NewCache(history.JSONLoader{Dir: cfg.HistoryDir}), func() {}, nil
}
