// Package metrics exposes Prometheus instrumentation for the strategy loops:
//
//	grid_ticks_total{symbol}          ticks processed
//	grid_fills_total{symbol,side}     repositions executed (BUY|SELL)
//	grid_closes_total{reason}         strategies closed (W|L|N)
//	grid_position_shares{symbol}      current signed position
//	grid_exit_pnl_pct{symbol}         exit PnL percentage
//	grid_loop_errors_total{symbol}    loops stopped by an error
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

type Metrics struct {
	ticks      *prometheus.CounterVec
	fills      *prometheus.CounterVec
	closes     *prometheus.CounterVec
	position   *prometheus.GaugeVec
	exitPnL    *prometheus.GaugeVec
	loopErrors *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "grid_ticks_total", Help: "Ticks processed"},
			[]string{"symbol"},
		),
		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "grid_fills_total", Help: "Repositions executed by side"},
			[]string{"symbol", "side"},
		),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "grid_closes_total", Help: "Strategies closed by reason (W|L|N)"},
			[]string{"reason"},
		),
		position: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "grid_position_shares", Help: "Current signed position in shares"},
			[]string{"symbol"},
		),
		exitPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "grid_exit_pnl_pct", Help: "PnL percentage if the position were flattened now"},
			[]string{"symbol"},
		),
		loopErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "grid_loop_errors_total", Help: "Strategy loops stopped by an error"},
			[]string{"symbol"},
		),
	}
	reg.MustRegister(m.ticks, m.fills, m.closes, m.position, m.exitPnL, m.loopErrors)
	return m
}

func (m *Metrics) Tick(symbol string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Fill(symbol, side string) {
	if m == nil {
		return
	}
	m.fills.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) Close(reason string) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(reason).Inc()
}

func (m *Metrics) Position(symbol string, shares int64) {
	if m == nil {
		return
	}
	m.position.WithLabelValues(symbol).Set(float64(shares))
}

// ExitPnL records the exit PnL. Gauges are floats; the decimal is the source of truth.
func (m *Metrics) ExitPnL(symbol string, pct decimal.Decimal) {
	if m == nil {
		return
	}
	m.exitPnL.WithLabelValues(symbol).Set(pct.InexactFloat64())
}

func (m *Metrics) LoopError(symbol string) {
	if m == nil {
		return
	}
	m.loopErrors.WithLabelValues(symbol).Inc()
}
