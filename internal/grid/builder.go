// Package grid builds interval ladders and fresh strategy states.
package grid

import (
	"errors"
	"fmt"

	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// ErrInvalidParams marks a grid configuration that cannot be built.
var ErrInvalidParams = errors.New("invalid grid parameters")

// Params are the strategy parameters of one stock.
type Params struct {
	InitialPrice      decimal.Decimal
	TargetPosition    int64
	SharesPerInterval int64
	Spacing           decimal.Decimal
	IntervalProfit    decimal.Decimal
	Static            bool
}

// Validate rejects parameters the ladder cannot represent.
func (p Params) Validate() error {
	switch {
	case !p.InitialPrice.IsPositive():
		return fmt.Errorf("%w: initial price %s must be positive", ErrInvalidParams, p.InitialPrice)
	case p.SharesPerInterval <= 0:
		return fmt.Errorf("%w: shares per interval %d must be positive", ErrInvalidParams, p.SharesPerInterval)
	case p.TargetPosition <= 0:
		return fmt.Errorf("%w: target position %d must be positive", ErrInvalidParams, p.TargetPosition)
	case p.TargetPosition%p.SharesPerInterval != 0:
		return fmt.Errorf("%w: target position %d is not a multiple of %d shares per interval",
			ErrInvalidParams, p.TargetPosition, p.SharesPerInterval)
	case !p.Spacing.IsPositive():
		return fmt.Errorf("%w: spacing %s must be positive", ErrInvalidParams, p.Spacing)
	case !p.IntervalProfit.IsPositive():
		return fmt.Errorf("%w: interval profit %s must be positive", ErrInvalidParams, p.IntervalProfit)
	case money.Cmp(p.IntervalProfit, p.Spacing) >= 0:
		return fmt.Errorf("%w: interval profit %s must be below spacing %s", ErrInvalidParams, p.IntervalProfit, p.Spacing)
	}
	lowest := money.Sub(p.InitialPrice, money.Mul(p.Spacing, money.FromInt(p.rungs())))
	if !lowest.IsPositive() {
		return fmt.Errorf("%w: short ladder reaches %s, below zero", ErrInvalidParams, lowest)
	}
	return nil
}

func (p Params) rungs() int64 { return p.TargetPosition/p.SharesPerInterval + 1 }

// Build returns the full ladder ordered by descending sell price: the long rungs
// (outermost first) followed by the short rungs (innermost first).
func Build(p Params) ([]models.Interval, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := int(p.rungs())
	ladder := make([]models.Interval, 2*n)

	for i := 1; i <= n; i++ {
		sell := money.Add(p.InitialPrice, money.Mul(p.Spacing, money.FromInt(int64(i))))
		ladder[n-i] = models.Interval{
			Kind:          models.Long,
			PositionLimit: p.SharesPerInterval * int64(i),
			Buy:           models.Threshold{Price: money.Sub(sell, p.IntervalProfit), Active: true, Crossed: i == 1},
			Sell:          models.Threshold{Price: sell},
		}
	}
	for i := 1; i <= n; i++ {
		buy := money.Sub(p.InitialPrice, money.Mul(p.Spacing, money.FromInt(int64(i))))
		ladder[n+i-1] = models.Interval{
			Kind:          models.Short,
			PositionLimit: -p.SharesPerInterval * int64(i),
			Buy:           models.Threshold{Price: buy},
			Sell:          models.Threshold{Price: money.Add(buy, p.IntervalProfit), Active: true, Crossed: i == 1},
		}
	}
	return ladder, nil
}

// Meta carries the non-grid fields of a new state.
type Meta struct {
	Symbol             string
	SessionDate        string
	CommissionPerShare decimal.Decimal
	ExitProfitPct      *decimal.Decimal
	ExitLossPct        *decimal.Decimal
}

// NewStockState builds the initial state of a newly onboarded stock.
func NewStockState(p Params, meta Meta) (*models.StockState, error) {
	ladder, err := Build(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", meta.Symbol, err)
	}
	return &models.StockState{
		Version:            models.SchemaVersion,
		Symbol:             meta.Symbol,
		SessionDate:        meta.SessionDate,
		InitialPrice:       p.InitialPrice,
		Anchor:             p.InitialPrice,
		SharesPerInterval:  p.SharesPerInterval,
		Spacing:            p.Spacing,
		TargetPosition:     p.TargetPosition,
		IntervalProfit:     p.IntervalProfit,
		Static:             p.Static,
		CommissionPerShare: meta.CommissionPerShare,
		ExitProfitPct:      meta.ExitProfitPct,
		ExitLossPct:        meta.ExitLossPct,
		Intervals:          ladder,
		TradingLog:         []models.TradingLog{},
		Status:             models.StatusOpen,
	}, nil
}
