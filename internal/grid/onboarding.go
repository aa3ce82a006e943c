package grid

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// StockEntry is one stock in an onboarding file. Prices are strings so they are
// parsed as decimals, never as floats.
type StockEntry struct {
	Symbol            string `yaml:"symbol"`
	InitialPrice      string `yaml:"initial_price"`
	SharesPerInterval int64  `yaml:"shares_per_interval"`
	TargetPosition    int64  `yaml:"target_position"`
	Spacing           string `yaml:"spacing"`
	IntervalProfit    string `yaml:"interval_profit"`
	Static            bool   `yaml:"static"`
}

// Onboarding is a partial configuration: everything needed to build states
// except, optionally, the initial prices.
type Onboarding struct {
	CommissionPerShare string       `yaml:"commission_per_share"`
	ExitProfitPct      string       `yaml:"exit_profit_pct"`
	ExitLossPct        string       `yaml:"exit_loss_pct"`
	Stocks             []StockEntry `yaml:"stocks"`
}

// PriceFunc resolves a missing initial price, typically from the live ask.
type PriceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

// LoadOnboarding reads an onboarding YAML file.
func LoadOnboarding(path string) (*Onboarding, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read onboarding file: %w", err)
	}
	var o Onboarding
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("parse onboarding file %s: %w", path, err)
	}
	if len(o.Stocks) == 0 {
		return nil, fmt.Errorf("%w: onboarding file %s lists no stocks", ErrInvalidParams, path)
	}
	return &o, nil
}

// States builds one fresh state per listed stock for the given session date.
func (o *Onboarding) States(ctx context.Context, sessionDate string, price PriceFunc) ([]*models.StockState, error) {
	meta := Meta{SessionDate: sessionDate}
	var err error
	if meta.CommissionPerShare, err = optionalDecimal(o.CommissionPerShare); err != nil {
		return nil, fmt.Errorf("%w: commission_per_share: %v", ErrInvalidParams, err)
	}
	if meta.ExitProfitPct, err = optionalPointer(o.ExitProfitPct); err != nil {
		return nil, fmt.Errorf("%w: exit_profit_pct: %v", ErrInvalidParams, err)
	}
	if meta.ExitLossPct, err = optionalPointer(o.ExitLossPct); err != nil {
		return nil, fmt.Errorf("%w: exit_loss_pct: %v", ErrInvalidParams, err)
	}

	seen := make(map[string]bool)
	var states []*models.StockState
	for _, e := range o.Stocks {
		symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("%w: stock entry without symbol", ErrInvalidParams)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidParams, symbol)
		}
		seen[symbol] = true

		p, err := e.params()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		if p.InitialPrice.IsZero() {
			if price == nil {
				return nil, fmt.Errorf("%w: %s has no initial_price and no quote source", ErrInvalidParams, symbol)
			}
			if p.InitialPrice, err = price(ctx, symbol); err != nil {
				return nil, fmt.Errorf("%s: resolve initial price: %w", symbol, err)
			}
			p.InitialPrice = money.Round(p.InitialPrice, 2)
		}

		m := meta
		m.Symbol = symbol
		st, err := NewStockState(p, m)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func (e StockEntry) params() (Params, error) {
	p := Params{
		TargetPosition:    e.TargetPosition,
		SharesPerInterval: e.SharesPerInterval,
		Static:            e.Static,
	}
	var err error
	if p.InitialPrice, err = optionalDecimal(e.InitialPrice); err != nil {
		return p, fmt.Errorf("%w: initial_price: %v", ErrInvalidParams, err)
	}
	if p.Spacing, err = money.Parse(e.Spacing); err != nil {
		return p, fmt.Errorf("%w: spacing: %v", ErrInvalidParams, err)
	}
	if p.IntervalProfit, err = money.Parse(e.IntervalProfit); err != nil {
		return p, fmt.Errorf("%w: interval_profit: %v", ErrInvalidParams, err)
	}
	return p, nil
}

func optionalDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return money.Parse(strings.TrimSpace(s))
}

func optionalPointer(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := money.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &d, nil
}
