package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"grid_trading/internal/config"
	"grid_trading/internal/grid"
	"grid_trading/internal/market"
	"grid_trading/internal/market/alpaca"
	"grid_trading/internal/market/history"
	"grid_trading/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func onboardCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create the session states of the stocks listed in a grid file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()
			return onboard(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "grids.yaml", "Onboarding YAML file")
	return cmd
}

func onboard(ctx context.Context, cfg *config.Config, file string) error {
	o, err := grid.LoadOnboarding(file)
	if err != nil {
		return err
	}
	price, closePrice, err := priceFunc(cfg)
	if err != nil {
		return err
	}
	defer closePrice()

	states, err := o.States(ctx, cfg.SessionDate, price)
	if err != nil {
		return err
	}

	store := storage.New(cfg.StateDir)
	for _, st := range states {
		_, err := store.Load(cfg.SessionDate, st.Symbol)
		if err == nil {
			log.Printf("[%s] WARN: already onboarded for %s, keeping the existing state", st.Symbol, cfg.SessionDate)
			continue
		}
		if !errors.Is(err, storage.ErrStateNotFound) {
			return err
		}
		if err := store.Save(st); err != nil {
			return err
		}
		log.Printf("[%s] INFO: onboarded at %s, %d rungs per side, spacing %s",
			st.Symbol, st.InitialPrice.StringFixed(2), st.Rungs(), st.Spacing)
	}
	return nil
}

// priceFunc resolves missing initial prices from the mode's quote source:
// the live ask, the first recorded ask or the random walk's start price.
func priceFunc(cfg *config.Config) (grid.PriceFunc, func(), error) {
	noop := func() {}
	switch cfg.Mode {
	case config.ModeLive:
		provider := alpaca.NewProvider()
		return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
			snap, err := provider.GetSnapshot(ctx, symbol)
			if err != nil {
				return decimal.Zero, err
			}
			return snap.Ask, nil
		}, noop, nil
	case config.ModeHistorical:
		cache, closeLoader, err := historyCache(cfg)
		if err != nil {
			return nil, nil, err
		}
		r, err := history.ParseRange(cfg.HistoryFrom, cfg.HistoryTo)
		if err != nil {
			closeLoader()
			return nil, nil, err
		}
		return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
			src, err := market.NewReplaySource(ctx, cache, symbol, r)
			if err != nil {
				return decimal.Zero, err
			}
			snap, err := src.Next(ctx)
			if err != nil {
				return decimal.Zero, err
			}
			return snap.Ask, nil
		}, closeLoader, nil
	default:
		return func(context.Context, string) (decimal.Decimal, error) {
			if !cfg.RandomStartPrice.IsPositive() {
				return decimal.Zero, fmt.Errorf("RANDOM_START_PRICE must be positive")
			}
			return cfg.RandomStartPrice, nil
		}, noop, nil
	}
}
