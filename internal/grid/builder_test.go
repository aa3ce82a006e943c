package grid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleParams() Params {
	return Params{
		InitialPrice:      money.MustParse("10.00"),
		TargetPosition:    50,
		SharesPerInterval: 10,
		Spacing:           money.MustParse("0.50"),
		IntervalProfit:    money.MustParse("0.20"),
	}
}

func TestBuild_ExampleLadder(t *testing.T) {
	ladder, err := Build(exampleParams())
	require.NoError(t, err)
	require.Len(t, ladder, 12, "6 rungs per side")

	// Long rung 1 sits at index 5, just above the initial price.
	rung1 := ladder[5]
	assert.Equal(t, models.Long, rung1.Kind)
	assert.Equal(t, int64(10), rung1.PositionLimit)
	assert.True(t, rung1.Sell.Price.Equal(money.MustParse("10.50")))
	assert.True(t, rung1.Buy.Price.Equal(money.MustParse("10.30")))
	assert.True(t, rung1.Buy.Active && rung1.Buy.Crossed)
	assert.False(t, rung1.Sell.Active || rung1.Sell.Crossed)

	top := ladder[0]
	assert.Equal(t, int64(60), top.PositionLimit)
	assert.True(t, top.Sell.Price.Equal(money.MustParse("13.00")))
	assert.False(t, top.Buy.Crossed, "outer rungs start uncrossed")

	short1 := ladder[6]
	assert.Equal(t, models.Short, short1.Kind)
	assert.Equal(t, int64(-10), short1.PositionLimit)
	assert.True(t, short1.Buy.Price.Equal(money.MustParse("9.50")))
	assert.True(t, short1.Sell.Price.Equal(money.MustParse("9.70")))
	assert.True(t, short1.Sell.Active && short1.Sell.Crossed)
	assert.False(t, short1.Buy.Active)

	bottom := ladder[11]
	assert.Equal(t, int64(-60), bottom.PositionLimit)
	assert.True(t, bottom.Buy.Price.Equal(money.MustParse("7.00")))
}

func TestBuild_Properties(t *testing.T) {
	cases := []Params{
		exampleParams(),
		{InitialPrice: money.MustParse("123.45"), TargetPosition: 300, SharesPerInterval: 100, Spacing: money.MustParse("0.25"), IntervalProfit: money.MustParse("0.05")},
		{InitialPrice: money.MustParse("5"), TargetPosition: 1, SharesPerInterval: 1, Spacing: money.MustParse("0.01"), IntervalProfit: money.MustParse("0.005"), Static: true},
	}
	for _, p := range cases {
		ladder, err := Build(p)
		require.NoError(t, err)
		n := len(ladder) / 2
		require.Equal(t, int(p.TargetPosition/p.SharesPerInterval+1), n)

		for idx, iv := range ladder {
			assert.True(t, iv.Sell.Price.Sub(iv.Buy.Price).Equal(p.IntervalProfit), "interval %d", idx)
			assert.False(t, iv.Buy.Active && iv.Sell.Active, "interval %d has both sides active", idx)

			var rung int64
			if iv.Kind == models.Long {
				rung = int64(n - idx)
				assert.Equal(t, 1, iv.Sell.Price.Cmp(p.InitialPrice))
				assert.Equal(t, p.SharesPerInterval*rung, iv.PositionLimit)
			} else {
				rung = int64(idx - n + 1)
				assert.Equal(t, -1, iv.Buy.Price.Cmp(p.InitialPrice))
				assert.Equal(t, -p.SharesPerInterval*rung, iv.PositionLimit)
			}
			if idx > 0 {
				assert.Equal(t, -1, iv.Sell.Price.Cmp(ladder[idx-1].Sell.Price), "descending sell prices")
			}
		}
	}
}

func TestBuild_RejectsBadParams(t *testing.T) {
	bad := exampleParams()
	bad.TargetPosition = 55
	_, err := Build(bad)
	assert.True(t, errors.Is(err, ErrInvalidParams), "non-multiple target: %v", err)

	bad = exampleParams()
	bad.IntervalProfit = money.MustParse("0.50")
	_, err = Build(bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad = exampleParams()
	bad.Spacing = money.MustParse("2.00")
	_, err = Build(bad)
	assert.ErrorIs(t, err, ErrInvalidParams, "short ladder below zero")
}

func TestNewStockState_Valid(t *testing.T) {
	st, err := NewStockState(exampleParams(), Meta{Symbol: "ABC", SessionDate: "2026-10-14"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, st.Status)
	assert.True(t, st.Anchor.Equal(st.InitialPrice))
	assert.Equal(t, models.SchemaVersion, st.Version)
	require.NoError(t, st.Validate())
}

func TestValidate_RejectsBrokenLadder(t *testing.T) {
	st, err := NewStockState(exampleParams(), Meta{Symbol: "ABC", SessionDate: "2026-10-14"})
	require.NoError(t, err)

	st.Intervals[1].Shift(money.MustParse("1.00"))
	assert.Error(t, st.Validate(), "sell prices out of order")

	st, err = NewStockState(exampleParams(), Meta{Symbol: "ABC", SessionDate: "2026-10-14"})
	require.NoError(t, err)
	st.Anchor = money.MustParse("12.00")
	assert.Error(t, st.Validate(), "long sells below the anchor")
}

func TestOnboarding_States(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grids.yaml")
	doc := `
commission_per_share: "0.005"
exit_profit_pct: "1.5"
exit_loss_pct: "-2"
stocks:
  - symbol: abc
    initial_price: "10.00"
    shares_per_interval: 10
    target_position: 50
    spacing: "0.50"
    interval_profit: "0.20"
  - symbol: XYZ
    shares_per_interval: 5
    target_position: 20
    spacing: "1"
    interval_profit: "0.4"
    static: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	o, err := LoadOnboarding(path)
	require.NoError(t, err)

	var asked []string
	price := func(_ context.Context, symbol string) (decimal.Decimal, error) {
		asked = append(asked, symbol)
		return money.MustParse("42.123"), nil
	}

	states, err := o.States(context.Background(), "2026-10-14", price)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, []string{"XYZ"}, asked, "only stocks without initial_price hit the quote source")

	abc := states[0]
	assert.Equal(t, "ABC", abc.Symbol)
	assert.True(t, abc.CommissionPerShare.Equal(money.MustParse("0.005")))
	require.NotNil(t, abc.ExitProfitPct)
	assert.True(t, abc.ExitLossPct.Equal(money.MustParse("-2")))

	xyz := states[1]
	assert.True(t, xyz.InitialPrice.Equal(money.MustParse("42.12")))
	assert.True(t, xyz.Static)
	assert.Len(t, xyz.Intervals, 10)
}

func TestOnboarding_RejectsDuplicates(t *testing.T) {
	o := &Onboarding{Stocks: []StockEntry{
		{Symbol: "ABC", InitialPrice: "10", SharesPerInterval: 1, TargetPosition: 1, Spacing: "1", IntervalProfit: "0.5"},
		{Symbol: "abc", InitialPrice: "10", SharesPerInterval: 1, TargetPosition: 1, Spacing: "1", IntervalProfit: "0.5"},
	}}
	_, err := o.States(context.Background(), "2026-10-14", nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
