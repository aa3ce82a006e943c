package engine

import (
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// rungIndex maps rung r (1 nearest the anchor) of one side to its ladder index.
func rungIndex(n int, kind models.IntervalKind, r int) int {
	if kind == models.Long {
		return n - r
	}
	return n + r - 1
}

// gap returns the innermost unfilled and outermost filled rung of one side.
// The side is contiguous from the centre when outer <= filled count.
func gap(intervals []models.Interval, kind models.IntervalKind) (inner, outer, filled int) {
	n := len(intervals) / 2
	for r := 1; r <= n; r++ {
		if intervals[rungIndex(n, kind, r)].Filled() {
			filled++
			outer = r
		} else if inner == 0 {
			inner = r
		}
	}
	return inner, outer, filled
}

// correct re-anchors a dynamic grid until the fills of each side are
// contiguous from the centre. Each step fills the innermost unfilled rung,
// opens the outermost filled one and moves the whole ladder, anchor included,
// one spacing toward the side that was out of order. The opened rung gets a
// fresh state, so a rung at the ladder edge never keeps a stale latch.
// It returns the number of one-spacing shifts.
func correct(intervals []models.Interval, anchor *decimal.Decimal, spacing decimal.Decimal) int {
	n := len(intervals) / 2
	shifts := 0
	for _, kind := range []models.IntervalKind{models.Long, models.Short} {
		delta := spacing
		if kind == models.Short {
			delta = spacing.Neg()
		}
		for step := 0; step < n; step++ {
			inner, outer, filled := gap(intervals, kind)
			if outer <= filled {
				break
			}
			intervals[rungIndex(n, kind, inner)].Fill()
			intervals[rungIndex(n, kind, outer)].Open()
			for i := range intervals {
				intervals[i].Shift(delta)
			}
			*anchor = money.Add(*anchor, delta)
			shifts++
		}
	}
	return shifts
}

func cloneIntervals(in []models.Interval) []models.Interval {
	out := make([]models.Interval, len(in))
	copy(out, in)
	return out
}
