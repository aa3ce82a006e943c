package engine

import (
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// withinLimit reports whether a move from before to after stays between zero
// and the interval limit, and within the target position.
func withinLimit(limit, before, after, target int64) bool {
	lo, hi := int64(0), limit
	if limit < 0 {
		lo, hi = limit, 0
	}
	if before < lo || before > hi || after < lo || after > hi {
		return false
	}
	return after <= target && after >= -target
}

// selectBuys scans the ladder bottom to top and returns the indices of the
// intervals whose buy side executes at ask. Static grids, once one crossed
// interval qualifies, also take every further active buy side that satisfies
// the price and limit checks.
func selectBuys(st *models.StockState, intervals []models.Interval, ask decimal.Decimal) []int {
	var picked []int
	pos := st.Position
	for i := len(intervals) - 1; i >= 0; i-- {
		iv := intervals[i]
		if !iv.Buy.Active || money.Cmp(ask, iv.Buy.Price) > 0 {
			continue
		}
		if !iv.Buy.Crossed && !(st.Static && len(picked) > 0) {
			continue
		}
		after := pos + st.SharesPerInterval
		if !withinLimit(iv.PositionLimit, pos, after, st.TargetPosition) {
			continue
		}
		picked = append(picked, i)
		if closesToFlat(pos, after) {
			break
		}
		pos = after
	}
	return picked
}

// closesToFlat reports a fill that brings a held position back to zero. A pass
// stops there, so one reposition never flips the sign of the position.
func closesToFlat(before, after int64) bool {
	return before != 0 && after == 0
}

// selectSells is the mirror of selectBuys: top to bottom, bid at or above the
// sell price.
func selectSells(st *models.StockState, intervals []models.Interval, bid decimal.Decimal) []int {
	var picked []int
	pos := st.Position
	for i := 0; i < len(intervals); i++ {
		iv := intervals[i]
		if !iv.Sell.Active || money.Cmp(bid, iv.Sell.Price) < 0 {
			continue
		}
		if !iv.Sell.Crossed && !(st.Static && len(picked) > 0) {
			continue
		}
		after := pos - st.SharesPerInterval
		if !withinLimit(iv.PositionLimit, pos, after, st.TargetPosition) {
			continue
		}
		picked = append(picked, i)
		if closesToFlat(pos, after) {
			break
		}
		pos = after
	}
	return picked
}

// applyFills flips the picked intervals. A buy fills a long rung or closes a
// short one; a sell closes a long rung or fills a short one.
func applyFills(intervals []models.Interval, picked []int, action models.Action) {
	for _, i := range picked {
		iv := &intervals[i]
		opening := (action == models.Buy) == (iv.Kind == models.Long)
		if opening {
			iv.Fill()
		} else {
			iv.Open()
		}
	}
}
