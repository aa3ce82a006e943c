package engine

import (
	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

// detectCrossings latches the active sides the quote moved through since the
// previous snapshot. A buy side latches when the ask falls from at or above its
// price to below it; a sell side when the bid rises from at or below to above.
// Latched sides stay latched until a fill flips the interval. It returns the
// number of newly latched sides.
func detectCrossings(intervals []models.Interval, prevBid, prevAsk decimal.Decimal, snap models.Snapshot) int {
	latched := 0
	for i := range intervals {
		iv := &intervals[i]
		if iv.Buy.Active && !iv.Buy.Crossed && prevAsk.IsPositive() && snap.Ask.IsPositive() &&
			money.Cmp(prevAsk, iv.Buy.Price) >= 0 && money.Cmp(snap.Ask, iv.Buy.Price) < 0 {
			iv.Buy.Crossed = true
			latched++
		}
		if iv.Sell.Active && !iv.Sell.Crossed && prevBid.IsPositive() && snap.Bid.IsPositive() &&
			money.Cmp(prevBid, iv.Sell.Price) <= 0 && money.Cmp(snap.Bid, iv.Sell.Price) > 0 {
			iv.Sell.Crossed = true
			latched++
		}
	}
	return latched
}
