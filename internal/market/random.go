package market

import (
	"context"
	"math/rand"
	"time"

	"grid_trading/internal/models"
	"grid_trading/internal/money"

	"github.com/shopspring/decimal"
)

var tick = decimal.New(1, -2)

// RandomWalk generates a synthetic quote stream. Each call moves the ask one
// cent down (45%), leaves it flat (10%) or moves it one cent up (45%). The bid
// trails the ask by one cent and timestamps advance one second per snapshot.
type RandomWalk struct {
	rng   *rand.Rand
	ask   decimal.Decimal
	at    time.Time
	left  int
	total int
}

// NewRandomWalk starts a walk at price. ticks bounds the number of snapshots;
// the walk is exhausted once they are served.
func NewRandomWalk(price decimal.Decimal, ticks int, seed int64, start time.Time) *RandomWalk {
	return &RandomWalk{
		rng:   rand.New(rand.NewSource(seed)),
		ask:   money.Round(price, 2),
		at:    start,
		left:  ticks,
		total: ticks,
	}
}

func (w *RandomWalk) Next(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	if w.left <= 0 {
		return models.Snapshot{}, ErrExhausted
	}
	if w.left < w.total {
		w.step()
		w.at = w.at.Add(time.Second)
	}
	w.left--
	return models.Snapshot{Bid: money.Sub(w.ask, tick), Ask: w.ask, Timestamp: w.at}, nil
}

func (w *RandomWalk) step() {
	r := w.rng.Float64()
	switch {
	case r < 0.45:
		// Keep the bid above zero.
		if money.Cmp(w.ask, money.Mul(tick, money.FromInt(2))) > 0 {
			w.ask = money.Sub(w.ask, tick)
		}
	case r < 0.55:
	default:
		w.ask = money.Add(w.ask, tick)
	}
}

func (w *RandomWalk) Exhausted() bool { return w.left <= 0 }
