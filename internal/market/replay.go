package market

import (
	"context"
	"fmt"

	"grid_trading/internal/market/history"
	"grid_trading/internal/models"
)

// ReplaySource serves a recorded series in order. The series is loaded once
// through the cache the caller passes in.
type ReplaySource struct {
	symbol string
	series []models.Snapshot
	pos    int
}

func NewReplaySource(ctx context.Context, cache *history.Cache, symbol string, r history.Range) (*ReplaySource, error) {
	series, err := cache.Series(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no recorded quotes for %s in %v..%v", symbol,
			r.From.Format(history.DateLayout), r.To.Format(history.DateLayout))
	}
	return &ReplaySource{symbol: symbol, series: series}, nil
}

func (s *ReplaySource) Next(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	if s.pos >= len(s.series) {
		return models.Snapshot{}, fmt.Errorf("%s: %w after %d snapshots", s.symbol, ErrExhausted, len(s.series))
	}
	snap := s.series[s.pos]
	s.pos++
	return snap, nil
}

func (s *ReplaySource) Exhausted() bool { return s.pos >= len(s.series) }

// Remaining reports how many snapshots are left.
func (s *ReplaySource) Remaining() int { return len(s.series) - s.pos }
