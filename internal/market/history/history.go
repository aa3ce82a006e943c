// Package history loads recorded per-second quote series for replay.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"grid_trading/internal/models"
)

// DateLayout is the layout of session dates in paths and configuration.
const DateLayout = "2006-01-02"

// Range selects the session dates of a replay, both ends inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// ParseRange parses two session dates. An empty to means a single day.
func ParseRange(from, to string) (Range, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return Range{}, fmt.Errorf("history from date %q: %w", from, err)
	}
	t := f
	if to != "" {
		if t, err = time.Parse(DateLayout, to); err != nil {
			return Range{}, fmt.Errorf("history to date %q: %w", to, err)
		}
	}
	if t.Before(f) {
		return Range{}, fmt.Errorf("history range %s..%s is reversed", from, to)
	}
	return Range{From: f, To: t}, nil
}

// Days lists the dates of the range in order.
func (r Range) Days() []string {
	var days []string
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

func (r Range) key() string {
	return r.From.Format(DateLayout) + ".." + r.To.Format(DateLayout)
}

// Loader reads the recorded series of one symbol over a date range, ordered by
// timestamp.
type Loader interface {
	Load(ctx context.Context, symbol string, r Range) ([]models.Snapshot, error)
}

// JSONLoader reads <dir>/<date>/<SYMBOL>.json files holding an array of quotes.
// Days without a file are skipped.
type JSONLoader struct {
	Dir string
}

func (l JSONLoader) Load(ctx context.Context, symbol string, r Range) ([]models.Snapshot, error) {
	var out []models.Snapshot
	for _, day := range r.Days() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(l.Dir, day, strings.ToUpper(symbol)+".json")
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read quote log: %w", err)
		}
		var quotes []models.Snapshot
		if err := json.Unmarshal(b, &quotes); err != nil {
			return nil, fmt.Errorf("parse quote log %s: %w", path, err)
		}
		out = append(out, quotes...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Cache holds loaded series so several loops replaying the same symbol and
// range read the log once. Cached series are shared and must not be modified.
type Cache struct {
	mu     sync.Mutex
	loader Loader
	series map[string][]models.Snapshot
}

func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader, series: make(map[string][]models.Snapshot)}
}

// Series returns the cached series, loading it on first use.
func (c *Cache) Series(ctx context.Context, symbol string, r Range) ([]models.Snapshot, error) {
	key := strings.ToUpper(symbol) + "@" + r.key()

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.series[key]; ok {
		return s, nil
	}
	s, err := c.loader.Load(ctx, symbol, r)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", key, err)
	}
	c.series[key] = s
	return s, nil
}

// Len reports how many series are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.series)
}
