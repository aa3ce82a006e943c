package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"grid_trading/internal/models"
	"grid_trading/internal/money"

	_ "modernc.org/sqlite"
)

// SQLiteLoader keeps quote logs in a single SQLite database.
type SQLiteLoader struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the quote database at path.
func OpenSQLite(path string) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	// Prices are stored as decimal text to keep them exact.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			ask TEXT NOT NULL,
			bid TEXT NOT NULL,
			PRIMARY KEY (symbol, ts)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create quotes table: %w", err)
	}
	return &SQLiteLoader{db: db}, nil
}

// Append records one quote. A second quote for the same second replaces the first.
func (l *SQLiteLoader) Append(ctx context.Context, symbol string, snap models.Snapshot) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO quotes (symbol, ts, ask, bid) VALUES (?, ?, ?, ?) ON CONFLICT(symbol, ts) DO UPDATE SET ask=excluded.ask, bid=excluded.bid",
		strings.ToUpper(symbol), snap.Timestamp.Unix(), snap.Ask.String(), snap.Bid.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

func (l *SQLiteLoader) Load(ctx context.Context, symbol string, r Range) ([]models.Snapshot, error) {
	from := r.From.Unix()
	to := r.To.AddDate(0, 0, 1).Unix()

	rows, err := l.db.QueryContext(ctx,
		"SELECT ts, ask, bid FROM quotes WHERE symbol = ? AND ts >= ? AND ts < ? ORDER BY ts ASC",
		strings.ToUpper(symbol), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var ts int64
		var ask, bid string
		if err := rows.Scan(&ts, &ask, &bid); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		snap := models.Snapshot{Timestamp: time.Unix(ts, 0).UTC()}
		if snap.Ask, err = money.Parse(ask); err != nil {
			return nil, fmt.Errorf("quote %s@%d ask: %w", symbol, ts, err)
		}
		if snap.Bid, err = money.Parse(bid); err != nil {
			return nil, fmt.Errorf("quote %s@%d bid: %w", symbol, ts, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}
