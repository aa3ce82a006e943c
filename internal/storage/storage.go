// Package storage keeps one JSON state file per stock per session date:
//
//	<dir>/<date>/<SYMBOL>.json              open strategy
//	<dir>/<date>/_<SYMBOL>_<W|L|N>.json     closed strategy, by close reason
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"grid_trading/internal/models"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrStateNotFound is returned when no open state file exists for a stock.
var ErrStateNotFound = errors.New("state file not found")

// closedPrefix marks closed state files; they are skipped by discovery.
const closedPrefix = "_"

// Store reads and writes state files under Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store { return &Store{Dir: dir} }

// Path is the file of an open strategy.
func (s *Store) Path(date, symbol string) string {
	return filepath.Join(s.Dir, date, strings.ToUpper(symbol)+".json")
}

// ClosedPath is the file a closed strategy is renamed to.
func (s *Store) ClosedPath(date, symbol string, reason models.CloseReason) string {
	name := fmt.Sprintf("%s%s_%s.json", closedPrefix, strings.ToUpper(symbol), reason)
	return filepath.Join(s.Dir, date, name)
}

// Load reads the open state of a stock, migrating older layouts.
func (s *Store) Load(date, symbol string) (*models.StockState, error) {
	path := s.Path(date, symbol)

	// Open the file for reading.
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var st models.StockState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// CHECK FOR MIGRATION
	if migrateState(&st) {
		log.Printf("[%s] INFO: State migrated to version %s. Saving...", st.Symbol, st.Version)
		if err := s.Save(&st); err != nil {
			return nil, err
		}
	}

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &st, nil
}

// migrateState handles schema evolution.
// Returns true if changes were made and the state needs to be saved.
func migrateState(st *models.StockState) bool {
	updated := false

	// Migration: 1.0 -> 1.1 (re-anchoring centre)
	if st.Version < "1.1" {
		log.Printf("[%s] INFO: Migrating State Schema from %q to 1.1", st.Symbol, st.Version)
		if st.Anchor.IsZero() {
			st.Anchor = st.InitialPrice
		}
		if st.Status == "" {
			st.Status = models.StatusOpen
		}
		st.Version = "1.1"
		updated = true
	}

	return updated
}

// Save writes the state using an atomic write pattern.
// 1. Write to a temporary file.
// 2. Sync to ensure data is on disk.
// 3. Rename temporary file to destination (atomic operation).
func (s *Store) Save(st *models.StockState) error {
	path := s.Path(st.SessionDate, st.Symbol)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// The temp file lives in the same directory so the rename stays on one filesystem.
	tmpFile := path + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp state file: %w", err)
	}
	// Close explicitly before renaming (essential on Windows)
	f.Close()

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Close saves a closed state and renames its file to carry the close reason.
func (s *Store) Close(st *models.StockState) error {
	if !st.Closed() {
		return fmt.Errorf("%s: close called on %s state", st.Symbol, st.Status)
	}
	if err := s.Save(st); err != nil {
		return err
	}
	from := s.Path(st.SessionDate, st.Symbol)
	to := s.ClosedPath(st.SessionDate, st.Symbol, st.CloseReason)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename closed state: %w", err)
	}
	log.Printf("[%s] INFO: state closed as %s", st.Symbol, filepath.Base(to))
	return nil
}

// ListActive returns the symbols with an open state file for the date.
func (s *Store) ListActive(date string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.Dir, date, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	var symbols []string
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasPrefix(name, closedPrefix) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Closed is a closed strategy found on disk.
type Closed struct {
	Symbol string
	Reason models.CloseReason
}

// ListClosed returns the strategies closed on the date.
func (s *Store) ListClosed(date string) ([]Closed, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.Dir, date, closedPrefix+"*_{W,L,N}.json"))
	if err != nil {
		return nil, fmt.Errorf("list closed states: %w", err)
	}
	var out []Closed
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), closedPrefix), ".json")
		i := strings.LastIndex(name, "_")
		out = append(out, Closed{Symbol: name[:i], Reason: models.CloseReason(name[i+1:])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Sessions lists the session dates with any state file.
func (s *Store) Sessions() ([]string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(s.Dir, "*", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	seen := make(map[string]bool)
	var dates []string
	for _, m := range matches {
		d := filepath.Base(filepath.Dir(m))
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates, nil
}
