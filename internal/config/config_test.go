package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

// chdirTemp keeps godotenv from picking up a developer's .env.
func chdirTemp(t *testing.T) {
	t.Helper()
	originalWd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Failed to chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalWd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SIMULATION_MODE", "Random")
	t.Setenv("SESSION_DATE", "2026-10-14")

	// Ensure Optional Envs are Unset
	for _, k := range []string{"LOG_LEVEL", "TICK_INTERVAL_MS", "FILL_TIMEOUT_SEC", "RANDOM_START_PRICE", "HISTORY_FROM"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Mode != ModeRandom {
		t.Errorf("Expected mode random, got %q", cfg.Mode)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel 'INFO', got '%s'", cfg.LogLevel)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("Expected TickInterval 1s, got %s", cfg.TickInterval)
	}
	if cfg.FillTimeout != 30*time.Second {
		t.Errorf("Expected FillTimeout 30s, got %s", cfg.FillTimeout)
	}
	if !cfg.RandomStartPrice.Equal(cfg.RandomStartPrice.Truncate(0)) || cfg.RandomStartPrice.IntPart() != 100 {
		t.Errorf("Expected RandomStartPrice 100, got %s", cfg.RandomStartPrice)
	}
	if cfg.HistoryFrom != "2026-10-14" {
		t.Errorf("Expected HistoryFrom to default to the session date, got %q", cfg.HistoryFrom)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidate_Mode(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SESSION_DATE", "2026-10-14")

	for _, mode := range []string{"", "paper"} {
		t.Setenv("SIMULATION_MODE", mode)
		err := Load().Validate()
		if !errors.Is(err, ErrMode) {
			t.Errorf("mode %q: expected ErrMode, got %v", mode, err)
		}
	}
}

func TestValidate_LiveNeedsCredentials(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SIMULATION_MODE", "live")
	t.Setenv("SESSION_DATE", "2026-10-14")
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")

	if err := Load().Validate(); err == nil {
		t.Fatal("Expected an error without Alpaca credentials")
	}

	t.Setenv("APCA_API_KEY_ID", "key")
	t.Setenv("APCA_API_SECRET_KEY", "secret")
	if err := Load().Validate(); err != nil {
		t.Errorf("Expected valid live config, got %v", err)
	}
}

func TestSessionEnd(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SIMULATION_MODE", "historical")
	t.Setenv("SESSION_DATE", "2026-10-14")
	t.Setenv("MARKET_TZ", "America/New_York")
	t.Setenv("TRADING_END_TIME", "15:55")

	end, err := Load().SessionEnd()
	if err != nil {
		t.Fatalf("SessionEnd failed: %v", err)
	}
	want := time.Date(2026, 10, 14, 19, 55, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Errorf("Expected %s, got %s", want, end.UTC())
	}

	t.Setenv("TRADING_END_TIME", "late")
	if err := Load().Validate(); err == nil {
		t.Error("Expected invalid TRADING_END_TIME to fail validation")
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("TELEGRAM_BOT_TOKEN", "123456:abcdef"); got != "***cdef" {
		t.Errorf("Expected masked token, got %s", got)
	}
	if got := maskValue("APCA_API_SECRET_KEY", "abc"); got != "***" {
		t.Errorf("Expected fully masked short secret, got %s", got)
	}
	if got := maskValue("STATE_DIR", "states"); got != "states" {
		t.Errorf("Expected plain value, got %s", got)
	}
}
