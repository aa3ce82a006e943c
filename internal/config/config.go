package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ErrMode is returned when SIMULATION_MODE is missing or unknown.
var ErrMode = errors.New("SIMULATION_MODE must be one of live, random, historical")

// Mode selects where quotes come from and where orders go.
type Mode string

const (
	ModeLive       Mode = "live"
	ModeRandom     Mode = "random"
	ModeHistorical Mode = "historical"
)

// Version is stamped at build time.
var Version = "dev"

type Config struct {
	Mode        Mode
	SessionDate string
	MarketTZ    string
	TradingEnd  string // HH:MM in MarketTZ

	StateDir      string
	HistoryDir    string
	HistoryDB     string
	HistoryFrom   string
	HistoryTo     string
	HistoryRecord bool

	RandomStartPrice decimal.Decimal
	RandomTicks      int
	RandomSeed       int64

	TickInterval     time.Duration
	FillPollInterval time.Duration
	FillTimeout      time.Duration

	LogFile       string
	LogLevel      string
	MaxLogSizeMB  int
	MaxLogBackups int
	MetricsAddr   string

	TelegramToken  string
	TelegramChatID int64
}

// secretVars are masked when the environment is printed.
var secretVars = map[string]bool{
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
	"TELEGRAM_BOT_TOKEN":  true,
}

// Load reads .env (if present) and the process environment.
// Fatal problems are reported by Validate, not here.
func Load() *Config {
	// Load .env variables into the process environment
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Mode:       Mode(strings.ToLower(strings.TrimSpace(os.Getenv("SIMULATION_MODE")))),
		MarketTZ:   getEnv("MARKET_TZ", "America/New_York"),
		TradingEnd: getEnv("TRADING_END_TIME", "15:55"),

		StateDir:      getEnv("STATE_DIR", "states"),
		HistoryDir:    getEnv("HISTORY_DIR", "history"),
		HistoryDB:     getEnv("HISTORY_DB", ""),
		HistoryFrom:   getEnv("HISTORY_FROM", ""),
		HistoryTo:     getEnv("HISTORY_TO", ""),
		HistoryRecord: getEnvAsBool("HISTORY_RECORD", false),

		RandomStartPrice: getEnvAsDecimal("RANDOM_START_PRICE", decimal.NewFromInt(100)),
		RandomTicks:      getEnvAsInt("RANDOM_TICKS", 23400),
		RandomSeed:       int64(getEnvAsInt("RANDOM_SEED", 1)),

		TickInterval:     getEnvAsMillis("TICK_INTERVAL_MS", time.Second),
		FillPollInterval: getEnvAsMillis("FILL_POLL_INTERVAL_MS", time.Second),
		FillTimeout:      time.Duration(getEnvAsInt("FILL_TIMEOUT_SEC", 30)) * time.Second,

		LogFile:       getEnv("LOG_FILE", "grid_trader.log"),
		LogLevel:      strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		MaxLogSizeMB:  getEnvAsInt("MAX_LOG_SIZE_MB", 10),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0)),
	}

	cfg.SessionDate = getEnv("SESSION_DATE", "")
	if cfg.SessionDate == "" {
		now := time.Now()
		if loc, err := time.LoadLocation(cfg.MarketTZ); err == nil {
			now = now.In(loc)
		}
		cfg.SessionDate = now.Format("2006-01-02")
	}
	if cfg.HistoryFrom == "" {
		cfg.HistoryFrom = cfg.SessionDate
	}
	return cfg
}

// Validate reports configuration problems that must stop the program.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLive, ModeRandom, ModeHistorical:
	case "":
		return fmt.Errorf("%w: not set", ErrMode)
	default:
		return fmt.Errorf("%w: got %q", ErrMode, c.Mode)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01-02", c.SessionDate); err != nil {
		return fmt.Errorf("SESSION_DATE %q: %w", c.SessionDate, err)
	}
	if _, err := c.SessionEnd(); err != nil {
		return err
	}
	if c.TickInterval <= 0 || c.FillPollInterval <= 0 || c.FillTimeout <= 0 {
		return errors.New("tick interval, fill poll interval and fill timeout must be positive")
	}

	switch c.Mode {
	case ModeLive:
		var missing []string
		for _, key := range []string{"APCA_API_KEY_ID", "APCA_API_SECRET_KEY"} {
			if os.Getenv(key) == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required environment variables for live mode: %v", missing)
		}
	case ModeRandom:
		if c.RandomTicks <= 0 {
			return fmt.Errorf("RANDOM_TICKS must be positive, got %d", c.RandomTicks)
		}
		if !c.RandomStartPrice.IsPositive() {
			return fmt.Errorf("RANDOM_START_PRICE must be positive, got %s", c.RandomStartPrice)
		}
	}
	return nil
}

// Location is the market time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.MarketTZ)
	if err != nil {
		return nil, fmt.Errorf("MARKET_TZ %q: %w", c.MarketTZ, err)
	}
	return loc, nil
}

// SessionEnd is the session date at TRADING_END_TIME in the market time zone.
func (c *Config) SessionEnd() (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", c.SessionDate+" "+c.TradingEnd, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("TRADING_END_TIME %q: %w", c.TradingEnd, err)
	}
	return end, nil
}

// Debug reports whether per-tick debug logging is on.
func (c *Config) Debug() bool { return c.LogLevel == "DEBUG" }

// PrintEnv logs the variables defined in .env, masking secrets.
func PrintEnv() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log.Println("--- .env File Variables ---")
	for _, key := range keys {
		log.Printf("%s=%s", key, maskValue(key, envMap[key]))
	}
	log.Println("---------------------------")
}

// maskValue shows only the last 4 chars of secret values.
func maskValue(key, val string) string {
	if !secretVars[key] {
		return val
	}
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}
