package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"grid_trading/internal/config"
	"grid_trading/internal/logger"

	"github.com/spf13/cobra"
)

const VersionFile = "version.latest"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridtrader",
		Short: "Interval-grid mean-reversion trader",
		Long: `gridtrader runs one interval grid per stock against live Alpaca quotes,
a random walk or recorded history. Onboard stocks first, then run them.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gridtrader version %s\n", readVersion())
		},
	}
}

// setup loads and validates the configuration, then routes logs to the
// rotating file. The returned func closes the log file.
func setup() (*config.Config, func(), error) {
	cfg := config.Load()
	rotator, err := logger.Setup(cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)
	closeLog := func() {}
	if err == nil {
		closeLog = func() { rotator.Close() }
	}
	if err := cfg.Validate(); err != nil {
		closeLog()
		return nil, nil, err
	}
	config.PrintEnv()
	return cfg, closeLog, nil
}

// sessionOpen is 09:30 market time on the session date; simulated quotes start there.
func sessionOpen(cfg *config.Config) time.Time {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", cfg.SessionDate+" 09:30", loc)
	if err != nil {
		log.Printf("WARN: bad session date %q: %v", cfg.SessionDate, err)
	}
	return t
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return config.Version
	}
	return string(version)
}
