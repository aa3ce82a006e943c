package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"grid_trading/internal/config"
	"grid_trading/internal/storage"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [date]",
		Short: "Show the open and closed strategies of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			date := cfg.SessionDate
			if len(args) > 0 {
				date = args[0]
			}
			return status(storage.New(cfg.StateDir), date)
		},
	}
}

func status(store *storage.Store, date string) error {
	active, err := store.ListActive(date)
	if err != nil {
		return err
	}
	closed, err := store.ListClosed(date)
	if err != nil {
		return err
	}
	if len(active) == 0 && len(closed) == 0 {
		sessions, _ := store.Sessions()
		fmt.Printf("No strategies for %s. Sessions on disk: %v\n", date, sessions)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSTATUS\tPOSITION\tANCHOR\tNET VALUE\tEXIT PNL %\tTRADES")
	for _, symbol := range active {
		st, err := store.Load(date, symbol)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\t\t\t\t\t\n", symbol, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n", st.Symbol, st.Status, st.Position,
			st.Anchor.StringFixed(2), st.NetPositionValue.StringFixed(2), st.ExitPnLPct.StringFixed(2), len(st.TradingLog))
	}
	for _, c := range closed {
		fmt.Fprintf(w, "%s\tclosed %s\t0\t\t\t\t\n", c.Symbol, c.Reason)
	}
	return w.Flush()
}
