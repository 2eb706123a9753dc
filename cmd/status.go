package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show city count and recent seed loads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		count, err := st.CountCities(ctx)
		if err != nil {
			return eris.Wrap(err, "status: count cities")
		}
		loads, err := st.ListLoads(ctx, statusLimit)
		if err != nil {
			return eris.Wrap(err, "status: list loads")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Store:  %s (%s)\n", cfg.Store.DatabaseURL, cfg.Store.Driver)
		fmt.Fprintf(out, "Cities: %d\n", count)

		if len(loads) == 0 {
			fmt.Fprintln(out, "\nNo seed loads recorded.")
			return nil
		}

		fmt.Fprintln(out, "\nRecent loads:")
		fmt.Fprintf(out, "  %-20s %-9s %7s %8s  %s\n", "STARTED", "STATUS", "ROWS", "TOOK", "SEED")
		for _, l := range loads {
			fmt.Fprintf(out, "  %-20s %-9s %7d %8s  %s\n",
				l.StartedAt.Local().Format("2006-01-02 15:04:05"),
				l.Status,
				l.Rows,
				l.Duration().Round(time.Millisecond),
				l.SeedPath,
			)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of recent loads to show")
	rootCmd.AddCommand(statusCmd)
}
