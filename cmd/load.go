package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashkite/cityseed/internal/seed"
)

var (
	loadSeedPath string
	loadForce    bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a seed file into the city store",
	Long:  "Inserts the cities from a seed CSV with their geohashes. Skips the load when the store already holds cities unless --force is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		path := loadSeedPath
		if path == "" {
			path = cfg.Output.Path
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := seed.NewLoader(st, cfg.Store.BatchSize, cfg.Geocode.Precision).Load(ctx, path, loadForce)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Skipped {
			fmt.Fprintf(out, "Store already holds %d cities; skipped (use --force to reload)\n", res.Cities)
			return nil
		}
		fmt.Fprintf(out, "Loaded %d cities from %s (%d rows rejected); store now holds %d\n",
			res.Inserted, path, res.Rejected, res.Cities)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadSeedPath, "seed", "", "seed CSV to load (default: output.path)")
	loadCmd.Flags().BoolVar(&loadForce, "force", false, "replace cities already in the store")
	rootCmd.AddCommand(loadCmd)
}
