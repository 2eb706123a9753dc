package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cityseed",
	Short: "Localized city gazetteer seed builder",
	Long: `Joins the GeoNames cities and alternate-names dumps into a localized city
seed file, loads it into a database and answers nearest-city lookups.

  build    download the dumps and write the seed CSV (and optional GeoJSON)
  load     insert a seed CSV into the city store
  nearest  print the closest seeded city to --lat/--lon
  serve    HTTP lookup API over the city store
  status   city count and recent seed loads
  config   print the effective configuration

Settings come from config.yaml, .env and CITYSEED_* environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
