package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashkite/cityseed/internal/config"
	"github.com/ashkite/cityseed/internal/geo"
)

var (
	nearestLat float64
	nearestLon float64
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the nearest seeded city to a coordinate",
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

		m, err := newLocator(st, cfg).Nearest(ctx, nearestLat, nearestLon)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if m == nil {
			fmt.Fprintf(out, "no city within %.0f km\n", cfg.Geocode.MaxDistanceKM)
			return nil
		}
		fmt.Fprintf(out, "%s (%s), %s  %.3f km\n", m.City.DisplayName(), m.City.NameDefault, m.City.CountryCode, m.DistanceKM)
		return nil
	},
}

func newLocator(finder geo.CityFinder, c *config.Config) *geo.Locator {
	return geo.NewLocator(finder, geo.LocatorOptions{
		Precision:      c.Geocode.Precision,
		MaxDistanceKM:  c.Geocode.MaxDistanceKM,
		CandidateLimit: c.Geocode.CandidateLimit,
	})
}

func init() {
	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "latitude in decimal degrees")
	nearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "longitude in decimal degrees")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(nearestCmd)
}
