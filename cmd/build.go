package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashkite/cityseed/internal/config"
	"github.com/ashkite/cityseed/internal/fetcher"
	"github.com/ashkite/cityseed/internal/resilience"
	"github.com/ashkite/cityseed/internal/seed"
)

var (
	buildOutput  string
	buildTarget  string
	buildGeoJSON string
	buildJSON    bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the localized city seed file",
	Long:  "Downloads (or reuses cached) GeoNames dumps, joins places with their alternate names in the target locale and writes the seed CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyBuildFlags(cfg)
		if err := cfg.Validate("build"); err != nil {
			return err
		}

		report, err := seed.NewBuilder(newCache(cfg), buildOptions(cfg)).Build(ctx)
		if err != nil {
			return err
		}

		if buildJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %s\n", report.OutputPath)
		fmt.Fprintf(out, "  places:     %d (skipped %d)\n", report.Places, report.PlacesSkipped)
		fmt.Fprintf(out, "  localized:  %d (%s)\n", report.Localized, cfg.Locale.Target)
		fmt.Fprintf(out, "  rows:       %d\n", report.Rows)
		if report.GeoJSONPath != "" {
			fmt.Fprintf(out, "  geojson:    %s (%d features)\n", report.GeoJSONPath, report.GeoJSONFeatures)
		}
		fmt.Fprintf(out, "  duration:   %s\n", report.Duration.Round(time.Millisecond))
		return nil
	},
}

// applyBuildFlags lets command-line flags override the loaded config.
func applyBuildFlags(c *config.Config) {
	if buildOutput != "" {
		c.Output.Path = buildOutput
	}
	if buildTarget != "" {
		c.Locale.Target = buildTarget
	}
	if buildGeoJSON != "" {
		c.Output.GeoJSONPath = buildGeoJSON
	}
}

// newCache wires the HTTP and FTP fetchers behind the on-disk source cache.
func newCache(c *config.Config) *fetcher.Cache {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	retry := resilience.DefaultPolicy()
	if c.Fetch.MaxAttempts > 0 {
		retry.Attempts = c.Fetch.MaxAttempts
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    timeout,
		Retry:      retry,
		RatePerSec: c.Fetch.RatePerSec,
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout, Retry: retry})

	return fetcher.NewCache(c.Sources.CacheDir, httpFetcher, ftpFetcher)
}

func buildOptions(c *config.Config) seed.Options {
	return seed.Options{
		Places: seed.Source{
			Location: c.Sources.Places.URL,
			Member:   c.Sources.Places.Member,
		},
		AlternateNames: seed.Source{
			Location: c.Sources.AlternateNames.URL,
			Member:   c.Sources.AlternateNames.Member,
		},
		DefaultLocale:  c.Locale.Default,
		TargetLocale:   c.Locale.Target,
		OutputPath:     c.Output.Path,
		GeoJSONPath:    c.Output.GeoJSONPath,
		PlaceColumns:   c.Columns.Places,
		AltNameColumns: c.Columns.AlternateNames,
	}
}

func init() {
	buildCmd.Flags().StringVar(&buildOutput, "output", "", "seed CSV path (default from config)")
	buildCmd.Flags().StringVar(&buildTarget, "target", "", "target locale code (default from config)")
	buildCmd.Flags().StringVar(&buildGeoJSON, "geojson", "", "also write a GeoJSON FeatureCollection to this path")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print the build report as JSON")
	rootCmd.AddCommand(buildCmd)
}
