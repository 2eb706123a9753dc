// Package seed builds the localized city seed file from the GeoNames dumps
// and loads seed files into a store.
package seed

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashkite/cityseed/internal/fetcher"
	"github.com/ashkite/cityseed/internal/gazetteer"
)

// Source names used in errors and logs.
const (
	SourcePlaces         = "places"
	SourceAlternateNames = "alternate_names"
)

// Resolver turns a source location into a readable local path.
// *fetcher.Cache implements it.
type Resolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// Source is one input dump. Member names the file inside a ZIP archive;
// empty means Location is a plain text file.
type Source struct {
	Location string
	Member   string
}

// Options configures a build.
type Options struct {
	Places         Source
	AlternateNames Source

	DefaultLocale string
	TargetLocale  string

	OutputPath  string
	GeoJSONPath string // optional

	PlaceColumns   gazetteer.PlaceColumns
	AltNameColumns gazetteer.AltNameColumns
}

// Report summarizes a finished build.
type Report struct {
	Places          int           `json:"places"`
	PlacesSkipped   int           `json:"places_skipped"`
	AltNameLines    int           `json:"alternate_name_lines"`
	AltNamesMatched int           `json:"alternate_names_matched"`
	Localized       int           `json:"localized"`
	Rows            int           `json:"rows"`
	OutputPath      string        `json:"output_path"`
	GeoJSONPath     string        `json:"geojson_path,omitempty"`
	GeoJSONFeatures int           `json:"geojson_features,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Builder runs the two-pass join and writes the seed file.
type Builder struct {
	resolver Resolver
	opts     Options
}

// NewBuilder creates a Builder.
func NewBuilder(resolver Resolver, opts Options) *Builder {
	return &Builder{resolver: resolver, opts: opts}
}

// Build fetches both sources, joins them and writes the output. Sources are
// fetched in parallel; the join itself runs sequentially, places first.
// Nothing is written unless both passes complete.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "seed.builder"))

	placesPath, altPath, err := b.resolveSources(ctx)
	if err != nil {
		return nil, err
	}

	var idx *gazetteer.PlaceIndex
	err = b.readSource(ctx, SourcePlaces, placesPath, b.opts.Places.Member, func(r io.Reader) error {
		var err error
		idx, err = gazetteer.BuildPlaceIndex(ctx, r, b.opts.PlaceColumns)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("place index built",
		zap.Int("places", len(idx.Places)),
		zap.Int("skipped", idx.Skipped),
	)

	var names map[string]string
	var stats gazetteer.ResolveStats
	err = b.readSource(ctx, SourceAlternateNames, altPath, b.opts.AlternateNames.Member, func(r io.Reader) error {
		var err error
		names, stats, err = gazetteer.ResolveLocalizedNames(ctx, r, idx.IDs, b.opts.TargetLocale, b.opts.AltNameColumns)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("localized names resolved",
		zap.String("locale", b.opts.TargetLocale),
		zap.Int("matched", stats.Matched),
		zap.Int("localized", len(names)),
	)

	rows := gazetteer.Assemble(idx.Places, names)
	header := gazetteer.Header(b.opts.DefaultLocale, b.opts.TargetLocale)

	csvFile, err := stageSeedCSV(b.opts.OutputPath, header, rows)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Places:          len(idx.Places),
		PlacesSkipped:   idx.Skipped,
		AltNameLines:    stats.Lines,
		AltNamesMatched: stats.Matched,
		Localized:       len(names),
		Rows:            len(rows),
		OutputPath:      b.opts.OutputPath,
	}

	// The seed CSV is renamed last so it only appears once every output is staged.
	staged := []*stagedFile{csvFile}
	if b.opts.GeoJSONPath != "" {
		gj, n, err := stageGeoJSON(b.opts.GeoJSONPath, header, rows)
		if err != nil {
			csvFile.discard()
			return nil, err
		}
		staged = []*stagedFile{gj, csvFile}
		report.GeoJSONPath = b.opts.GeoJSONPath
		report.GeoJSONFeatures = n
	}
	if err := commitAll(staged...); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	log.Info("seed file written",
		zap.String("path", report.OutputPath),
		zap.Int("rows", report.Rows),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// resolveSources fetches both dumps concurrently.
func (b *Builder) resolveSources(ctx context.Context) (string, string, error) {
	var placesPath, altPath string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := b.resolver.Resolve(gctx, b.opts.Places.Location)
		if err != nil {
			return b.sourceErr(ctx, SourcePlaces, "fetch", err)
		}
		placesPath = p
		return nil
	})
	g.Go(func() error {
		p, err := b.resolver.Resolve(gctx, b.opts.AlternateNames.Location)
		if err != nil {
			return b.sourceErr(ctx, SourceAlternateNames, "fetch", err)
		}
		altPath = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return placesPath, altPath, nil
}

// readSource opens the local dump (or its archive member) and hands the
// stream to fn.
func (b *Builder) readSource(ctx context.Context, source, path, member string, fn func(r io.Reader) error) error {
	rc, err := fetcher.OpenSource(path, member)
	if err != nil {
		return b.sourceErr(ctx, source, "open", err)
	}
	defer rc.Close() //nolint:errcheck

	if err := fn(rc); err != nil {
		return b.sourceErr(ctx, source, "read", err)
	}
	return nil
}

// sourceErr classifies err. Cancellation of the caller's context is
// reported as such, not as a source failure.
func (b *Builder) sourceErr(ctx context.Context, source, op string, err error) error {
	if ctx.Err() != nil {
		return eris.Wrapf(ctx.Err(), "seed: build cancelled during %s %s", op, source)
	}
	return &SourceError{Source: source, Op: op, Err: err}
}
