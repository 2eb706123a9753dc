package geo

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/model"
)

// CityFinder returns up to limit cities whose geohash starts with prefix.
type CityFinder interface {
	FindByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]model.City, error)
}

// LocatorOptions tunes the nearest-city search.
type LocatorOptions struct {
	Precision      int     // geohash length of the first lookup
	MaxDistanceKM  float64 // matches farther than this are not returned
	CandidateLimit int     // cities fetched per prefix
}

// DefaultLocatorOptions mirrors the stored geohash precision and a 50 km cap.
func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{Precision: DefaultPrecision, MaxDistanceKM: 50, CandidateLimit: 200}
}

// Match is a located city and its distance from the query point.
type Match struct {
	City       model.City `json:"city"`
	DistanceKM float64    `json:"distance_km"`
}

// Locator resolves coordinates to the nearest known city.
type Locator struct {
	finder CityFinder
	opts   LocatorOptions
}

// NewLocator creates a Locator. Zero option fields take the defaults.
func NewLocator(finder CityFinder, opts LocatorOptions) *Locator {
	def := DefaultLocatorOptions()
	if opts.Precision <= 0 {
		opts.Precision = def.Precision
	}
	if opts.MaxDistanceKM <= 0 {
		opts.MaxDistanceKM = def.MaxDistanceKM
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = def.CandidateLimit
	}
	return &Locator{finder: finder, opts: opts}
}

// prefixes returns the hash and its two shorter parents, longest first.
func prefixes(hash string) []string {
	var out []string
	for drop := 0; drop <= 2 && drop < len(hash); drop++ {
		out = append(out, hash[:len(hash)-drop])
	}
	return out
}

// Nearest returns the closest city within MaxDistanceKM, or nil when none is
// in range. The search looks up the point's geohash and then its two parent
// cells, stopping at the first cell that yields a city in range. The best
// candidate is carried across cells.
func (l *Locator) Nearest(ctx context.Context, lat, lon float64) (*Match, error) {
	hash, err := Geohash(lat, lon, l.opts.Precision)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, prefix := range prefixes(hash) {
		cities, err := l.finder.FindByGeohashPrefix(ctx, prefix, l.opts.CandidateLimit)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: find cities by prefix %s", prefix)
		}
		for _, c := range cities {
			d := DistanceKM(lat, lon, c.Lat, c.Lon)
			if best == nil || d < best.DistanceKM {
				best = &Match{City: c, DistanceKM: d}
			}
		}
		if best != nil && best.DistanceKM <= l.opts.MaxDistanceKM {
			best.DistanceKM = roundKM(best.DistanceKM)
			return best, nil
		}
	}

	zap.L().Debug("geo: no city within range",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.String("geohash", hash),
	)
	return nil, nil
}
