// Package store persists seeded cities and seed-load history.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ashkite/cityseed/internal/model"
)

// Store defines the persistence interface for seeded cities.
type Store interface {
	// Cities
	InsertCities(ctx context.Context, cities []model.City) (int, error)
	CountCities(ctx context.Context) (int, error)
	ClearCities(ctx context.Context) (int, error)
	FindByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]model.City, error)

	// Load history
	RecordLoad(ctx context.Context, load model.SeedLoad) error
	ListLoads(ctx context.Context, limit int) ([]model.SeedLoad, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// likePrefix validates a geohash prefix and returns it as a LIKE pattern.
func likePrefix(prefix string) (string, error) {
	if prefix == "" {
		return "", eris.New("store: empty geohash prefix")
	}
	for _, r := range prefix {
		if !strings.ContainsRune(geohashAlphabet, r) {
			return "", eris.Errorf("store: invalid geohash prefix %q", prefix)
		}
	}
	return prefix + "%", nil
}
