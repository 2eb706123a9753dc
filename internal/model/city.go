// Package model holds the persisted city and seed-load records.
package model

import "time"

// City is one seeded place as stored for reverse lookup.
type City struct {
	ID          int64   `json:"id,omitempty"`
	NameDefault string  `json:"name_default"`
	NameLocal   string  `json:"name_local"`
	CountryCode string  `json:"country_code"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Geohash     string  `json:"geohash"`
}

// DisplayName returns the localized name, or the default name when the
// localized one is blank.
func (c City) DisplayName() string {
	if c.NameLocal != "" {
		return c.NameLocal
	}
	return c.NameDefault
}

// LoadStatus is the outcome of a seed load.
type LoadStatus string

const (
	LoadStatusComplete LoadStatus = "complete"
	LoadStatusSkipped  LoadStatus = "skipped"
	LoadStatusFailed   LoadStatus = "failed"
)

// SeedLoad records one run of the seeder against a store.
type SeedLoad struct {
	ID         string     `json:"id"`
	SeedPath   string     `json:"seed_path"`
	Rows       int        `json:"rows"`
	Status     LoadStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Duration returns how long the load took.
func (l SeedLoad) Duration() time.Duration {
	return l.FinishedAt.Sub(l.StartedAt)
}
