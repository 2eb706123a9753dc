// Package geo encodes coordinates as geohashes and finds the nearest seeded
// city by widening a geohash prefix.
package geo

import (
	"math"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
)

// DefaultPrecision is the geohash length stored with every city.
const DefaultPrecision = 6

// earthRadiusKM is the mean Earth radius.
const earthRadiusKM = 6371.0

// ValidCoordinates reports whether lat/lon are finite and in range.
func ValidCoordinates(lat, lon float64) bool {
	return s2.LatLngFromDegrees(lat, lon).IsValid()
}

// Geohash encodes lat/lon at the given precision (1..12).
func Geohash(lat, lon float64, precision int) (string, error) {
	if !ValidCoordinates(lat, lon) {
		return "", eris.Errorf("geo: invalid coordinates %f,%f", lat, lon)
	}
	if precision < 1 || precision > 12 {
		return "", eris.Errorf("geo: geohash precision %d out of range", precision)
	}
	return geohash.EncodeWithPrecision(lat, lon, precision), nil
}

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * earthRadiusKM
}

// roundKM trims a distance for display.
func roundKM(km float64) float64 {
	return math.Round(km*1000) / 1000
}
