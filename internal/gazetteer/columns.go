package gazetteer

import (
	"slices"

	"github.com/rotisserie/eris"
)

// PlaceColumns holds the zero-based positions of the fields read from a
// places row.
type PlaceColumns struct {
	ID        int `yaml:"id" mapstructure:"id"`
	Name      int `yaml:"name" mapstructure:"name"`
	ASCIIName int `yaml:"ascii_name" mapstructure:"ascii_name"`
	Lat       int `yaml:"lat" mapstructure:"lat"`
	Lon       int `yaml:"lon" mapstructure:"lon"`
	Country   int `yaml:"country" mapstructure:"country"`
}

// DefaultPlaceColumns returns the GeoNames cities dump layout.
func DefaultPlaceColumns() PlaceColumns {
	return PlaceColumns{ID: 0, Name: 1, ASCIIName: 2, Lat: 4, Lon: 5, Country: 8}
}

// Validate rejects negative positions and fields mapped to the same column.
func (c PlaceColumns) Validate() error {
	return checkColumns("places", map[string]int{
		"id": c.ID, "name": c.Name, "ascii_name": c.ASCIIName,
		"lat": c.Lat, "lon": c.Lon, "country": c.Country,
	})
}

// maxIndex is the highest required position. A row must contain it.
func (c PlaceColumns) maxIndex() int {
	return maxOf(c.ID, c.Name, c.ASCIIName, c.Lat, c.Lon, c.Country)
}

// AltNameColumns holds the zero-based positions of the fields read from an
// alternate-names row. Preferred is optional per row.
type AltNameColumns struct {
	ID        int `yaml:"id" mapstructure:"id"`
	Lang      int `yaml:"lang" mapstructure:"lang"`
	Name      int `yaml:"name" mapstructure:"name"`
	Preferred int `yaml:"preferred" mapstructure:"preferred"`
}

// DefaultAltNameColumns returns the GeoNames alternateNamesV2 layout.
func DefaultAltNameColumns() AltNameColumns {
	return AltNameColumns{ID: 1, Lang: 2, Name: 3, Preferred: 4}
}

// Validate rejects negative positions and fields mapped to the same column.
func (c AltNameColumns) Validate() error {
	return checkColumns("alternate_names", map[string]int{
		"id": c.ID, "lang": c.Lang, "name": c.Name, "preferred": c.Preferred,
	})
}

func (c AltNameColumns) maxRequired() int {
	return maxOf(c.ID, c.Lang, c.Name)
}

func (c AltNameColumns) maxIndex() int {
	return maxOf(c.ID, c.Lang, c.Name, c.Preferred)
}

func maxOf(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}

func checkColumns(layout string, cols map[string]int) error {
	seen := make(map[int]string, len(cols))
	for _, name := range sortedKeys(cols) {
		idx := cols[name]
		if idx < 0 {
			return eris.Errorf("gazetteer: %s column %s has negative index %d", layout, name, idx)
		}
		if other, dup := seen[idx]; dup {
			return eris.Errorf("gazetteer: %s columns %s and %s both use index %d", layout, other, name, idx)
		}
		seen[idx] = name
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
