package gazetteer

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/fetcher"
)

// Place is one populated place from the places dump. Lat and Lon keep the
// source text so the emitted file keeps the source precision.
type Place struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	CountryCode string `json:"country_code"`
}

// IDSet is a set of place identifiers.
type IDSet map[string]struct{}

// Add registers id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers in the set.
func (s IDSet) Len() int { return len(s) }

// PlaceIndex is the result of reading the places dump: places in first-seen
// order and the set of their identifiers.
type PlaceIndex struct {
	Places []Place
	IDs    IDSet

	Lines   int // rows read
	Skipped int // rows dropped as malformed or incomplete
}

// PlaceIndexBuilder accumulates places one row at a time.
type PlaceIndexBuilder struct {
	cols  PlaceColumns
	split int
	idx   *PlaceIndex
}

// NewPlaceIndexBuilder creates a builder reading the given column layout.
func NewPlaceIndexBuilder(cols PlaceColumns) *PlaceIndexBuilder {
	return &PlaceIndexBuilder{
		cols:  cols,
		split: cols.maxIndex() + 2,
		idx:   &PlaceIndex{IDs: make(IDSet)},
	}
}

// Add parses one tab-separated row. It returns false when the row was dropped.
func (b *PlaceIndexBuilder) Add(line string) bool {
	b.idx.Lines++
	p, ok := parsePlace(line, b.cols, b.split)
	if !ok {
		b.idx.Skipped++
		return false
	}
	b.idx.Places = append(b.idx.Places, p)
	b.idx.IDs.Add(p.ID)
	return true
}

// Index returns the accumulated index.
func (b *PlaceIndexBuilder) Index() *PlaceIndex {
	return b.idx
}

func parsePlace(line string, cols PlaceColumns, split int) (Place, bool) {
	fields := strings.SplitN(line, "\t", split)
	if len(fields) <= cols.maxIndex() {
		return Place{}, false
	}

	name := strings.TrimSpace(fields[cols.ASCIIName])
	if name == "" {
		name = strings.TrimSpace(fields[cols.Name])
	}

	p := Place{
		ID:          strings.TrimSpace(fields[cols.ID]),
		Name:        strings.TrimSpace(ToASCII(name)),
		Lat:         strings.TrimSpace(fields[cols.Lat]),
		Lon:         strings.TrimSpace(fields[cols.Lon]),
		CountryCode: strings.TrimSpace(fields[cols.Country]),
	}
	if p.ID == "" || p.Name == "" || p.Lat == "" || p.Lon == "" || p.CountryCode == "" {
		return Place{}, false
	}
	return p, true
}

// BuildPlaceIndex reads the places dump from r once, top to bottom.
// Malformed rows are skipped; only read failures are returned.
func BuildPlaceIndex(ctx context.Context, r io.Reader, cols PlaceColumns) (*PlaceIndex, error) {
	b := NewPlaceIndexBuilder(cols)
	dropped, err := fetcher.ScanLines(ctx, r, func(line string) { b.Add(line) })
	if err != nil {
		return nil, eris.Wrap(err, "gazetteer: read places")
	}

	idx := b.Index()
	idx.Lines += dropped
	idx.Skipped += dropped
	zap.L().Debug("gazetteer: place index built",
		zap.Int("lines", idx.Lines),
		zap.Int("places", len(idx.Places)),
		zap.Int("skipped", idx.Skipped),
	)
	return idx, nil
}
