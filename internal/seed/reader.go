package seed

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ashkite/cityseed/internal/fetcher"
	"github.com/ashkite/cityseed/internal/model"
)

// seedColumns is the column count of a seed file.
const seedColumns = 5

// ReadStats counts seed rows by outcome.
type ReadStats struct {
	Rows    int
	Skipped int
}

// ReadSeed streams a seed CSV and calls fn for each city. A leading header
// row (first field starting with "name_") is skipped. Rows with fewer than
// five fields or unparseable coordinates are skipped. A blank localized name
// falls back to the default name. Returning an error from fn stops the read.
func ReadSeed(ctx context.Context, r io.Reader, fn func(model.City) error) (ReadStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats ReadStats
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})

	first := true
	for rec := range rowCh {
		if first {
			first = false
			if len(rec) > 0 && strings.HasPrefix(rec[0], "name_") {
				continue
			}
		}

		c, ok := parseSeedRecord(rec)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := fn(c); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	for err := range errCh {
		if err != nil {
			return stats, eris.Wrap(err, "seed: read seed file")
		}
	}
	return stats, nil
}

func parseSeedRecord(rec []string) (model.City, bool) {
	if len(rec) < seedColumns {
		return model.City{}, false
	}
	lat, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return model.City{}, false
	}
	lon, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return model.City{}, false
	}

	local := rec[1]
	if local == "" {
		local = rec[0]
	}
	return model.City{
		NameDefault: rec[0],
		NameLocal:   local,
		CountryCode: rec[2],
		Lat:         lat,
		Lon:         lon,
	}, true
}
