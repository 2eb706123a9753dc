package seed

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ashkite/cityseed/internal/fetcher"
	"github.com/ashkite/cityseed/internal/gazetteer"
)

// stagedFile is a fully written temp file waiting to be renamed onto path.
type stagedFile struct {
	tmp  string
	path string
}

// stageFile writes to a temp file next to path. Nothing at path changes
// until commit. On failure the temp file is removed.
func stageFile(path string, write func(w io.Writer) error) (_ *stagedFile, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "seed: create output dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, eris.Wrap(err, "seed: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, eris.Wrap(err, "seed: flush output")
	}
	if err := tmp.Sync(); err != nil {
		return nil, eris.Wrap(err, "seed: sync output")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "seed: close output")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, eris.Wrap(err, "seed: chmod output")
	}
	return &stagedFile{tmp: tmp.Name(), path: path}, nil
}

func (s *stagedFile) commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		return eris.Wrapf(err, "seed: rename output to %s", s.path)
	}
	return nil
}

func (s *stagedFile) discard() {
	_ = os.Remove(s.tmp)
}

// commitAll renames every staged file into place, last one last. Files not
// yet committed when a rename fails are discarded.
func commitAll(files ...*stagedFile) error {
	for i, f := range files {
		if err := f.commit(); err != nil {
			for _, rest := range files[i:] {
				rest.discard()
			}
			return err
		}
	}
	return nil
}

// stageSeedCSV writes the header and rows as CSV.
func stageSeedCSV(path string, header []string, rows []gazetteer.Row) (*stagedFile, error) {
	return stageFile(path, func(w io.Writer) error {
		return fetcher.WriteCSV(w, header, gazetteer.Records(rows))
	})
}

// stageGeoJSON writes rows as a FeatureCollection of points. Rows whose
// coordinates do not parse as numbers are left out.
func stageGeoJSON(path string, header []string, rows []gazetteer.Row) (*stagedFile, int, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for _, r := range rows {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}),
			Properties: map[string]any{
				header[0]: r.DefaultName,
				header[1]: r.LocalizedName,
				header[2]: r.CountryCode,
			},
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, 0, eris.Wrap(err, "seed: encode geojson")
	}

	f, err := stageFile(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return eris.Wrap(err, "seed: write geojson")
		}
		_, err := w.Write([]byte("\n"))
		return eris.Wrap(err, "seed: write geojson")
	})
	if err != nil {
		return nil, 0, err
	}
	return f, len(fc.Features), nil
}
