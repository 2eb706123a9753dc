package seed

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/geo"
	"github.com/ashkite/cityseed/internal/model"
)

// DefaultBatchSize is the number of cities written per insert.
const DefaultBatchSize = 500

// CitySink is the part of the store the loader writes to.
type CitySink interface {
	CountCities(ctx context.Context) (int, error)
	ClearCities(ctx context.Context) (int, error)
	InsertCities(ctx context.Context, cities []model.City) (int, error)
	RecordLoad(ctx context.Context, load model.SeedLoad) error
}

// LoadResult describes one Load call.
type LoadResult struct {
	LoadID   string `json:"load_id"`
	Skipped  bool   `json:"skipped"`
	Inserted int    `json:"inserted"`
	Rejected int    `json:"rejected"`
	Cities   int    `json:"cities"` // cities in the store afterwards
}

// Loader seeds a store from a seed file.
type Loader struct {
	sink      CitySink
	batchSize int
	precision int
}

// NewLoader creates a Loader. Non-positive batchSize or precision take the
// defaults (500 rows, geohash length 6).
func NewLoader(sink CitySink, batchSize, precision int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if precision <= 0 {
		precision = geo.DefaultPrecision
	}
	return &Loader{sink: sink, batchSize: batchSize, precision: precision}
}

// Load inserts the cities in the seed file at path. When the store already
// holds cities the load is skipped, unless force is set, in which case the
// existing cities are removed first. Every call is recorded as a seed load.
func (l *Loader) Load(ctx context.Context, path string, force bool) (*LoadResult, error) {
	log := zap.L().With(zap.String("component", "seed.loader"), zap.String("path", path))

	load := model.SeedLoad{ID: uuid.New().String(), SeedPath: path, StartedAt: time.Now().UTC()}
	res := &LoadResult{LoadID: load.ID}

	existing, err := l.sink.CountCities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "seed: count cities")
	}
	if existing > 0 && !force {
		log.Info("store already seeded, skipping", zap.Int("cities", existing))
		res.Skipped = true
		res.Cities = existing
		load.Status = model.LoadStatusSkipped
		return res, l.record(ctx, load)
	}

	inserted, rejected, err := l.insertAll(ctx, path, existing > 0)
	res.Inserted, res.Rejected = inserted, rejected
	load.Rows = inserted
	if err != nil {
		load.Status = model.LoadStatusFailed
		load.Error = err.Error()
		if recErr := l.record(context.WithoutCancel(ctx), load); recErr != nil {
			log.Warn("failed to record failed load", zap.Error(recErr))
		}
		return res, err
	}

	res.Cities, err = l.sink.CountCities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "seed: count cities")
	}

	load.Status = model.LoadStatusComplete
	log.Info("seed load complete",
		zap.Int("inserted", inserted),
		zap.Int("rejected", rejected),
		zap.Int("cities", res.Cities),
	)
	return res, l.record(ctx, load)
}

func (l *Loader) insertAll(ctx context.Context, path string, clear bool) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, eris.Wrap(err, "seed: open seed file")
	}
	defer f.Close() //nolint:errcheck

	if clear {
		n, err := l.sink.ClearCities(ctx)
		if err != nil {
			return 0, 0, eris.Wrap(err, "seed: clear cities")
		}
		zap.L().Info("seed: cleared existing cities", zap.Int("removed", n))
	}

	var inserted, rejected int
	batch := make([]model.City, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.sink.InsertCities(ctx, batch)
		if err != nil {
			return eris.Wrapf(err, "seed: insert batch after %d cities", inserted)
		}
		inserted += n
		batch = batch[:0]
		return nil
	}

	stats, err := ReadSeed(ctx, f, func(c model.City) error {
		hash, err := geo.Geohash(c.Lat, c.Lon, l.precision)
		if err != nil {
			rejected++
			return nil
		}
		c.Geohash = hash
		batch = append(batch, c)
		if len(batch) >= l.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return inserted, rejected + stats.Skipped, err
	}
	if err := flush(); err != nil {
		return inserted, rejected + stats.Skipped, err
	}
	return inserted, rejected + stats.Skipped, nil
}

func (l *Loader) record(ctx context.Context, load model.SeedLoad) error {
	load.FinishedAt = time.Now().UTC()
	return eris.Wrap(l.sink.RecordLoad(ctx, load), "seed: record load")
}
