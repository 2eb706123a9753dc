package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashkite/cityseed/internal/model"
	"github.com/ashkite/cityseed/internal/store"
)

func collectSeed(t *testing.T, input string) ([]model.City, ReadStats) {
	t.Helper()
	var cities []model.City
	stats, err := ReadSeed(context.Background(), strings.NewReader(input), func(c model.City) error {
		cities = append(cities, c)
		return nil
	})
	require.NoError(t, err)
	return cities, stats
}

func TestReadSeed(t *testing.T) {
	cities, stats := collectSeed(t,
		"name_en,name_ko,country_code,lat,lon\n"+
			"Seoul,서울,KR,37.5665,126.978\n"+
			"Berlin,,DE,52.52,13.40\n"+
			"Broken,x,KR,north,127\n"+
			"Short,x,KR\n"+
			"\"Washington, D.C.\",워싱턴,US,38.89,-77.03\n")

	require.Len(t, cities, 3)
	assert.Equal(t, model.City{NameDefault: "Seoul", NameLocal: "서울", CountryCode: "KR", Lat: 37.5665, Lon: 126.978}, cities[0])
	assert.Equal(t, "Berlin", cities[1].NameLocal, "blank localized name falls back")
	assert.Equal(t, "Washington, D.C.", cities[2].NameDefault)
	assert.Equal(t, ReadStats{Rows: 3, Skipped: 2}, stats)
}

func TestReadSeed_NoHeader(t *testing.T) {
	cities, _ := collectSeed(t, "Seoul,서울,KR,37.5,127.0\n")
	require.Len(t, cities, 1)
	assert.Equal(t, "Seoul", cities[0].NameDefault)
}

func TestReadSeed_OtherLocaleHeader(t *testing.T) {
	cities, stats := collectSeed(t, "name_en,name_ja,country_code,lat,lon\nTokyo,東京,JP,35.68,139.69\n")
	require.Len(t, cities, 1)
	assert.Zero(t, stats.Skipped)
}

func TestReadSeed_CallbackErrorStops(t *testing.T) {
	input := "A,a,KR,1,1\nB,b,KR,2,2\nC,c,KR,3,3\n"
	var seen int
	_, err := ReadSeed(context.Background(), strings.NewReader(input), func(model.City) error {
		seen++
		if seen == 2 {
			return errors.New("stop")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, seen)
}

// fakeSink records calls for loader tests.
type fakeSink struct {
	count    int
	batches  [][]model.City
	cleared  int
	loads    []model.SeedLoad
	failOnce bool
}

func (f *fakeSink) CountCities(context.Context) (int, error) { return f.count, nil }

func (f *fakeSink) ClearCities(context.Context) (int, error) {
	n := f.count
	f.count = 0
	f.cleared++
	return n, nil
}

func (f *fakeSink) InsertCities(_ context.Context, cities []model.City) (int, error) {
	if f.failOnce {
		f.failOnce = false
		return 0, errors.New("insert failed")
	}
	f.batches = append(f.batches, append([]model.City(nil), cities...))
	f.count += len(cities)
	return len(cities), nil
}

func (f *fakeSink) RecordLoad(_ context.Context, l model.SeedLoad) error {
	f.loads = append(f.loads, l)
	return nil
}

func writeSeedFile(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("name_en,name_ko,country_code,lat,lon\n")
	for i := range rows {
		fmt.Fprintf(&b, "City %d,도시,KR,37.5,%d\n", i, 120+i%10)
	}
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestLoader_BatchesAndGeohash(t *testing.T) {
	sink := &fakeSink{}
	path := writeSeedFile(t, 1201)

	res, err := NewLoader(sink, 0, 0).Load(context.Background(), path, false)
	require.NoError(t, err)

	assert.Equal(t, 1201, res.Inserted)
	assert.Equal(t, 1201, res.Cities)
	assert.False(t, res.Skipped)
	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 500)
	assert.Len(t, sink.batches[1], 500)
	assert.Len(t, sink.batches[2], 201)
	assert.Len(t, sink.batches[0][0].Geohash, 6)

	require.Len(t, sink.loads, 1)
	assert.Equal(t, model.LoadStatusComplete, sink.loads[0].Status)
	assert.Equal(t, 1201, sink.loads[0].Rows)
	assert.Equal(t, res.LoadID, sink.loads[0].ID)
	assert.False(t, sink.loads[0].FinishedAt.Before(sink.loads[0].StartedAt))
}

func TestLoader_SkipsWhenSeeded(t *testing.T) {
	sink := &fakeSink{count: 10}
	path := writeSeedFile(t, 5)

	res, err := NewLoader(sink, 100, 6).Load(context.Background(), path, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 10, res.Cities)
	assert.Empty(t, sink.batches)
	require.Len(t, sink.loads, 1)
	assert.Equal(t, model.LoadStatusSkipped, sink.loads[0].Status)
}

func TestLoader_ForceClearsFirst(t *testing.T) {
	sink := &fakeSink{count: 10}
	path := writeSeedFile(t, 5)

	res, err := NewLoader(sink, 100, 6).Load(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.cleared)
	assert.Equal(t, 5, res.Cities)
}

func TestLoader_RejectsInvalidCoordinates(t *testing.T) {
	sink := &fakeSink{}
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nowhere,x,XX,95,10\nSeoul,서울,KR,37.5,127\nBad,x,KR,a,b\n"), 0o644))

	res, err := NewLoader(sink, 10, 6).Load(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Rejected)
}

func TestLoader_InsertFailureRecorded(t *testing.T) {
	sink := &fakeSink{failOnce: true}
	path := writeSeedFile(t, 3)

	_, err := NewLoader(sink, 10, 6).Load(context.Background(), path, false)
	require.Error(t, err)
	require.Len(t, sink.loads, 1)
	assert.Equal(t, model.LoadStatusFailed, sink.loads[0].Status)
	assert.Contains(t, sink.loads[0].Error, "insert failed")
}

func TestLoader_MissingFile(t *testing.T) {
	sink := &fakeSink{}
	_, err := NewLoader(sink, 10, 6).Load(context.Background(), filepath.Join(t.TempDir(), "none.csv"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed file")
}

func TestLoader_SQLiteRoundTrip(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("name_en,name_ko,country_code,lat,lon\nSeoul,서울,KR,37.5665,126.978\nBusan,부산,KR,35.1796,129.0756\n"), 0o644))

	res, err := NewLoader(st, 500, 6).Load(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cities)

	cities, err := st.FindByGeohashPrefix(ctx, "wydm9q", 10)
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "서울", cities[0].NameLocal)

	// A second load is a no-op.
	res, err = NewLoader(st, 500, 6).Load(ctx, path, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	loads, err := st.ListLoads(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, loads, 2)
}
