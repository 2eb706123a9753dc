package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashkite/cityseed/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cities`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"cities"}, cityColumns).WillReturnResult(3)

	n, err := s.InsertCities(context.Background(), testCities())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCities_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"cities"}, cityColumns).WillReturnError(fmt.Errorf("disk full"))

	_, err := s.InsertCities(context.Background(), testCities())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert cities")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountCities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM cities`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.CountCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearCities(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM cities`).WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.ClearCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByGeohashPrefix(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"id", "name_default", "name_local", "country_code", "lat", "lon", "geohash"}).
		AddRow(int64(1), "Seoul", "서울", "KR", 37.5665, 126.978, "wydm9q").
		AddRow(int64(2), "Jongno", "종로", "KR", 37.57, 126.98, "wydm9x")
	mock.ExpectQuery(`SELECT id, name_default, name_local, country_code, lat, lon, geohash FROM cities WHERE geohash LIKE \$1`).
		WithArgs("wydm9%", 200).
		WillReturnRows(rows)

	cities, err := s.FindByGeohashPrefix(context.Background(), "wydm9", 200)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "서울", cities[0].NameLocal)
	assert.Equal(t, int64(2), cities[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByGeohashPrefix_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM cities WHERE geohash LIKE`).
		WithArgs("wy%", 10).
		WillReturnError(fmt.Errorf("connection lost"))

	_, err := s.FindByGeohashPrefix(context.Background(), "wy", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByGeohashPrefix_RejectsPattern(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.FindByGeohashPrefix(context.Background(), "wy_", 10)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordLoad(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l := model.SeedLoad{ID: "load-1", SeedPath: "cities_seed.csv", Rows: 3, Status: model.LoadStatusComplete, StartedAt: now, FinishedAt: now}

	mock.ExpectExec(`INSERT INTO seed_loads`).
		WithArgs("load-1", "cities_seed.csv", 3, "complete", "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordLoad(context.Background(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLoads(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, seed_path, row_count, status, error, started_at, finished_at FROM seed_loads`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seed_path", "row_count", "status", "error", "started_at", "finished_at"}).
			AddRow("load-1", "cities_seed.csv", 3, "complete", "", now, now.Add(time.Second)))

	loads, err := s.ListLoads(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, loads, 1)
	assert.Equal(t, model.LoadStatusComplete, loads[0].Status)
	assert.Equal(t, time.Second, loads[0].Duration())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.NoError(t, s.Close())
}

func TestPostgresStore_ImplementsStore(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	var _ Store = s
}
