package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ashkite/cityseed/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name_default TEXT NOT NULL,
	name_local   TEXT NOT NULL,
	country_code TEXT NOT NULL,
	lat          REAL NOT NULL,
	lon          REAL NOT NULL,
	geohash      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS seed_loads (
	id          TEXT PRIMARY KEY,
	seed_path   TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cities_geohash ON cities(geohash);
CREATE INDEX IF NOT EXISTS idx_seed_loads_started_at ON seed_loads(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertCities writes the batch in one transaction.
func (s *SQLiteStore) InsertCities(ctx context.Context, cities []model.City) (int, error) {
	if len(cities) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cities (name_default, name_local, country_code, lat, lon, geohash) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert city")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range cities {
		if _, err := stmt.ExecContext(ctx, c.NameDefault, c.NameLocal, c.CountryCode, c.Lat, c.Lon, c.Geohash); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert city %s", c.NameDefault)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit cities")
	}
	return len(cities), nil
}

func (s *SQLiteStore) CountCities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cities`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count cities")
}

func (s *SQLiteStore) ClearCities(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cities`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear cities")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) FindByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]model.City, error) {
	pattern, err := likePrefix(prefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name_default, name_local, country_code, lat, lon, geohash
		 FROM cities WHERE geohash LIKE ? ORDER BY id LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find cities by prefix %s", prefix)
	}
	defer rows.Close() //nolint:errcheck

	var cities []model.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, err
		}
		cities = append(cities, *c)
	}
	return cities, eris.Wrap(rows.Err(), "sqlite: iterate cities")
}

func (s *SQLiteStore) RecordLoad(ctx context.Context, load model.SeedLoad) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seed_loads (id, seed_path, row_count, status, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		load.ID, load.SeedPath, load.Rows, string(load.Status), load.Error, load.StartedAt.UTC(), load.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record load %s", load.ID)
}

func (s *SQLiteStore) ListLoads(ctx context.Context, limit int) ([]model.SeedLoad, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seed_path, row_count, status, error, started_at, finished_at
		 FROM seed_loads ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list loads")
	}
	defer rows.Close() //nolint:errcheck

	var loads []model.SeedLoad
	for rows.Next() {
		var l model.SeedLoad
		if err := rows.Scan(&l.ID, &l.SeedPath, &l.Rows, &l.Status, &l.Error, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan load")
		}
		loads = append(loads, l)
	}
	return loads, eris.Wrap(rows.Err(), "sqlite: iterate loads")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanCity(row scannable) (*model.City, error) {
	var c model.City
	if err := row.Scan(&c.ID, &c.NameDefault, &c.NameLocal, &c.CountryCode, &c.Lat, &c.Lon, &c.Geohash); err != nil {
		return nil, eris.Wrap(err, "scan city")
	}
	return &c, nil
}
