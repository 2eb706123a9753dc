package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ashkite/cityseed/internal/db"
	"github.com/ashkite/cityseed/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var cityColumns = []string{"name_default", "name_local", "country_code", "lat", "lon", "geohash"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id           BIGSERIAL PRIMARY KEY,
	name_default TEXT NOT NULL,
	name_local   TEXT NOT NULL,
	country_code TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lon          DOUBLE PRECISION NOT NULL,
	geohash      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cities_geohash ON cities(geohash text_pattern_ops);

CREATE TABLE IF NOT EXISTS seed_loads (
	id          TEXT PRIMARY KEY,
	seed_path   TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_seed_loads_started_at ON seed_loads(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertCities streams the batch with COPY.
func (s *PostgresStore) InsertCities(ctx context.Context, cities []model.City) (int, error) {
	rows := make([][]any, len(cities))
	for i, c := range cities {
		rows[i] = []any{c.NameDefault, c.NameLocal, c.CountryCode, c.Lat, c.Lon, c.Geohash}
	}
	n, err := db.CopyFrom(ctx, s.pool, "cities", cityColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert cities")
	}
	return int(n), nil
}

func (s *PostgresStore) CountCities(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cities`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count cities")
	}
	return int(n), nil
}

func (s *PostgresStore) ClearCities(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cities`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear cities")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) FindByGeohashPrefix(ctx context.Context, prefix string, limit int) ([]model.City, error) {
	pattern, err := likePrefix(prefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name_default, name_local, country_code, lat, lon, geohash FROM cities WHERE geohash LIKE $1 ORDER BY id LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find cities by prefix %s", prefix)
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		c, err := scanCity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: find cities")
		}
		cities = append(cities, *c)
	}
	return cities, eris.Wrap(rows.Err(), "postgres: iterate cities")
}

func (s *PostgresStore) RecordLoad(ctx context.Context, load model.SeedLoad) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO seed_loads (id, seed_path, row_count, status, error, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		load.ID, load.SeedPath, load.Rows, string(load.Status), load.Error, load.StartedAt, load.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: record load %s", load.ID)
}

func (s *PostgresStore) ListLoads(ctx context.Context, limit int) ([]model.SeedLoad, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, seed_path, row_count, status, error, started_at, finished_at FROM seed_loads ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list loads")
	}
	defer rows.Close()

	var loads []model.SeedLoad
	for rows.Next() {
		var l model.SeedLoad
		var status string
		if err := rows.Scan(&l.ID, &l.SeedPath, &l.Rows, &status, &l.Error, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan load")
		}
		l.Status = model.LoadStatus(status)
		loads = append(loads, l)
	}
	return loads, eris.Wrap(rows.Err(), "postgres: iterate loads")
}
