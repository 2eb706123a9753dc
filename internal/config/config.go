package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ashkite/cityseed/internal/gazetteer"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Columns ColumnsConfig `yaml:"columns" mapstructure:"columns"`
	Locale  LocaleConfig  `yaml:"locale" mapstructure:"locale"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ColumnsConfig maps the zero-based TSV column positions of both dumps.
type ColumnsConfig struct {
	Places         gazetteer.PlaceColumns   `yaml:"places" mapstructure:"places"`
	AlternateNames gazetteer.AltNameColumns `yaml:"alternate_names" mapstructure:"alternate_names"`
}

// SourcesConfig locates the two GeoNames dumps.
type SourcesConfig struct {
	Places         SourceConfig `yaml:"places" mapstructure:"places"`
	AlternateNames SourceConfig `yaml:"alternate_names" mapstructure:"alternate_names"`
	CacheDir       string       `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// SourceConfig describes one source: where to get it and which archive member to read.
// An empty Member means the location is a plain text file, not a ZIP archive.
type SourceConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Member string `yaml:"member" mapstructure:"member"`
}

// LocaleConfig names the default and target locale codes.
type LocaleConfig struct {
	Default string `yaml:"default" mapstructure:"default"`
	Target  string `yaml:"target" mapstructure:"target"`
}

// OutputConfig configures where the seed file is written.
type OutputConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	GeoJSONPath string `yaml:"geojson_path" mapstructure:"geojson_path"`
}

// FetchConfig configures source downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// StoreConfig configures the database backend used by load, nearest and serve.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// GeocodeConfig configures nearest-city lookups.
type GeocodeConfig struct {
	Precision      int     `yaml:"precision" mapstructure:"precision"`
	MaxDistanceKM  float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
	CandidateLimit int     `yaml:"candidate_limit" mapstructure:"candidate_limit"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CITYSEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.places.url", "https://download.geonames.org/export/dump/cities15000.zip")
	v.SetDefault("sources.places.member", "cities15000.txt")
	v.SetDefault("sources.alternate_names.url", "https://download.geonames.org/export/dump/alternateNamesV2.zip")
	v.SetDefault("sources.alternate_names.member", "alternateNamesV2.txt")
	v.SetDefault("sources.cache_dir", "./geonames-data")
	pc := gazetteer.DefaultPlaceColumns()
	v.SetDefault("columns.places.id", pc.ID)
	v.SetDefault("columns.places.name", pc.Name)
	v.SetDefault("columns.places.ascii_name", pc.ASCIIName)
	v.SetDefault("columns.places.lat", pc.Lat)
	v.SetDefault("columns.places.lon", pc.Lon)
	v.SetDefault("columns.places.country", pc.Country)
	ac := gazetteer.DefaultAltNameColumns()
	v.SetDefault("columns.alternate_names.id", ac.ID)
	v.SetDefault("columns.alternate_names.lang", ac.Lang)
	v.SetDefault("columns.alternate_names.name", ac.Name)
	v.SetDefault("columns.alternate_names.preferred", ac.Preferred)
	v.SetDefault("locale.default", "en")
	v.SetDefault("locale.target", "ko")
	v.SetDefault("output.path", "cities_seed.csv")
	v.SetDefault("output.geojson_path", "")
	v.SetDefault("fetch.user_agent", "cityseed/1.0")
	v.SetDefault("fetch.timeout_secs", 600)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cities.db")
	v.SetDefault("store.batch_size", 500)
	v.SetDefault("geocode.precision", 6)
	v.SetDefault("geocode.max_distance_km", 50.0)
	v.SetDefault("geocode.candidate_limit", 200)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by the given command are present.
// Modes: "build", "load", "serve". Unknown modes validate nothing.
func (c *Config) Validate(mode string) error {
	var errs []error
	switch mode {
	case "build":
		if c.Sources.Places.URL == "" {
			errs = append(errs, errors.New("sources.places.url is required"))
		}
		if c.Sources.AlternateNames.URL == "" {
			errs = append(errs, errors.New("sources.alternate_names.url is required"))
		}
		if c.Locale.Default == "" {
			errs = append(errs, errors.New("locale.default is required"))
		}
		if c.Locale.Target == "" {
			errs = append(errs, errors.New("locale.target is required"))
		}
		if c.Output.Path == "" {
			errs = append(errs, errors.New("output.path is required"))
		}
		if err := c.Columns.Places.Validate(); err != nil {
			errs = append(errs, err)
		}
		if err := c.Columns.AlternateNames.Validate(); err != nil {
			errs = append(errs, err)
		}
	case "load", "serve":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Errorf("store.driver %q is not supported (sqlite, postgres)", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required"))
		}
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return eris.Wrapf(errors.Join(errs...), "config: invalid for %s", mode)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
