package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the database backend.
type StoreConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SQLiteConfig holds the SQLite file location.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// GeocodeConfig configures the address resolver and its throttle.
type GeocodeConfig struct {
	PrimaryURL     string `yaml:"primary_url" mapstructure:"primary_url"`
	FallbackURL    string `yaml:"fallback_url" mapstructure:"fallback_url"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	MinIntervalMS  int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// MinInterval returns the spacing between provider calls as a duration.
func (g GeocodeConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalMS) * time.Millisecond
}

// Timeout returns the per-request provider timeout as a duration.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty configFile
// searches the working directory for config.yaml and tolerates its absence;
// a named file must exist.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite.path", "marker-ingest.db")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 2)
	v.SetDefault("geocode.primary_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.fallback_url", "https://photon.komoot.io")
	v.SetDefault("geocode.user_agent", "mapyard-marker-ingest/1.0")
	v.SetDefault("geocode.min_interval_ms", 500)
	v.SetDefault("geocode.timeout_seconds", 10)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support the given command
// mode: "run", "serve", "migrate", or "account". All problems are reported
// at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			problems = append(problems, "store.postgres.dsn is required when store.driver is postgres")
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			problems = append(problems, "store.sqlite.path is required when store.driver is sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	switch mode {
	case "run", "migrate", "account":
	case "serve":
		if c.Server.Addr == "" {
			problems = append(problems, "server.addr is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Geocode.MinIntervalMS < 0 {
		problems = append(problems, "geocode.min_interval_ms must be >= 0")
	}
	if c.Geocode.TimeoutSeconds <= 0 {
		problems = append(problems, "geocode.timeout_seconds must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
