package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Boundaries BoundariesConfig `yaml:"boundaries" mapstructure:"boundaries"`
	Scores     ScoresConfig     `yaml:"scores" mapstructure:"scores"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Choropleth ChoroplethConfig `yaml:"choropleth" mapstructure:"choropleth"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the map API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxViews    int      `yaml:"max_views" mapstructure:"max_views"`
}

// BoundariesConfig selects where static boundary sets are loaded from.
type BoundariesConfig struct {
	Source          string `yaml:"source" mapstructure:"source"`
	Dir             string `yaml:"dir" mapstructure:"dir"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	ProvinceFile    string `yaml:"province_file" mapstructure:"province_file"`
	DistrictFile    string `yaml:"district_file" mapstructure:"district_file"`
	LoadTimeoutSecs int    `yaml:"load_timeout_secs" mapstructure:"load_timeout_secs"`
}

// LoadTimeout returns the boundary load timeout.
func (b BoundariesConfig) LoadTimeout() time.Duration {
	return time.Duration(b.LoadTimeoutSecs) * time.Second
}

// ScoresConfig holds the GEOINT score API settings.
type ScoresConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Token        string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLSecs int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheEntries int     `yaml:"cache_entries" mapstructure:"cache_entries"`
}

// RetryConfig configures retries for outbound HTTP.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// StoreConfig configures the PostGIS backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ChoroplethConfig points at an optional palette override file.
type ChoroplethConfig struct {
	PaletteFile string `yaml:"palette_file" mapstructure:"palette_file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_views", 256)
	v.SetDefault("boundaries.source", "file")
	v.SetDefault("boundaries.dir", "data/boundaries")
	v.SetDefault("boundaries.base_url", "")
	v.SetDefault("boundaries.province_file", "provinces.geojson")
	v.SetDefault("boundaries.district_file", "districts.geojson")
	v.SetDefault("boundaries.load_timeout_secs", 30)
	v.SetDefault("scores.base_url", "http://localhost:8000")
	v.SetDefault("scores.token", "")
	v.SetDefault("scores.timeout_secs", 20)
	v.SetDefault("scores.rate_limit", 5)
	v.SetDefault("scores.cache_ttl_secs", 300)
	v.SetDefault("scores.cache_entries", 256)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("choropleth.palette_file", "")

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

// Validate checks the settings a command mode depends on. Modes: "serve",
// "merge", "status", "import", "postgis".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "serve":
		missing = c.validateBoundaries(missing)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
		if c.Scores.BaseURL == "" {
			missing = append(missing, "scores.base_url is required")
		}
		if c.Scores.RateLimit <= 0 {
			missing = append(missing, "scores.rate_limit must be > 0")
		}
	case "merge", "status":
		missing = c.validateBoundaries(missing)
	case "import":
	case "postgis":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

func (c *Config) validateBoundaries(missing []string) []string {
	switch c.Boundaries.Source {
	case "file":
		if c.Boundaries.Dir == "" {
			missing = append(missing, "boundaries.dir is required for the file source")
		}
	case "http":
		if c.Boundaries.BaseURL == "" {
			missing = append(missing, "boundaries.base_url is required for the http source")
		}
	case "postgis":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgis source")
		}
	default:
		missing = append(missing, "boundaries.source must be one of file, http, postgis")
	}
	if c.Boundaries.LoadTimeoutSecs <= 0 {
		missing = append(missing, "boundaries.load_timeout_secs must be > 0")
	}
	return missing
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
