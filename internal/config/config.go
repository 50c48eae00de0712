package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/newthinker/lookback/internal/commission"
	"github.com/newthinker/lookback/internal/core"
)

type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Backtest   BacktestConfig             `mapstructure:"backtest"`
	Collectors map[string]CollectorConfig `mapstructure:"collectors"`
	Cache      CacheConfig                `mapstructure:"cache"`
	Archive    ArchiveConfig              `mapstructure:"archive"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
	Log        LogConfig                  `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	APIKey      string   `mapstructure:"api_key"`
	JobTTLHours int      `mapstructure:"job_ttl_hours"`
	MaxJobs     int      `mapstructure:"max_jobs"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// BacktestConfig holds run defaults applied when a request leaves them out
type BacktestConfig struct {
	InitialCapital   float64          `mapstructure:"initial_capital"`
	DefaultStake     float64          `mapstructure:"default_stake"`
	DefaultRangeDays int              `mapstructure:"default_range_days"`
	Benchmark        string           `mapstructure:"benchmark"`
	Commission       commission.Input `mapstructure:"commission"`
}

type CollectorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Priority int           `mapstructure:"priority"`
	BaseDir  string        `mapstructure:"base_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

type CacheConfig struct {
	Type          string        `mapstructure:"type"`
	MaxEntries    int           `mapstructure:"max_entries"`
	Path          string        `mapstructure:"path"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("LOOKBACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			JobTTLHours: 1,
			MaxJobs:     100,
			CORSOrigins: []string{"*"},
		},
		Backtest: BacktestConfig{
			InitialCapital:   100000,
			DefaultStake:     10000,
			DefaultRangeDays: 365,
			Commission:       commission.Input{Type: commission.TypeNone},
		},
		Collectors: map[string]CollectorConfig{
			"eastmoney": {Enabled: true, Priority: 10, Timeout: 30 * time.Second},
			"yahoo":     {Enabled: true, Priority: 20, Timeout: 30 * time.Second},
		},
		Cache: CacheConfig{
			Type:       CacheMemory,
			MaxEntries: 128,
			TTL:        6 * time.Hour,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "data/archive",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Backtest validation
	if c.Backtest.InitialCapital < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital cannot be negative, got %v", c.Backtest.InitialCapital))
	}
	if c.Backtest.DefaultStake <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_stake must be positive, got %v", c.Backtest.DefaultStake))
	}
	if c.Backtest.DefaultRangeDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("default_range_days must be at least 1, got %d", c.Backtest.DefaultRangeDays))
	}
	if err := c.Backtest.Commission.Resolve().Validate(); err != nil {
		return err
	}

	// Collector validation
	enabled := 0
	for name, cc := range c.Collectors {
		if !cc.Enabled {
			continue
		}
		enabled++
		if name == "csv" && cc.BaseDir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("collectors.csv.base_dir required when csv collector is enabled"))
		}
	}
	if enabled == 0 {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("at least one collector must be enabled"))
	}

	// Cache validation
	switch c.Cache.Type {
	case "", CacheMemory, CacheNone:
	case CacheSQLite:
		if c.Cache.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("cache.path required when cache type is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown cache type %q", c.Cache.Type))
	}
	if c.Cache.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.Cache.PurgeSchedule); err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("cache.purge_schedule: %w", err))
		}
	}

	// Archive validation - if enabled, check the backend config exists
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "", "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.path required when archive type is localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.s3.bucket required when archive type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Archive.Type))
		}
	}

	return nil
}
