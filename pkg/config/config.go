package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"regscan/pkg/extract"
)

// Config holds the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string  `yaml:"addr" mapstructure:"addr"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // scans per second, 0 disables
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	OperatorPasswordHash string        `yaml:"operator_password_hash" mapstructure:"operator_password_hash"`
	TokenTTL             time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// ScanConfig configures acquisition, recognition and the fallback record.
type ScanConfig struct {
	MaxImageBytes  int64          `yaml:"max_image_bytes" mapstructure:"max_image_bytes"`
	Language       string         `yaml:"language" mapstructure:"language"`
	PageSegMode    int            `yaml:"page_seg_mode" mapstructure:"page_seg_mode"`
	EngineMode     int            `yaml:"engine_mode" mapstructure:"engine_mode"`
	TessdataPrefix string         `yaml:"tessdata_prefix" mapstructure:"tessdata_prefix"`
	Preprocess     bool           `yaml:"preprocess" mapstructure:"preprocess"`
	Placeholder    extract.Record `yaml:"placeholder" mapstructure:"placeholder"`
}

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, redis or memory
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	Key     string `yaml:"key" mapstructure:"key"`
	Migrate bool   `yaml:"migrate" mapstructure:"migrate"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	Dir      string        `yaml:"dir" mapstructure:"dir"`
	Workers  int           `yaml:"workers" mapstructure:"workers"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Save     bool          `yaml:"save" mapstructure:"save"`
}

// Load reads configuration from file and environment. An empty path looks
// for config.yaml in the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REGSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.operator_password_hash", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("scan.max_image_bytes", 5*1024*1024)
	v.SetDefault("scan.language", "eng")
	v.SetDefault("scan.page_seg_mode", 6)
	v.SetDefault("scan.engine_mode", 1)
	v.SetDefault("scan.tessdata_prefix", "")
	v.SetDefault("scan.preprocess", true)
	v.SetDefault("scan.placeholder.owner_name", "John Doe")
	v.SetDefault("scan.placeholder.registration_no", "KA01AB1234")
	v.SetDefault("scan.placeholder.make", "Maruti Suzuki")
	v.SetDefault("scan.placeholder.model", "Swift")
	v.SetDefault("scan.placeholder.year", "2020")
	v.SetDefault("scan.placeholder.vin", "MA3EWDE1S00123456")
	v.SetDefault("scan.placeholder.address", "")
	v.SetDefault("scan.placeholder.phone", "")
	v.SetDefault("scan.placeholder.email", "")
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "regscan.db")
	v.SetDefault("history.key", "ocr_history")
	v.SetDefault("history.migrate", true)
	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.workers", 2)
	v.SetDefault("watch.debounce", 2*time.Second)
	v.SetDefault("watch.save", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.History.Driver {
	case "sqlite", "postgres", "redis", "memory":
	default:
		return eris.Errorf("config: unknown history.driver %q", c.History.Driver)
	}
	if c.Scan.MaxImageBytes <= 0 {
		return eris.New("config: scan.max_image_bytes must be positive")
	}
	if c.Watch.Workers < 1 {
		c.Watch.Workers = 1
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
