package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	// Driver is one of "sqlite" (pure Go), "sqlite3" (cgo) or "mysql".
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	LogMode         bool          `mapstructure:"log_mode"`
	LogLevel        string        `mapstructure:"log_level"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// AdminConfig holds the fixed credentials of the bootstrap superuser.
type AdminConfig struct {
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	BootstrapOnStart bool   `mapstructure:"bootstrap_on_start"`
}

type IngestConfig struct {
	File        string `mapstructure:"file"`
	DepositMode string `mapstructure:"deposit_mode"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type AppSubConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
	App      AppSubConfig   `mapstructure:"app"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/transactionlog.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_mode", false)
	// empty: follow log.level
	v.SetDefault("database.log_level", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.secret", "45c86f7ab8044d499f6b8f632167f33f")
	v.SetDefault("jwt.issuer", "transaction-log")
	v.SetDefault("jwt.access_ttl", time.Hour)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("admin.username", "transactionlog")
	v.SetDefault("admin.password", "admintransactionlog")
	v.SetDefault("admin.bootstrap_on_start", false)

	v.SetDefault("ingest.file", "./transaction.json")
	v.SetDefault("ingest.deposit_mode", "aggregate")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("app.page_size", 10)
	v.SetDefault("app.max_page_size", 100)
}

// Load loads configuration from the given file path (e.g. "config.yaml").
// A missing file is not an error: defaults and TXLOG_* environment
// variables are used instead, e.g. TXLOG_SERVER_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TXLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = c.Log.Level
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver mysql")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Ingest.DepositMode {
	case "aggregate", "sequential":
	default:
		return fmt.Errorf("unsupported ingest.deposit_mode %q", c.Ingest.DepositMode)
	}
	for _, level := range []string{c.Log.Level, c.Database.LogLevel} {
		switch level {
		case "debug", "info", "warn", "error", "silent":
		default:
			return fmt.Errorf("unsupported log level %q", level)
		}
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.App.PageSize <= 0 || c.App.MaxPageSize < c.App.PageSize {
		return fmt.Errorf("app.page_size must be positive and not above app.max_page_size")
	}
	return nil
}
