package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverNone     = "none"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		Port            string        `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"readTimeout"`
		WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
		IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
		RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	} `mapstructure:"server"`
	Storage struct {
		Driver string `mapstructure:"driver"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
		Postgres Postgres `mapstructure:"postgres"`
	} `mapstructure:"storage"`
	Modules struct {
		RemoteBaseURL   string        `mapstructure:"remoteBaseURL"`
		ContentDir      string        `mapstructure:"contentDir"`
		PlaceholderWait time.Duration `mapstructure:"placeholderWait"`
		Preload         []string      `mapstructure:"preload"`
	} `mapstructure:"modules"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
	SSLMode  string `mapstructure:"sslmode"`
	Profile  string `mapstructure:"profile"`
}

// InitConfig loads config.yml from the usual paths, falling back to the
// embedded copy. SHELL_* environment variables override file values, e.g.
// SHELL_STORAGE_DRIVER=memory.
func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("SHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}
	return load(v)
}

// FromYAML parses a config document without consulting files or env.
func FromYAML(doc []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(bytes.NewReader(doc)); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("config: storage.sqlite.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" {
			return fmt.Errorf("config: storage.postgres.host is required for the postgres driver")
		}
	case DriverMemory, DriverNone:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	if c.Modules.PlaceholderWait < 0 {
		return fmt.Errorf("config: modules.placeholderWait must not be negative")
	}
	return nil
}
