// Package config loads the labloom configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/at-ishikawa/labloom/internal/validation"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Notes       NotesConfig       `mapstructure:"notes"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Local       LocalConfig       `mapstructure:"local"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"gt=0,lte=65535"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

// NotesConfig selects the repository behind the notes API.
type NotesConfig struct {
	Store string `mapstructure:"store" validate:"oneof=mysql file"`
	File  string `mapstructure:"file"`
	// SeedFile optionally replaces the built-in sample notes.
	SeedFile string `mapstructure:"seed_file" validate:"omitempty,file"`
}

type RemoteConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	PreferRemote   bool   `mapstructure:"prefer_remote"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryAttempts  uint   `mapstructure:"retry_attempts"`
}

// Timeout returns the HTTP client timeout.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LocalConfig selects the key-value backend of the local fallback store.
type LocalConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=memory file redis sqlite"`
	Directory  string `mapstructure:"directory" validate:"required_if=Backend file"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	QuotaBytes int64  `mapstructure:"quota_bytes" validate:"gte=0"`
	Limit      int    `mapstructure:"limit" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type AttachmentsConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"gt=0"`
	TotalBudget int64 `mapstructure:"total_budget" validate:"gt=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

type ConfigLoader struct {
	viper     *viper.Viper
	validator *validation.Validator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/labloom")
	}

	return &ConfigLoader{
		viper:     v,
		validator: validate,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8888)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "labloom")
	v.SetDefault("database.username", "labloom")
	v.SetDefault("notes.store", "file")
	v.SetDefault("notes.file", filepath.Join("data", "notes.json"))
	v.SetDefault("remote.url", "http://localhost:8888/.netlify/functions")
	v.SetDefault("remote.timeout_seconds", 10)
	v.SetDefault("remote.retry_attempts", 2)
	v.SetDefault("local.backend", "file")
	v.SetDefault("local.directory", filepath.Join(".labloom", "local"))
	v.SetDefault("local.sqlite_path", filepath.Join(".labloom", "local.db"))
	v.SetDefault("local.quota_bytes", 5*1024*1024)
	v.SetDefault("local.limit", 10)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "labloom:")
	v.SetDefault("attachments.max_file_size", 10*1024*1024)
	v.SetDefault("attachments.total_budget", 8*1024*1024)
	v.SetDefault("log.level", "info")

	// Secrets and the remote preference come from the environment.
	for key, env := range map[string]string{
		"database.password":    "DB_PASSWORD",
		"redis.password":       "REDIS_PASSWORD",
		"remote.url":           "LABLOOM_REMOTE_URL",
		"remote.prefer_remote": "LABLOOM_PREFER_REMOTE",
		"log.level":            "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load reads the configuration from configFile, or from config.yml in the
// working directory or $HOME/.config/labloom when configFile is empty.
func Load(configFile string) (*Config, error) {
	loader, err := NewConfigLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
