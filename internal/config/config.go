// Package config loads the runtime configuration for both binaries from
// defaults, an optional YAML file, .env files and AWGUI_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. AWGUI_SERVER_ADDR.
const EnvPrefix = "AWGUI"

// Config is the resolved runtime configuration.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Data struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"data"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"logs"`

	Client struct {
		URL     string        `mapstructure:"url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"client"`

	Keys struct {
		AllowInsecureFallback bool `mapstructure:"allow_insecure_fallback"`
	} `mapstructure:"keys"`
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8091")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("data.dir", "/data/amneziawg-webui")
	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")
	v.SetDefault("client.url", "http://127.0.0.1:8091")
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout", 15*time.Second)
	v.SetDefault("keys.allow_insecure_fallback", false)
	return v
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; existing variables are never overwritten.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the optional config file into v and decodes the result. When
// file is empty, config.yaml is searched in the working directory and
// /etc/amneziawg-webui; not finding one is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/amneziawg-webui")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.Data.Dir = strings.TrimSpace(cfg.Data.Dir)
	if cfg.Data.Dir == "" {
		return nil, fmt.Errorf("data.dir is required")
	}
	cfg.Client.URL = strings.TrimRight(strings.TrimSpace(cfg.Client.URL), "/")
	return &cfg, nil
}

// SettingsPath is the JSON settings file inside the data directory.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Data.Dir, "settings.json")
}

// DatabasePath is the SQLite document store inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Dir, "amneziawg.db")
}

// DiagnosticsPath is the optional diagnostics log inside the data directory.
func (c *Config) DiagnosticsPath() string {
	return filepath.Join(c.Data.Dir, "diagnostics.log")
}
