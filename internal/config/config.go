// Package config resolves DoDash settings from defaults, an optional
// dodash.toml file and command-line flags.
//
// Precedence, highest first: flags, the PORT environment variable (port
// only), the config file, defaults. PORT is the only environment variable
// consulted.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys understood by Load. Flags with the same name are bound to them.
const (
	KeyPort          = "port"
	KeyData          = "data"
	KeyBackend       = "backend"
	KeyStatic        = "static"
	KeyLogFile       = "log_file"
	KeyServer        = "server"
	KeyPollInterval  = "poll_interval"
	KeyFailurePolicy = "failure_policy"
)

// Config is the resolved configuration.
type Config struct {
	Port          int           `mapstructure:"port"`
	Data          string        `mapstructure:"data"`
	Backend       string        `mapstructure:"backend"`
	Static        string        `mapstructure:"static"`
	LogFile       string        `mapstructure:"log_file"`
	Server        string        `mapstructure:"server"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	FailurePolicy string        `mapstructure:"failure_policy"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:          8080,
		Data:          filepath.Join("data", "todos.json"),
		Backend:       "file",
		Server:        "http://localhost:8080",
		PollInterval:  5 * time.Second,
		FailurePolicy: "rollback",
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown backend %q (want file, sqlite or memory)", c.Backend)
	}
	if c.Backend != "memory" && c.Data == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	switch c.FailurePolicy {
	case "rollback", "warn":
	default:
		return fmt.Errorf("unknown failure policy %q (want rollback or warn)", c.FailurePolicy)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// Load resolves the configuration. configFile may be empty, in which case
// dodash.toml is searched in the working directory and in
// $HOME/.config/dodash. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault(KeyPort, def.Port)
	v.SetDefault(KeyData, def.Data)
	v.SetDefault(KeyBackend, def.Backend)
	v.SetDefault(KeyStatic, def.Static)
	v.SetDefault(KeyLogFile, def.LogFile)
	v.SetDefault(KeyServer, def.Server)
	v.SetDefault(KeyPollInterval, def.PollInterval)
	v.SetDefault(KeyFailurePolicy, def.FailurePolicy)

	if err := v.BindEnv(KeyPort, "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT: %w", err)
	}

	if flags != nil {
		for _, key := range []string{
			KeyPort, KeyData, KeyBackend, KeyStatic, KeyLogFile,
			KeyServer, KeyPollInterval, KeyFailurePolicy,
		} {
			if f := flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dodash")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dodash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// flagName maps a config key to its flag name (log_file -> log-file).
func flagName(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}
