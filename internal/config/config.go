package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transport modes.
const (
	ModeStdio = "stdio"
	ModeSSE   = "sse"
)

// Config holds the server-level configuration. Instance definitions are
// loaded separately by the registry package from the same viper handle.
type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// Load reads the configuration from an optional .env file, an optional
// config.yaml, and the environment. A missing config file is fine; the
// server can be configured entirely through the environment.
func Load(envFile string) (*Config, *viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("mode", ModeStdio)
	v.SetDefault("port", 8080)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment overrides used by container deployments.
	_ = v.BindEnv("mode", "MCP_MODE")
	_ = v.BindEnv("port", "PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Mode != ModeStdio && cfg.Mode != ModeSSE {
		return nil, nil, fmt.Errorf("invalid mode %q (must be %q or %q)", cfg.Mode, ModeStdio, ModeSSE)
	}

	return &cfg, v, nil
}
