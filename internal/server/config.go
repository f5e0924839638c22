package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/eims.db")

	// Component defaults
	v.SetDefault("feed.base_url", "http://localhost:9000")
	v.SetDefault("feed.push_url", "ws://localhost:9000/stream")
	v.SetDefault("feed.poll_interval", "60s")
	v.SetDefault("feed.fetch_timeout", "10s")
	v.SetDefault("feed.reconnect_max_backoff", "2m")
	v.SetDefault("cache.fetch_timeout", "10s")
	v.SetDefault("cache.retry_base", "1s")
	v.SetDefault("cache.retry_max", "2m")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("eims")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/eims")
	}

	// Environment variable support: EIMS_SERVER_PORT=9090
	v.SetEnvPrefix("EIMS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
