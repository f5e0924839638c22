// Package config provides the Viper-backed configuration and logger
// factory shared by all EIMS components.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the read-only view handed to components. Consumer-side
// interface so components never depend on Viper directly.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringMapString(key string) map[string]string
	IsSet(key string) bool
	Sub(key string) Config
}

// Compile-time interface guard.
var _ Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

func (c *ViperConfig) Get(key string) any {
	return c.v.Get(key)
}

func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *ViperConfig) GetStringMapString(key string) map[string]string {
	return c.v.GetStringMapString(key)
}

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

func (c *ViperConfig) Sub(key string) Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	return New(sub)
}

// Viper returns the underlying Viper instance for direct access
// (e.g., by main for top-level keys like server.port).
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
