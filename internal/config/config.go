// Package config provides a Viper-backed implementation of the plugin.Config interface.
package config

import (
	"strings"
	"time"

	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig wraps a Viper instance to implement plugin.Config.
type ViperConfig struct {
	v *viper.Viper
}

// New creates a Config backed by the given Viper instance.
// A nil instance yields an empty config where every lookup returns the zero value.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// Unmarshal decodes the whole config tree into target using mapstructure tags.
// Duration strings such as "30s" decode into time.Duration fields.
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

func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Sub scopes the config to a section, e.g. Sub("monitor"). A missing
// section returns an empty config rather than nil. The section is built
// from resolved settings, so environment overrides survive; viper's own
// Sub drops them.
func (c *ViperConfig) Sub(key string) plugin.Config {
	var node any = c.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return New(nil)
		}
		node = m[part]
	}
	section, ok := node.(map[string]any)
	if !ok {
		return New(nil)
	}
	sub := viper.New()
	if err := sub.MergeConfigMap(section); err != nil {
		return New(nil)
	}
	return New(sub)
}

// Viper returns the underlying Viper instance for direct access
// (e.g., by the bootstrap for top-level keys like server.port).
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}
