package monitor

import (
	"time"

	"github.com/HerbHall/vigil/internal/version"
)

// Config holds the monitor section of vigil.yaml.
type Config struct {
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	MaxWorkers           int           `mapstructure:"max_workers"`
	DefaultCheckInterval time.Duration `mapstructure:"default_check_interval"`
	DefaultTimeout       time.Duration `mapstructure:"default_timeout"`
	DefaultGracePeriod   time.Duration `mapstructure:"default_grace_period"`
	UserAgent            string        `mapstructure:"user_agent"`
	HeartbeatRetention   time.Duration `mapstructure:"heartbeat_retention"`
	ResultRetention      time.Duration `mapstructure:"result_retention"`
	MaintenanceInterval  time.Duration `mapstructure:"maintenance_interval"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		SweepInterval:        30 * time.Second,
		MaxWorkers:           10,
		DefaultCheckInterval: 300 * time.Second,
		DefaultTimeout:       30 * time.Second,
		DefaultGracePeriod:   0,
		UserAgent:            "Vigil/" + version.Short(),
		HeartbeatRetention:   30 * 24 * time.Hour,
		ResultRetention:      30 * 24 * time.Hour,
		MaintenanceInterval:  1 * time.Hour,
		ShutdownTimeout:      10 * time.Second,
	}
}

// normalize replaces unusable values with their defaults.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.DefaultCheckInterval < time.Second {
		c.DefaultCheckInterval = d.DefaultCheckInterval
	}
	if c.DefaultTimeout < time.Second {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.DefaultGracePeriod < 0 {
		c.DefaultGracePeriod = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.HeartbeatRetention <= 0 {
		c.HeartbeatRetention = d.HeartbeatRetention
	}
	if c.ResultRetention <= 0 {
		c.ResultRetention = d.ResultRetention
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = d.MaintenanceInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
