package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/vigil/internal/version"
	"github.com/spf13/viper"
)

// Config holds the server section of vigil.yaml.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig holds the per-client request limit.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "vigil.db")
	v.SetDefault("ratelimit.rps", 50)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("seed.file", "")

	v.SetDefault("monitor.sweep_interval", "30s")
	v.SetDefault("monitor.max_workers", 10)
	v.SetDefault("monitor.default_check_interval", "300s")
	v.SetDefault("monitor.default_timeout", "30s")
	v.SetDefault("monitor.default_grace_period", "0s")
	v.SetDefault("monitor.user_agent", "Vigil/"+version.Short())
	v.SetDefault("monitor.heartbeat_retention", "720h")
	v.SetDefault("monitor.result_retention", "720h")
	v.SetDefault("monitor.maintenance_interval", "1h")
	v.SetDefault("monitor.shutdown_timeout", "10s")

	v.SetDefault("notify.smtp.host", "smtp.gmail.com")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "")
	v.SetDefault("notify.twilio.account_sid", "")
	v.SetDefault("notify.twilio.auth_token", "")
	v.SetDefault("notify.twilio.from_number", "")
	v.SetDefault("notify.twilio.base_url", "https://api.twilio.com")
	v.SetDefault("notify.timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("vigil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/vigil")
	}

	// Environment variable support: VIGIL_SERVER_PORT=9090
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
