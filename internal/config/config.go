package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "CLIPPINGS_CONFIG"
	portEnv         = "PORT"
	ginModeEnv      = "GIN_MODE"
	logLevelEnv     = "LOG_LEVEL"
	defaultTopicEnv = "DEFAULT_TOPIC"
	jwtSecretEnv    = "JWT_SECRET"
	reportURLEnv    = "REPORT_SERVICE_URL"
	maintenanceEnv  = "MAINTENANCE_INTERVAL"
)

// Config holds application settings. Database settings live in the
// database package and are read straight from the environment.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Crisis  CrisisConfig  `yaml:"crisis"`
	Auth    AuthConfig    `yaml:"auth"`
	Reports ReportsConfig `yaml:"reports"`

	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"ginMode"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// CrisisConfig names the topic exempt from crisis evaluation.
type CrisisConfig struct {
	DefaultTopic string `yaml:"defaultTopic"`
}

// AuthConfig holds the HMAC secret for bearer tokens. An empty secret
// disables authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// ReportsConfig points at the external report generation service.
type ReportsConfig struct {
	ServiceURL string `yaml:"serviceUrl"`
}

// MaintenanceConfig schedules the background crisis and metrics sweep.
// Interval is a Go duration string; "0" disables the sweep.
type MaintenanceConfig struct {
	Interval string `yaml:"interval"`
}

// Load reads .env, the optional YAML file and environment overrides, in that order.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			slog.Warn("config: cannot read file, falling back to defaults", "path", path, "error", err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				slog.Warn("config: cannot parse file, falling back to defaults", "path", path, "error", err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// AuthEnabled reports whether API requests must carry a bearer token.
func (c Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// MaintenanceInterval parses Maintenance.Interval. Zero means disabled.
func (c Config) MaintenanceInterval() time.Duration {
	d, err := time.ParseDuration(c.Maintenance.Interval)
	if err != nil || d < 0 {
		if c.Maintenance.Interval != "0" {
			slog.Warn("config: invalid maintenance interval, sweep disabled", "interval", c.Maintenance.Interval)
		}
		return 0
	}
	return d
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(ginModeEnv); v != "" {
		c.Server.GinMode = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(defaultTopicEnv); v != "" {
		c.Crisis.DefaultTopic = strings.TrimSpace(v)
	}
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(reportURLEnv); v != "" {
		c.Reports.ServiceURL = v
	}
	if v := os.Getenv(maintenanceEnv); v != "" {
		c.Maintenance.Interval = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}
	if override.Server.GinMode != "" {
		base.Server.GinMode = override.Server.GinMode
	}
	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Crisis.DefaultTopic != "" {
		base.Crisis.DefaultTopic = override.Crisis.DefaultTopic
	}
	if override.Auth.JWTSecret != "" {
		base.Auth.JWTSecret = override.Auth.JWTSecret
	}
	if override.Reports.ServiceURL != "" {
		base.Reports.ServiceURL = override.Reports.ServiceURL
	}
	if override.Maintenance.Interval != "" {
		base.Maintenance.Interval = override.Maintenance.Interval
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8080", GinMode: "debug"},
		Log:    LogConfig{Level: "info"},
		Crisis: CrisisConfig{DefaultTopic: "General"},

		Maintenance: MaintenanceConfig{Interval: "15m"},
	}
}
