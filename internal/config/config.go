package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tommyorndorff/icinga2/internal/events"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Redis holds the external store endpoint. Path (unix socket) takes
// precedence over Host/Port when non-empty.
type Redis struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Path     string `json:"path" yaml:"path"`
	Password string `json:"password" yaml:"password"`
}

// Addr returns the dial network and address for the configured endpoint.
func (r Redis) Addr() (network, addr string) {
	if r.Path != "" {
		return "unix", r.Path
	}
	return "tcp", fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Config is the top-level daemon configuration.
type Config struct {
	Redis Redis `json:"redis" yaml:"redis"`

	// Timer intervals and the event body TTL, in seconds.
	ReconnectIntervalSec    int `json:"reconnectInterval" yaml:"reconnectInterval"`
	SubscriptionIntervalSec int `json:"subscriptionInterval" yaml:"subscriptionInterval"`
	EventTTLSec             int `json:"eventTTL" yaml:"eventTTL"`

	// KeyPrefix prefixes every store key written by the bridge.
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`

	// EnabledEventTypes is the vocabulary the ingestion loop subscribes to.
	// Defaults to every known type.
	EnabledEventTypes []string `json:"enabledEventTypes" yaml:"enabledEventTypes"`

	Log logpkg.Config `json:"log" yaml:"log"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Redis: Redis{
			Host: "127.0.0.1",
			Port: 6379,
		},
		ReconnectIntervalSec:    15,
		SubscriptionIntervalSec: 15,
		EventTTLSec:             3600,
		KeyPrefix:               "icinga:",
		EnabledEventTypes:       events.AllTypes(),
		Log:                     logpkg.Config{Level: "info", Format: logpkg.FormatText},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the bridge cannot run with.
func (c Config) Validate() error {
	if c.Redis.Path == "" && c.Redis.Host == "" {
		return fmt.Errorf("redis: host or path required")
	}
	if c.Redis.Path == "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		return fmt.Errorf("redis: invalid port %d", c.Redis.Port)
	}
	if c.ReconnectIntervalSec <= 0 {
		return fmt.Errorf("reconnectInterval must be positive")
	}
	if c.SubscriptionIntervalSec <= 0 {
		return fmt.Errorf("subscriptionInterval must be positive")
	}
	if c.EventTTLSec <= 0 {
		return fmt.Errorf("eventTTL must be positive")
	}
	return nil
}
