package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays ICINGA_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ICINGA_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("ICINGA_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = n
		}
	}
	if v := os.Getenv("ICINGA_PATH"); v != "" {
		cfg.Redis.Path = v
	}
	if v := os.Getenv("ICINGA_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ICINGA_RECONNECT_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReconnectIntervalSec = n
		}
	}
	if v := os.Getenv("ICINGA_SUBSCRIPTION_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriptionIntervalSec = n
		}
	}
	if v := os.Getenv("ICINGA_EVENT_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventTTLSec = n
		}
	}
	if v := os.Getenv("ICINGA_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("ICINGA_ENABLED_EVENT_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.EnabledEventTypes = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.EnabledEventTypes = append(cfg.EnabledEventTypes, p)
			}
		}
	}
	if v := os.Getenv("ICINGA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ICINGA_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
