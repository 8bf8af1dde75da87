// Package config defines the daemon configuration: the Redis endpoint the
// bridge writes to, timer intervals, the relay key prefix, and logging.
//
// Configuration is resolved in three layers: Default(), then an optional
// JSON or YAML file via Load, then ICINGA_* environment variables via
// FromEnv. CLI flags are applied last by the caller.
package config
