// Package log provides the structured logging facade used across the daemon.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context, backed by Go's standard library slog.
// Text and JSON output formats are supported; level and format are usually
// driven by configuration via ApplyConfig.
//
// Quick start
//
//	l := log.NewLogger(log.WithLevel(log.InfoLevel), log.WithFormat(log.FormatText))
//	l = l.WithComponent("redis")
//	l.Info("connected", log.Str("addr", "127.0.0.1:6379"))
package log
