// Package daemonrun exposes the shared Run entrypoint used by the CLI to
// start the bridge: it builds the logger, wires the bus to the Redis writer,
// feeds events from an input stream, and handles shutdown signals.
//
// Example:
//
//	cfg := config.Default()
//	_ = daemonrun.Run(context.Background(), daemonrun.Options{Config: cfg})
package daemonrun
