package daemonrun

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"

	"github.com/tommyorndorff/icinga2/internal/bus"
	"github.com/tommyorndorff/icinga2/internal/config"
	"github.com/tommyorndorff/icinga2/internal/events"
	redisbridge "github.com/tommyorndorff/icinga2/internal/redis"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Options configures a daemon run.
type Options struct {
	Config config.Config

	// Source streams JSON-encoded events, one object per line, into the
	// bus. Defaults to stdin. EOF stops ingestion but not the daemon.
	Source io.Reader

	// Clock defaults to the wall clock; tests inject their own.
	Clock clock.Clock
}

// Run starts the bridge and blocks until ctx is cancelled or a shutdown
// signal arrives.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logpkg.ApplyConfig(cfg.Log)
	if err != nil {
		return err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	source := opts.Source
	if source == nil {
		source = os.Stdin
	}

	_, addr := cfg.Redis.Addr()
	logger.Info("starting bridge",
		logpkg.Str("redis", addr),
		logpkg.Str("prefix", cfg.KeyPrefix),
		logpkg.Int("reconnect_interval_s", cfg.ReconnectIntervalSec),
		logpkg.Int("subscription_interval_s", cfg.SubscriptionIntervalSec),
		logpkg.Int("event_ttl_s", cfg.EventTTLSec),
	)

	hub := bus.NewHub()
	writer := redisbridge.NewWriter(cfg, hub, clk, logger)
	if err := writer.Start(); err != nil {
		return err
	}

	go readEvents(sctx, source, hub, logger.WithComponent("source"))

	<-sctx.Done()
	logger.Info("shutting down")
	return writer.Stop()
}

// readEvents feeds newline-delimited JSON events from r into the hub.
// Malformed lines and events without a type are logged and skipped.
func readEvents(ctx context.Context, r io.Reader, hub *bus.Hub, logger logpkg.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := events.Decode(line)
		if err != nil {
			logger.Warn("skipping malformed event line", logpkg.Err(err))
			continue
		}
		if ev.Type() == "" {
			logger.Warn("skipping event without a type")
			continue
		}
		hub.Publish(ev)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		logger.Warn("event source read error", logpkg.Err(err))
	}
}
