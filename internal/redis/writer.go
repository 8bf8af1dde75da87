package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"gopkg.in/tomb.v2"

	"github.com/tommyorndorff/icinga2/internal/bus"
	"github.com/tommyorndorff/icinga2/internal/config"
	"github.com/tommyorndorff/icinga2/internal/events"
	"github.com/tommyorndorff/icinga2/internal/workqueue"
	"github.com/tommyorndorff/icinga2/pkg/id"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Writer is the event-relay bridge. It owns a bus queue, a serialized
// command pipeline, and the Redis connection; Start spins up the timers and
// the ingestion loop, Stop winds everything back down.
type Writer struct {
	logger logpkg.Logger
	cfg    config.Config
	clk    clock.Clock
	hub    *bus.Hub

	queue *workqueue.Queue
	conn  *Conn

	// subs is the subscriber filter mapping, owned by the pipeline worker.
	// Replaced wholesale by updateSubscriptions.
	subs map[string]Subscription

	queueName string
	evq       *bus.Queue
	tomb      tomb.Tomb

	// eventsHandled counts publish tasks that have run, including drops
	// while disconnected.
	eventsHandled atomic.Uint64
}

// NewWriter builds a stopped bridge.
func NewWriter(cfg config.Config, hub *bus.Hub, clk clock.Clock, logger logpkg.Logger) *Writer {
	logger = logger.WithComponent("redis")
	return &Writer{
		logger: logger,
		cfg:    cfg,
		clk:    clk,
		hub:    hub,
		conn:   NewConn(cfg.Redis, logger),
		subs:   make(map[string]Subscription),
	}
}

// Start registers the bus queue and launches the timer and ingestion
// goroutines. The first reconnect and subscription refresh are queued
// immediately rather than waiting one interval.
func (w *Writer) Start() error {
	types := w.cfg.EnabledEventTypes
	if len(types) == 0 {
		types = events.AllTypes()
	}
	w.queueName = id.NewUniqueID()
	if _, exists := w.hub.Queue(w.queueName); exists {
		return errors.New("redis: bus queue name collision")
	}
	w.evq = w.hub.NewQueue(w.queueName, types)
	w.hub.Register(w.evq)
	w.evq.AddClient()

	w.queue = workqueue.New(w.logger)
	w.queue.Submit(w.reconnect)
	w.queue.Submit(w.updateSubscriptions)

	w.tomb.Go(w.timerLoop)
	w.tomb.Go(w.handleEvents)

	w.logger.Info("started", logpkg.Str("queue", w.queueName))
	return nil
}

// Stop shuts the bridge down: timers and ingestion first, then the
// pipeline, then the connection. Blocks until everything has exited.
func (w *Writer) Stop() error {
	w.tomb.Kill(nil)
	err := w.tomb.Wait()

	w.evq.RemoveClient()
	w.hub.UnregisterIfUnused(w.queueName)

	// Pipeline stops after the producers so nothing races Submit; once it
	// has stopped, this goroutine is the connection's only toucher.
	_ = w.queue.Stop()
	w.conn.Teardown()

	w.logger.Info("stopped")
	return err
}

// reconnect is the periodic connection attempt. Runs on the pipeline worker.
func (w *Writer) reconnect(ctx context.Context) {
	if w.conn.IsConnected() {
		return
	}
	w.conn.Connect(ctx)
}

// timerLoop fires the reconnect and subscription-refresh triggers. The
// triggers only submit pipeline tasks; store I/O never happens here.
func (w *Writer) timerLoop() error {
	reconnectEvery := time.Duration(w.cfg.ReconnectIntervalSec) * time.Second
	refreshEvery := time.Duration(w.cfg.SubscriptionIntervalSec) * time.Second
	reconnect := w.clk.After(reconnectEvery)
	refresh := w.clk.After(refreshEvery)
	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-reconnect:
			w.queue.Submit(w.reconnect)
			reconnect = w.clk.After(reconnectEvery)
		case <-refresh:
			w.queue.Submit(w.updateSubscriptions)
			refresh = w.clk.After(refreshEvery)
		}
	}
}

// handleEvents is the ingestion loop: the sole reader of the bridge's bus
// queue. Each event is wrapped as a pipeline task; nothing is processed
// inline.
func (w *Writer) handleEvents() error {
	ctx := w.tomb.Context(nil)
	for {
		ev, err := w.evq.WaitForEvent(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || ctx.Err() != nil {
				return tomb.ErrDying
			}
			return err
		}
		w.queue.Submit(func(tctx context.Context) {
			w.handleEvent(tctx, ev)
		})
	}
}
