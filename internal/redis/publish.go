package redis

import (
	"context"
	"time"

	"github.com/tommyorndorff/icinga2/internal/events"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// handleEvent publishes one event: allocate the next global index, persist
// the body under it with a TTL, then push the index onto every matching
// subscriber's list. Runs on the pipeline worker. Events arriving while
// disconnected are dropped silently; that degradation is part of the
// contract.
//
// A transport failure mid-way abandons the remaining steps without rolling
// back the completed ones, so an allocated index may end up with no body or
// a body no subscriber was told about. Indices are never reused either way.
func (w *Writer) handleEvent(ctx context.Context, ev events.Event) {
	defer w.eventsHandled.Add(1)
	if !w.conn.IsConnected() {
		w.logger.Debug("dropping event while disconnected", logpkg.Str("type", ev.Type()))
		return
	}
	prefix := w.cfg.KeyPrefix

	index, err := w.conn.Incr(ctx, sequenceKey(prefix))
	if err != nil {
		if isReplyError(err) {
			// No index, nothing to publish under.
			w.logger.Info("INCR "+sequenceKey(prefix), logpkg.Err(err))
			return
		}
		w.fatal("INCR "+sequenceKey(prefix), err)
		return
	}

	body, err := ev.Encode()
	if err != nil {
		w.logger.Warn("skipping unencodable event", logpkg.Str("type", ev.Type()), logpkg.Err(err))
		return
	}

	key := eventKey(prefix, index)
	if err := w.conn.Set(ctx, key, body); err != nil {
		if !isReplyError(err) {
			w.fatal("SET "+key, err)
			return
		}
		w.logger.Info("SET "+key, logpkg.Err(err))
	}
	ttl := time.Duration(w.cfg.EventTTLSec) * time.Second
	if err := w.conn.Expire(ctx, key, ttl); err != nil {
		if !isReplyError(err) {
			w.fatal("EXPIRE "+key, err)
			return
		}
		w.logger.Info("EXPIRE "+key, logpkg.Err(err))
	}

	for subscriber, sub := range w.subs {
		if !sub.Matches(ev) {
			continue
		}
		listKey := subscriberKey(prefix, subscriber)
		if err := w.conn.LPush(ctx, listKey, index); err != nil {
			if isReplyError(err) {
				w.logger.Info("LPUSH "+listKey, logpkg.Err(err))
				continue
			}
			// Remaining subscribers miss this event.
			w.fatal("LPUSH "+listKey, err)
			return
		}
	}
	w.logger.Debug("event published",
		logpkg.Str("type", ev.Type()), logpkg.Int64("index", index))
}

// fatal records a transport failure and tears the connection down so the
// next reconnect tick starts fresh.
func (w *Writer) fatal(op string, err error) {
	w.logger.Warn("redis transport failure", logpkg.Str("op", op), logpkg.Err(err))
	w.conn.Teardown()
}
