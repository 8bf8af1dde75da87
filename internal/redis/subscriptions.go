package redis

import (
	"context"
	"encoding/json"

	"github.com/tommyorndorff/icinga2/internal/events"
	logpkg "github.com/tommyorndorff/icinga2/pkg/log"
)

// Subscription is one external consumer's filter: the set of event types it
// wants, plus an optional CEL expression applied on top.
type Subscription struct {
	types  map[string]struct{}
	filter celFilter
}

// Matches reports whether ev should be pushed to this subscriber.
func (s Subscription) Matches(ev events.Event) bool {
	if _, ok := s.types[ev.Type()]; !ok {
		return false
	}
	return s.filter.Eval(ev)
}

// descriptor is the JSON value stored per subscriber in the registry hash.
type descriptor struct {
	Types  []string `json:"types"`
	Filter string   `json:"filter,omitempty"`
}

// decodeSubscription parses a registry hash value. A missing or empty types
// list yields a subscription that matches nothing. A filter that fails to
// compile is dropped (types-only matching); the caller logs the compile
// error we return alongside the usable subscription.
func decodeSubscription(raw []byte) (Subscription, error) {
	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Subscription{}, err
	}
	sub := Subscription{types: make(map[string]struct{}, len(d.Types))}
	for _, t := range d.Types {
		if t != "" {
			sub.types[t] = struct{}{}
		}
	}
	filter, err := newCELFilter(d.Filter)
	if err != nil {
		// Keep the subscription; matching falls back to types only.
		return sub, err
	}
	sub.filter = filter
	return sub, nil
}

// updateSubscriptions reloads the registry hash, replacing the previous
// mapping wholesale. Runs on the pipeline worker. No-op while disconnected.
// A transport failure tears the connection down and leaves the previous
// mapping in place until the next successful refresh.
func (w *Writer) updateSubscriptions(ctx context.Context) {
	if !w.conn.IsConnected() {
		return
	}
	key := subscriptionKey(w.cfg.KeyPrefix)
	reply, err := w.conn.HGetAll(ctx, key)
	if err != nil {
		if isReplyError(err) {
			w.logger.Info("HGETALL "+key, logpkg.Err(err))
			return
		}
		w.fatal("HGETALL "+key, err)
		return
	}
	next := make(map[string]Subscription, len(reply))
	for subscriber, raw := range reply {
		sub, err := decodeSubscription([]byte(raw))
		if err != nil {
			if len(sub.types) == 0 {
				w.logger.Warn("skipping malformed subscription",
					logpkg.Str("subscriber", subscriber), logpkg.Err(err))
				continue
			}
			w.logger.Warn("subscription filter rejected, matching on types only",
				logpkg.Str("subscriber", subscriber), logpkg.Err(err))
		}
		next[subscriber] = sub
	}
	w.subs = next
	w.logger.Debug("subscriptions refreshed", logpkg.Int("count", len(next)))
}
