// Package bus is the in-process publish/subscribe mechanism the bridge
// listens to.
//
// Producers publish events into a Hub; consumers create named Queues filtered
// to a set of event types and block on WaitForEvent. Queues are registered
// under a process-unique name and torn down via UnregisterIfUnused once no
// client holds them, so short-lived consumers do not leak subscriptions.
//
// Routing runs on a juju/pubsub SimpleHub with one topic per event type; a
// queue subscribed to N types holds N hub subscriptions feeding one channel.
package bus
