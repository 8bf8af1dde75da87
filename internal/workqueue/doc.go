// Package workqueue provides the serialized command pipeline: a
// multi-producer, single-consumer task queue whose one worker goroutine
// executes tasks strictly in submission order.
//
// The pipeline is the sole synchronization mechanism protecting the bridge's
// Redis connection handle and subscription map; only code running inside a
// submitted task may touch them. Submit never blocks the producer. Task
// failures are the task's own business; panics are caught and logged so the
// worker survives.
//
// There is no per-task timeout: a task stuck on network I/O stalls every
// task queued behind it until the queue is stopped.
package workqueue
