// Package redis implements the event-relay bridge: it drains domain events
// from the in-process bus and republishes them into an external Redis
// instance, fanned out to subscribers registered in a store-side hash.
//
// All Redis I/O runs on a single workqueue worker; the connection handle and
// the subscription map are owned by that worker and never touched from any
// other goroutine. Two timers (reconnect, subscription refresh) and the bus
// ingestion loop only submit tasks; they never talk to the store themselves.
//
// Error discipline, applied at every command site:
//
//   - transport failure (dial error, EOF, reset): tear the connection down
//     immediately and abandon the remaining steps of the current operation;
//     the next reconnect tick re-establishes.
//   - explicit error reply from the server: log it; the connection stays up.
//   - malformed data (subscription descriptor, event body): log and skip the
//     offending record only.
package redis
