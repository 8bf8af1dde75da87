// Package id generates short process-unique identifiers, used to name
// dynamically created bus queues.
//
// An ID is 16 hex-encoded bytes: [8 bytes ms_timestamp][8 bytes sequence],
// strictly increasing within a process even if the wall clock regresses.
package id

import (
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"
)

// NowMs returns current time in milliseconds since the Unix epoch.
// Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

var (
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
)

// NewUniqueID returns a new process-unique identifier.
func NewUniqueID() string {
	mu.Lock()
	defer mu.Unlock()

	ms := NowMs()
	if ms < lastMs {
		// Clock went backwards; pin to the last seen millisecond so IDs
		// keep increasing.
		ms = lastMs
	}
	if ms == lastMs {
		sequence++
	} else {
		sequence = 0
	}
	lastMs = ms

	var raw [16]byte
	binary.BigEndian.PutUint64(raw[0:8], uint64(ms))
	binary.BigEndian.PutUint64(raw[8:16], sequence)
	return hex.EncodeToString(raw[:])
}
