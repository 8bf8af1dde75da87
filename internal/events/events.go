// Package events defines the event value the bridge relays and the fixed
// vocabulary of filterable event types.
package events

import "encoding/json"

// Known event type names. The ingestion loop subscribes to exactly this set
// (or the configured subset); anything else on the bus is invisible to the
// bridge.
const (
	TypeCheckResult            = "CheckResult"
	TypeStateChange            = "StateChange"
	TypeNotification           = "Notification"
	TypeAcknowledgementSet     = "AcknowledgementSet"
	TypeAcknowledgementCleared = "AcknowledgementCleared"
	TypeCommentAdded           = "CommentAdded"
	TypeCommentRemoved         = "CommentRemoved"
	TypeDowntimeAdded          = "DowntimeAdded"
	TypeDowntimeRemoved        = "DowntimeRemoved"
	TypeDowntimeStarted        = "DowntimeStarted"
	TypeDowntimeTriggered      = "DowntimeTriggered"
)

// AllTypes returns the full vocabulary in a fresh slice.
func AllTypes() []string {
	return []string{
		TypeCheckResult,
		TypeStateChange,
		TypeNotification,
		TypeAcknowledgementSet,
		TypeAcknowledgementCleared,
		TypeCommentAdded,
		TypeCommentRemoved,
		TypeDowntimeAdded,
		TypeDowntimeRemoved,
		TypeDowntimeStarted,
		TypeDowntimeTriggered,
	}
}

// Event is a structured domain event. The bridge only interprets the "type"
// field; everything else is opaque payload carried through to the store.
type Event map[string]any

// Type returns the event's type name, or "" if absent or not a string.
func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

// Encode serializes the event body for storage.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(e))
}

// Decode parses a serialized event body.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return e, nil
}
