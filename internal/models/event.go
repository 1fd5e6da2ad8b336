package models

import "time"

// Event types recorded in the camera event log.
const (
	EventInit     = "INIT"
	EventShutdown = "SHUTDOWN"
	EventSetting  = "SETTING"
	EventSequence = "SEQUENCE"
	EventError    = "ERROR"
)

// CameraEvent is a single event-log entry.
type CameraEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // INIT | SHUTDOWN | SETTING | SEQUENCE | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
