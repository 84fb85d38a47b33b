package entity

import "time"

type Tier string

const (
	TierActive   Tier = "active"
	TierIdle     Tier = "idle"
	TierInactive Tier = "inactive"
)

type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Course    float64   `json:"course"`
	Timestamp time.Time `json:"timestamp"`
}

// Entity is a tracked device. Position is nil until the first report.
type Entity struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Position *Position `json:"position,omitempty"`
	Tier     Tier      `json:"tier"`
}

type TierTransition struct {
	EntityID string `json:"entityId"`
	From     Tier   `json:"from"`
	To       Tier   `json:"to"`
}

// TelemetryBatch is the payload of a telemetry event, one per session and fetch.
type TelemetryBatch struct {
	SessionID   string           `json:"sessionId"`
	Entities    []Entity         `json:"entities"`
	Transitions []TierTransition `json:"transitions,omitempty"`
	FetchedAt   time.Time        `json:"fetchedAt"`
	// Stale is set when the batch was served from last-known state instead of the upstream.
	Stale  bool `json:"stale"`
	Forced bool `json:"forced"`
}

// State survives restarts: entity map and upstream cursors keyed by entity set.
type State struct {
	Entities map[string]Entity `json:"entities"`
	Cursors  map[string]int64  `json:"cursors"`
	SavedAt  time.Time         `json:"savedAt"`
}

// DataError describes an upstream payload that could not be decoded.
type DataError struct {
	Action    string    `json:"action"`
	Preview   string    `json:"preview"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
