package processingerror

import (
	"encoding/json"
	"time"
)

// DeadLetter is the archived form of a bus event the sink pipeline gave up on.
type DeadLetter struct {
	FailedAt time.Time     `json:"failedAt"`
	Host     string        `json:"host"`
	Build    Build         `json:"build"`
	Event    Event         `json:"event"`
	Batch    *BatchSummary `json:"batch,omitempty"`
	Failure  Failure       `json:"failure"`
	Inputs   []Input       `json:"inputs,omitempty"`
}

type Build struct {
	Branch   string `json:"branch"`
	Revision string `json:"revision"`
}

type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Source    string          `json:"source,omitempty"`
	Priority  string          `json:"priority"`
	EmittedAt time.Time       `json:"emittedAt"`
	Payload   json.RawMessage `json:"payload"`
}

// BatchSummary is filled when the event carried a telemetry batch, to find dead letters by session.
type BatchSummary struct {
	SessionID string    `json:"sessionId"`
	EntityIDs []string  `json:"entityIds"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
	Forced    bool      `json:"forced"`
}

type Failure struct {
	Category  string `json:"category"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type Input struct {
	Source string `json:"source,omitempty"`
	Key    string `json:"key"`
	Value  []byte `json:"value"`
}
