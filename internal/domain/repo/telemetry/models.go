package telemetry

import (
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

// Record is the downstream representation of one entity in a batch.
type Record struct {
	SessionID    string           `json:"sessionId"`
	EntityID     string           `json:"entityId"`
	Name         string           `json:"name,omitempty"`
	Tier         string           `json:"tier"`
	PreviousTier string           `json:"previousTier,omitempty"`
	Position     *entity.Position `json:"position,omitempty"`
	FetchedAt    time.Time        `json:"fetchedAt"`
	Stale        bool             `json:"stale,omitempty"`
}

func mapToRecords(batch entity.TelemetryBatch) []Record {
	previous := make(map[string]entity.Tier, len(batch.Transitions))
	for _, t := range batch.Transitions {
		previous[t.EntityID] = t.From
	}

	ret := make([]Record, 0, len(batch.Entities))

	for _, e := range batch.Entities {
		ret = append(ret, Record{
			SessionID:    batch.SessionID,
			EntityID:     e.ID,
			Name:         e.Name,
			Tier:         string(e.Tier),
			PreviousTier: string(previous[e.ID]),
			Position:     e.Position,
			FetchedAt:    batch.FetchedAt,
			Stale:        batch.Stale,
		})
	}

	return ret
}
