package state

import (
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	entityFieldPrefix = "entity:"
	cursorFieldPrefix = "cursor:"
	savedAtField      = "savedAt"
)

type Entity struct {
	Name     string    `json:"name,omitempty"`
	Tier     string    `json:"tier"`
	Position *Position `json:"position,omitempty"`
}

type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Speed     float64 `json:"speed"`
	Course    float64 `json:"course"`
	// Timestamp in milliseconds
	Timestamp int64 `json:"ts"`
}

func mapToModels(e entity.Entity) Entity {
	ret := Entity{
		Name: e.Name,
		Tier: string(e.Tier),
	}

	if e.Position != nil {
		ret.Position = &Position{
			Latitude:  e.Position.Latitude,
			Longitude: e.Position.Longitude,
			Speed:     e.Position.Speed,
			Course:    e.Position.Course,
			Timestamp: e.Position.Timestamp.UnixMilli(),
		}
	}

	return ret
}

func mapToEntity(id string, model Entity) entity.Entity {
	ret := entity.Entity{
		ID:   id,
		Name: model.Name,
		Tier: entity.Tier(model.Tier),
	}

	if model.Position != nil {
		ret.Position = &entity.Position{
			Latitude:  model.Position.Latitude,
			Longitude: model.Position.Longitude,
			Speed:     model.Position.Speed,
			Course:    model.Position.Course,
			Timestamp: time.UnixMilli(model.Position.Timestamp).UTC(),
		}
	}

	return ret
}
