package upstream

import (
	"encoding/json"
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	ActionLogin        = "login"
	ActionLastPosition = "lastposition"
	ActionMonitorList  = "querymonitorlist"
)

// Response is the decoded body of an upstream call, one type per action.
// UnknownResponse is used for actions without a dedicated type.
type Response interface {
	Action() string
}

type LoginResponse struct {
	Token string
}

type PositionsResponse struct {
	Records []PositionRecord
	// Cursor is the server watermark to send with the next call.
	Cursor int64
}

type MonitorListResponse struct {
	Devices []Device
}

type UnknownResponse struct {
	Name string
	Raw  json.RawMessage
}

func (LoginResponse) Action() string       { return ActionLogin }
func (PositionsResponse) Action() string   { return ActionLastPosition }
func (MonitorListResponse) Action() string { return ActionMonitorList }
func (r UnknownResponse) Action() string   { return r.Name }

type PositionRecord struct {
	DeviceID   string  `json:"deviceid"`
	DeviceName string  `json:"devicename"`
	Latitude   float64 `json:"callat"`
	Longitude  float64 `json:"callon"`
	Speed      float64 `json:"speed"`
	Course     float64 `json:"course"`
	// UpdateTime is in milliseconds since epoch.
	UpdateTime int64 `json:"updatetime"`
}

func (r PositionRecord) Entity() entity.Entity {
	ret := entity.Entity{
		ID:   r.DeviceID,
		Name: r.DeviceName,
	}

	if r.UpdateTime > 0 {
		ret.Position = &entity.Position{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Speed:     r.Speed,
			Course:    r.Course,
			Timestamp: time.UnixMilli(r.UpdateTime).UTC(),
		}
	}

	return ret
}

type Device struct {
	DeviceID   string `json:"deviceid"`
	DeviceName string `json:"devicename"`
}

type envelope struct {
	Status                int             `json:"status"`
	Cause                 string          `json:"cause,omitempty"`
	Message               string          `json:"message,omitempty"`
	Token                 string          `json:"token,omitempty"`
	Data                  json.RawMessage `json:"data,omitempty"`
	Records               json.RawMessage `json:"records,omitempty"`
	Positions             json.RawMessage `json:"positions,omitempty"`
	LastQueryPositionTime int64           `json:"lastquerypositiontime,omitempty"`
}

// body returns the first non-empty payload field.
func (e envelope) body() json.RawMessage {
	for _, raw := range []json.RawMessage{e.Positions, e.Records, e.Data} {
		if len(raw) > 0 && string(raw) != "null" {
			return raw
		}
	}

	return nil
}

func (e envelope) reason() string {
	if e.Cause != "" {
		return e.Cause
	}

	return e.Message
}

type loginBody struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}
