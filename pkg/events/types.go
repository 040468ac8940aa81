package events

import "encoding/json"

// Names of the events a session publishes.
const (
	CellsChanged    = "cells.changed"
	ControlsChanged = "controls.changed"
)

// Event is a generic SSE event sent to the browser.
type Event struct {
	Name string
	Data json.RawMessage
}

// CellsChangedEvent is the typed payload for cells.changed.
type CellsChangedEvent struct {
	Action  string `json:"action"`
	Version uint64 `json:"version"`
	Total   int    `json:"total"`
	Ts      int64  `json:"ts"`
}

// ControlsChangedEvent is the typed payload for controls.changed.
type ControlsChangedEvent struct {
	Reseeded bool  `json:"reseeded"`
	Ts       int64 `json:"ts"`
}

// DecodeAs unmarshals the payload of e into T. An empty payload yields the
// zero value.
func DecodeAs[T any](e Event) (T, error) {
	var v T
	if len(e.Data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(e.Data, &v)
	return v, err
}
