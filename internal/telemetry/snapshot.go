// Package telemetry defines the throttled read-only snapshot published by the
// render loop and fans it out to subscribers.
package telemetry

import "time"

// Entry is the published state of one tracked body.
type Entry struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Agency      string  `json:"agency,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	AltKm       float64 `json:"alt_km"`
	Color       string  `json:"color"`
	Highlighted bool    `json:"highlighted"`
	Visible     bool    `json:"visible"`
}

// Snapshot is a complete, independent view of every body. Snapshots are
// built fresh for each publication and never mutated after Publish.
type Snapshot struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Tick     uint64    `json:"tick"`
	Rotation float64   `json:"rotation"`
	FocusLng float64   `json:"focus_lng"` // longitude under the view centre
	FocusLat float64   `json:"focus_lat"`
	Bodies   []Entry   `json:"bodies"`
}
