package models

import (
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
)

type RunState string

const (
	RunIdle      RunState = "idle"
	RunScanning  RunState = "scanning"
	RunPaused    RunState = "paused"
	RunCompleted RunState = "completed"
)

// OperatingState maps the run state onto the robot status shown to the
// operator. A completed run leaves the robot idle.
func (s RunState) OperatingState() string {
	switch s {
	case RunScanning:
		return "Scanning"
	case RunPaused:
		return "Paused"
	default:
		return "Idle"
	}
}

// RunStatus is a point-in-time view of the scan run.
type RunStatus struct {
	State      RunState  `json:"state"`
	Progress   float64   `json:"progress"`
	Phase      string    `json:"phase"`
	Generation uint64    `json:"generation"`
	StartedAt  time.Time `json:"started_at,omitempty"`
}

// AreaStatus is a point-in-time view of the scan area geometry.
type AreaStatus struct {
	ZoneName      string    `json:"zone_name"`
	Robot         geo.Point `json:"robot"`
	Target        geo.Point `json:"target"`
	BoundarySizeM float64   `json:"boundary_size_m"`
	ScanSizeM     float64   `json:"scan_size_m"`
	Boundary      geo.Rect  `json:"boundary"`
	Scan          geo.Rect  `json:"scan"`
	TargetOffsetM float64   `json:"target_offset_m"`
}

type EventType string

const (
	EventStatus EventType = "status"
	EventResult EventType = "result"
	EventArea   EventType = "area"
)

// Event is what gets fanned out to live subscribers.
type Event struct {
	Type      EventType      `json:"type"`
	Status    *RunStatus     `json:"status,omitempty"`
	Area      *AreaStatus    `json:"area,omitempty"`
	Marker    *HistoryMarker `json:"marker,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
