// Package scanarea tracks where the robot is and where the operator has
// placed the scan square inside the robot's boundary.
package scanarea

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

const (
	DefaultBoundarySizeM = 200.0
	DefaultScanSizeM     = 50.0

	// ResetThresholdM is how far a single GPS fix must move from the previous
	// one before the target snaps back to the robot.
	ResetThresholdM = 10.0
)

// Model keeps the scan target inside the boundary square around the robot.
// All methods are safe for concurrent use.
type Model struct {
	mu           sync.RWMutex
	zoneName     string
	robot        geo.Point
	boundarySize float64
	scanSize     float64
	target       geo.Point
}

func New(zoneName string, robot geo.Point, boundarySizeM, scanSizeM float64) (*Model, error) {
	if boundarySizeM <= 0 || scanSizeM <= 0 {
		return nil, fmt.Errorf("invalid area sizes: boundary %.1fm, scan %.1fm", boundarySizeM, scanSizeM)
	}
	if _, err := geo.MetersToDegreesLng(boundarySizeM, robot.Lat); err != nil {
		return nil, fmt.Errorf("invalid robot position: %w", err)
	}

	return &Model{
		zoneName:     zoneName,
		robot:        robot,
		boundarySize: boundarySizeM,
		scanSize:     scanSizeM,
		target:       robot,
	}, nil
}

// SetRobotPosition records a new GPS fix. The target is reset to the robot
// only when the fix is more than ResetThresholdM from the previous fix;
// smaller jitter keeps the operator's placement, re-clamped into the shifted
// boundary.
func (m *Model) SetRobotPosition(p geo.Point) error {
	if _, err := geo.MetersToDegreesLng(m.boundarySize, p.Lat); err != nil {
		return fmt.Errorf("invalid robot position: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	moved, err := geo.Distance(m.robot, p)
	if err != nil {
		return err
	}

	m.robot = p
	if moved > ResetThresholdM {
		m.target = p
		slog.Debug("robot moved, scan target reset", "moved_m", moved, "lat", p.Lat, "lng", p.Lng)
		return nil
	}

	target, err := geo.Clamp(m.target, m.robot, m.boundarySize, m.scanSize)
	if err != nil {
		return err
	}
	m.target = target
	return nil
}

// DragScanTarget clamps raw into the boundary, stores it and returns it.
func (m *Model) DragScanTarget(raw geo.Point) (geo.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, err := geo.Clamp(raw, m.robot, m.boundarySize, m.scanSize)
	if err != nil {
		return geo.Point{}, err
	}
	m.target = target
	return target, nil
}

func (m *Model) SetZoneName(name string) {
	m.mu.Lock()
	m.zoneName = name
	m.mu.Unlock()
}

func (m *Model) ZoneName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zoneName
}

func (m *Model) RobotPosition() geo.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.robot
}

func (m *Model) ScanTarget() geo.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

func (m *Model) ScanSizeM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanSize
}

func (m *Model) BoundaryRect() (geo.Rect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return geo.BoundsOf(m.robot, m.boundarySize, m.boundarySize)
}

func (m *Model) ScanRect() (geo.Rect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return geo.BoundsOf(m.target, m.scanSize, m.scanSize)
}

// Status returns a consistent snapshot of the whole area.
func (m *Model) Status() (models.AreaStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	boundary, err := geo.BoundsOf(m.robot, m.boundarySize, m.boundarySize)
	if err != nil {
		return models.AreaStatus{}, err
	}
	scan, err := geo.BoundsOf(m.target, m.scanSize, m.scanSize)
	if err != nil {
		return models.AreaStatus{}, err
	}
	offset, err := geo.Distance(m.robot, m.target)
	if err != nil {
		return models.AreaStatus{}, err
	}

	return models.AreaStatus{
		ZoneName:      m.zoneName,
		Robot:         m.robot,
		Target:        m.target,
		BoundarySizeM: m.boundarySize,
		ScanSizeM:     m.scanSize,
		Boundary:      boundary,
		Scan:          scan,
		TargetOffsetM: offset,
	}, nil
}

// AreaLabel formats the scan square size the way reports show it ("50 m × 50 m").
func (m *Model) AreaLabel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("%g m × %g m", m.scanSize, m.scanSize)
}
