package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/config"
	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/metrics"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/repository"
	"github.com/mr1hm/robot-scan-console/internal/worker"
)

// CompletedScan is a finished report together with the map position it
// was taken at.
type CompletedScan struct {
	Result     models.ScanResult
	Point      geo.Point
	RecordedAt time.Time
}

// Manager files completed scans into history and the scan log off the
// runner's goroutine, then announces them to live subscribers.
type Manager struct {
	cfg         *config.Config
	repo        repository.Store
	broadcaster *internalgrpc.Broadcaster
	pool        *worker.Pool[CompletedScan]
}

func NewManager(cfg *config.Config, repo repository.Store, broadcaster *internalgrpc.Broadcaster) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		broadcaster: broadcaster,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewPool("ingestion", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.process)
	m.pool.Start(ctx)
}

// Submit queues a completed scan. It is safe to call from a runner callback.
func (m *Manager) Submit(scan CompletedScan) {
	if m.pool == nil || !m.pool.Submit(scan) {
		slog.Warn("dropping completed scan, ingestion not running", "zone", scan.Result.ZoneID)
	}
}

func (m *Manager) process(ctx context.Context, scan CompletedScan) error {
	result := scan.Result.Clone()

	marker, err := m.repo.Add(ctx, &result, scan.Point, result.RiskLevel)
	if err != nil {
		return fmt.Errorf("error adding history marker: %w", err)
	}

	recordedAt := scan.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err = m.repo.AddLog(ctx, models.LogRow{
		Zone:         result.ZoneID,
		RecordedAt:   recordedAt,
		AvgAirTemp:   result.AvgAirTemp,
		AvgHumidity:  result.AvgHumidity,
		AvgPlantTemp: result.AvgPlantTemp,
		FuelLoad:     result.FuelLoad,
	})
	if err != nil {
		return fmt.Errorf("error adding scan log: %w", err)
	}

	metrics.ScanResultsTotal.WithLabelValues(string(result.RiskLevel)).Inc()

	if m.broadcaster != nil {
		m.broadcaster.Broadcast(models.Event{
			Type:      models.EventResult,
			Marker:    &marker,
			Timestamp: time.Now().UTC(),
		})
	}

	slog.Info("added scan to history", "id", marker.ID, "zone", result.ZoneID, "risk", result.RiskLevel)
	return nil
}

func (m *Manager) Stop() {
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("ingestion manager stopped")
}
