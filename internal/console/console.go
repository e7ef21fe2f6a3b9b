// Package console is the operator-facing surface of the scan back end. It
// ties the scan area, the run state machine and the history store together
// and is what the HTTP, WebSocket and gRPC transports call into.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/ingestion"
	"github.com/mr1hm/robot-scan-console/internal/metrics"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/repository"
	"github.com/mr1hm/robot-scan-console/internal/scanarea"
	"github.com/mr1hm/robot-scan-console/internal/scanrun"
)

// ResultSink receives completed scans for filing. ingestion.Manager is the
// production implementation.
type ResultSink interface {
	Submit(scan ingestion.CompletedScan)
}

// Snapshot is everything the dashboard draws.
type Snapshot struct {
	Run            models.RunStatus   `json:"run"`
	OperatingState string             `json:"operating_state"`
	Area           models.AreaStatus  `json:"area"`
	LastResult     *models.ScanResult `json:"last_result,omitempty"`
}

type Option func(*Console)

// WithResultListener is called once per completed scan, after the result
// has been handed to the sink.
func WithResultListener(f func(models.ScanResult)) Option {
	return func(c *Console) { c.onResult = f }
}

// WithRunnerOptions passes options through to the scan runner.
func WithRunnerOptions(opts ...scanrun.Option) Option {
	return func(c *Console) { c.runnerOpts = append(c.runnerOpts, opts...) }
}

// WithSynthesizer replaces the default report synthesizer.
func WithSynthesizer(f func(area scanrun.AreaReader) *scanrun.Synthesizer) Option {
	return func(c *Console) { c.newSynth = f }
}

type Console struct {
	area        *scanarea.Model
	runner      *scanrun.Runner
	store       repository.Store
	sink        ResultSink
	broadcaster *internalgrpc.Broadcaster

	onResult   func(models.ScanResult)
	runnerOpts []scanrun.Option
	newSynth   func(area scanrun.AreaReader) *scanrun.Synthesizer

	mu         sync.RWMutex
	lastResult *models.ScanResult
}

func New(area *scanarea.Model, runCfg scanrun.Config, store repository.Store, sink ResultSink, broadcaster *internalgrpc.Broadcaster, opts ...Option) (*Console, error) {
	if area == nil || store == nil {
		return nil, fmt.Errorf("console needs a scan area and a store")
	}

	c := &Console{
		area:        area,
		store:       store,
		sink:        sink,
		broadcaster: broadcaster,
		newSynth:    scanrun.NewSynthesizer,
	}
	for _, opt := range opts {
		opt(c)
	}

	synth := c.newSynth(area)
	runnerOpts := append([]scanrun.Option{scanrun.WithStatusListener(c.publishStatus)}, c.runnerOpts...)
	runner, err := scanrun.New(runCfg, synth.Build, c.handleResult, runnerOpts...)
	if err != nil {
		return nil, err
	}
	c.runner = runner

	return c, nil
}

func (c *Console) OnStart() error {
	return c.command("start", c.runner.Start)
}

func (c *Console) OnPause() error {
	return c.command("pause", c.runner.Pause)
}

func (c *Console) OnResume() error {
	return c.command("resume", c.runner.Resume)
}

func (c *Console) OnStop() {
	_ = c.command("stop", func() error {
		c.runner.Stop()
		return nil
	})
}

func (c *Console) command(name string, f func() error) error {
	err := f()
	result := "ok"
	if err != nil {
		result = "rejected"
		slog.Warn("scan command rejected", "command", name, "error", err)
	}
	metrics.ScanTransitions.WithLabelValues(name, result).Inc()
	return err
}

// OnDragScanTarget clamps the dragged position into the boundary and
// returns where the target actually landed.
func (c *Console) OnDragScanTarget(raw geo.Point) (geo.Point, error) {
	target, err := c.area.DragScanTarget(raw)
	if err != nil {
		return geo.Point{}, err
	}
	if target != raw {
		metrics.TargetDragsClamped.Inc()
	}
	c.publishArea()
	return target, nil
}

// SetRobotPosition feeds a GPS fix into the scan area.
func (c *Console) SetRobotPosition(p geo.Point) error {
	if err := c.area.SetRobotPosition(p); err != nil {
		return err
	}
	c.publishArea()
	return nil
}

func (c *Console) SetZoneName(name string) {
	c.area.SetZoneName(name)
	c.publishArea()
}

// OnSelectHistoryMarker returns the full report behind a history marker.
func (c *Console) OnSelectHistoryMarker(ctx context.Context, id string) (models.ScanResult, error) {
	marker, err := c.store.Get(ctx, id)
	if err != nil {
		return models.ScanResult{}, err
	}
	if marker.ScanData == nil {
		return models.ScanResult{}, fmt.Errorf("history marker %q has no scan data: %w", id, repository.ErrNotFound)
	}
	return marker.ScanData.Clone(), nil
}

func (c *Console) History(ctx context.Context, enabled repository.RiskSet) ([]models.HistoryMarker, error) {
	return c.store.FilterByRisk(ctx, enabled)
}

func (c *Console) Logs(ctx context.Context, opts repository.LogFilter) ([]models.LogRow, error) {
	return c.store.ListLogs(ctx, opts)
}

func (c *Console) Snapshot() (Snapshot, error) {
	area, err := c.area.Status()
	if err != nil {
		return Snapshot{}, err
	}
	run := c.runner.Status()

	snap := Snapshot{
		Run:            run,
		OperatingState: run.State.OperatingState(),
		Area:           area,
	}
	c.mu.RLock()
	if c.lastResult != nil {
		r := c.lastResult.Clone()
		snap.LastResult = &r
	}
	c.mu.RUnlock()
	return snap, nil
}

// Shutdown cancels any run in flight so no timer fires after the process
// starts tearing down.
func (c *Console) Shutdown() {
	c.runner.Stop()
}

func (c *Console) handleResult(result models.ScanResult) {
	point, err := reportPoint(result)
	if err != nil {
		slog.Error("scan result has unusable coordinates, using current target", "error", err)
		point = c.area.ScanTarget()
	}

	stored := result.Clone()
	c.mu.Lock()
	c.lastResult = &stored
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.Submit(ingestion.CompletedScan{
			Result:     result.Clone(),
			Point:      point,
			RecordedAt: time.Now().UTC(),
		})
	}
	if c.onResult != nil {
		c.onResult(result)
	}
}

func (c *Console) publishStatus(status models.RunStatus) {
	metrics.ScanProgress.Set(status.Progress)
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(models.Event{
		Type:      models.EventStatus,
		Status:    &status,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Console) publishArea() {
	if c.broadcaster == nil {
		return
	}
	area, err := c.area.Status()
	if err != nil {
		slog.Error("failed to read scan area", "error", err)
		return
	}
	c.broadcaster.Broadcast(models.Event{
		Type:      models.EventArea,
		Area:      &area,
		Timestamp: time.Now().UTC(),
	})
}

// reportPoint places the history marker exactly where the report says the
// scan was taken.
func reportPoint(r models.ScanResult) (geo.Point, error) {
	lat, errLat := strconv.ParseFloat(r.Latitude, 64)
	lng, errLng := strconv.ParseFloat(r.Longitude, 64)
	if err := errors.Join(errLat, errLng); err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}
