package console

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/robot-scan-console/internal/config"
	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/ingestion"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/repository"
	"github.com/mr1hm/robot-scan-console/internal/scanarea"
	"github.com/mr1hm/robot-scan-console/internal/scanrun"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var robot = geo.Point{Lat: 34.2257, Lng: -117.8512}

type fixture struct {
	console     *Console
	store       *repository.MemoryStore
	broadcaster *internalgrpc.Broadcaster
	results     chan models.ScanResult
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	area, err := scanarea.New("Area C-07", robot, scanarea.DefaultBoundarySizeM, scanarea.DefaultScanSizeM)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	b := internalgrpc.NewBroadcaster()
	cfg := &config.Config{Worker: config.WorkerConfig{Count: 1, BufferSize: 4}}
	mgr := ingestion.NewManager(cfg, store, b)
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	runCfg := scanrun.DefaultConfig()
	runCfg.TickInterval = time.Millisecond
	runCfg.SettleDelay = time.Millisecond
	runCfg.MinIncrement = 25
	runCfg.MaxIncrement = 25

	results := make(chan models.ScanResult, 4)
	c, err := New(area, runCfg, store, mgr, b, WithResultListener(func(r models.ScanResult) {
		results <- r
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Shutdown()
		cancel()
		mgr.Stop()
		b.Close()
	})

	return &fixture{console: c, store: store, broadcaster: b, results: results}
}

func (f *fixture) waitResult(t *testing.T) models.ScanResult {
	t.Helper()
	select {
	case r := <-f.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan result")
		return models.ScanResult{}
	}
}

func TestConsole_DragClampsIntoBoundary(t *testing.T) {
	f := newFixture(t)

	far := geo.Point{Lat: robot.Lat, Lng: robot.Lng + 0.01}
	got, err := f.console.OnDragScanTarget(far)
	require.NoError(t, err)

	dLng, err := geo.MetersToDegreesLng(75, robot.Lat)
	require.NoError(t, err)
	assert.InDelta(t, robot.Lng+dLng, got.Lng, 1e-9)
	assert.InDelta(t, robot.Lat, got.Lat, 1e-12)

	snap, err := f.console.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, got, snap.Area.Target)
	assert.True(t, snap.Area.Boundary.Contains(snap.Area.Scan))
}

func TestConsole_ScanEndToEnd(t *testing.T) {
	f := newFixture(t)

	target, err := f.console.OnDragScanTarget(geo.Point{Lat: robot.Lat + 0.0003, Lng: robot.Lng - 0.0002})
	require.NoError(t, err)

	require.NoError(t, f.console.OnStart())
	res := f.waitResult(t)

	assert.Equal(t, fmt.Sprintf("%.6f", target.Lat), res.Latitude)
	assert.Equal(t, fmt.Sprintf("%.6f", target.Lng), res.Longitude)
	assert.Equal(t, "C-07", res.ZoneID)
	assert.Equal(t, "Area C-07", res.Location)
	assert.Equal(t, "50 m × 50 m", res.AreaSize)

	// Exactly one result per run.
	select {
	case extra := <-f.results:
		t.Fatalf("unexpected second result %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	snap, err := f.console.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, snap.Run.State)
	assert.Equal(t, "Idle", snap.OperatingState)
	require.NotNil(t, snap.LastResult)
	assert.Equal(t, res.Latitude, snap.LastResult.Latitude)

	require.Eventually(t, func() bool {
		markers, err := f.console.History(context.Background(), repository.AllRisks())
		return err == nil && len(markers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	markers, err := f.console.History(context.Background(), repository.AllRisks())
	require.NoError(t, err)
	assert.Equal(t, res.RiskLevel, markers[0].RiskLevel)

	selected, err := f.console.OnSelectHistoryMarker(context.Background(), markers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res.Latitude, selected.Latitude)

	logs, err := f.console.Logs(context.Background(), repository.LogFilter{Zone: "C-07"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestConsole_StopCancelsResult(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.console.OnStart())
	f.console.OnStop()

	select {
	case r := <-f.results:
		t.Fatalf("stopped run produced a result %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	snap, err := f.console.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, models.RunIdle, snap.Run.State)
	assert.Zero(t, snap.Run.Progress)
}

func TestConsole_InvalidTransitions(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.console.OnPause(), scanrun.ErrInvalidTransition)
	assert.ErrorIs(t, f.console.OnResume(), scanrun.ErrInvalidTransition)
}

func TestConsole_SelectHistoryMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.console.OnSelectHistoryMarker(ctx, "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	empty, err := f.store.Add(ctx, nil, robot, models.RiskLow)
	require.NoError(t, err)
	_, err = f.console.OnSelectHistoryMarker(ctx, empty.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsole_PublishesAreaEvents(t *testing.T) {
	f := newFixture(t)
	id, events := f.broadcaster.Subscribe()
	defer f.broadcaster.Unsubscribe(id)

	f.console.SetZoneName("Area B-03")
	require.NoError(t, f.console.SetRobotPosition(geo.Point{Lat: robot.Lat + 0.001, Lng: robot.Lng}))

	for i, want := range []string{"Area B-03", "Area B-03"} {
		select {
		case e := <-events:
			require.Equal(t, models.EventArea, e.Type, "event %d", i)
			assert.Equal(t, want, e.Area.ZoneName)
		case <-time.After(time.Second):
			t.Fatalf("missing area event %d", i)
		}
	}

	snap, err := f.console.Snapshot()
	require.NoError(t, err)
	// 0.001 deg is ~111 m, past the reset threshold.
	assert.Equal(t, snap.Area.Robot, snap.Area.Target)
}

func TestConsole_InvalidRobotPosition(t *testing.T) {
	f := newFixture(t)
	err := f.console.SetRobotPosition(geo.Point{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}
