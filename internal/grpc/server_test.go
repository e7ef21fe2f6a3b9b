package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/repository"
)

func startTestServer(t *testing.T, repo repository.HistoryRepository, b *Broadcaster) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(repo, b)
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		<-served
	})
	return NewClient(conn)
}

func TestServer_GetScanResult(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	marker, err := store.Add(ctx, &models.ScanResult{
		ZoneID:          "C-07",
		RiskLevel:       models.RiskMedium,
		AvgAirTemp:      25.8,
		Recommendations: []string{"Monitor area closely"},
		Latitude:        "34.223000",
		Longitude:       "-117.845000",
	}, geo.Point{Lat: 34.223, Lng: -117.845}, models.RiskMedium)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	empty, err := store.Add(ctx, nil, geo.Point{Lat: 34.2, Lng: -117.8}, models.RiskLow)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	client := startTestServer(t, store, NewBroadcaster())

	res, err := client.GetScanResult(ctx, marker.ID)
	if err != nil {
		t.Fatalf("GetScanResult failed: %v", err)
	}
	if res.ZoneID != "C-07" || res.RiskLevel != models.RiskMedium || res.AvgAirTemp != 25.8 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Recommendations) != 1 || res.Latitude != "34.223000" {
		t.Errorf("unexpected result fields %+v", res)
	}

	tests := map[string]codes.Code{
		"":       codes.InvalidArgument,
		"nope":   codes.NotFound,
		empty.ID: codes.NotFound,
	}
	for id, want := range tests {
		_, err := client.GetScanResult(ctx, id)
		if status.Code(err) != want {
			t.Errorf("GetScanResult(%q) code = %s, want %s", id, status.Code(err), want)
		}
	}
}

func TestServer_StreamScanEvents(t *testing.T) {
	b := NewBroadcaster()
	client := startTestServer(t, repository.NewMemoryStore(), b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.StreamScanEvents(ctx)
	if err != nil {
		t.Fatalf("StreamScanEvents failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Broadcast(models.Event{
		Type:      models.EventStatus,
		Status:    &models.RunStatus{State: models.RunScanning, Progress: 42.5, Phase: "Scanning quadrant 3/4…", Generation: 3},
		Timestamp: time.Now().UTC(),
	})

	e, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if e.Type != models.EventStatus || e.Status == nil {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.Status.Progress != 42.5 || e.Status.Generation != 3 || e.Status.Phase != "Scanning quadrant 3/4…" {
		t.Errorf("unexpected status %+v", e.Status)
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for b.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not unsubscribe after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
