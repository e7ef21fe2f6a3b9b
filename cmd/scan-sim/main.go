package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/robot-scan-console/internal/config"
	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/logging"
	"github.com/mr1hm/robot-scan-console/internal/models"
	"github.com/mr1hm/robot-scan-console/internal/scanarea"
	"github.com/mr1hm/robot-scan-console/internal/scanrun"
)

// scan-sim runs a single simulated scan against the real clock and prints
// the report as JSON. With -watch it instead tails the live event stream of a
// running scan-dashboard over gRPC.
func main() {
	_ = godotenv.Load()

	offsetN := flag.Float64("north", 0, "meters to drag the scan target north of the robot")
	offsetE := flag.Float64("east", 0, "meters to drag the scan target east of the robot")
	pauseFor := flag.Duration("pause", 0, "pause the scan this long once it is half done")
	watch := flag.String("watch", "", "gRPC address of a running scan-dashboard to stream events from")
	reportID := flag.String("report", "", "with -watch, print this history marker's report and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	if *watch != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watchEvents(ctx, *watch, *reportID); err != nil {
			logging.Fatalf("Event stream failed: %v", err)
		}
		return
	}

	robot := geo.Point{Lat: cfg.Robot.Lat, Lng: cfg.Robot.Lng}
	area, err := scanarea.New(cfg.Robot.ZoneName, robot, cfg.Scan.BoundarySizeM, cfg.Scan.ScanSizeM)
	if err != nil {
		logging.Fatalf("Failed to initialize scan area: %v", err)
	}

	dLng, err := geo.MetersToDegreesLng(*offsetE, robot.Lat)
	if err != nil {
		logging.Fatalf("Invalid robot position: %v", err)
	}
	target, err := area.DragScanTarget(geo.Point{
		Lat: robot.Lat + geo.MetersToDegreesLat(*offsetN),
		Lng: robot.Lng + dLng,
	})
	if err != nil {
		logging.Fatalf("Failed to place scan target: %v", err)
	}
	slog.Info("scan target placed", "lat", target.Lat, "lng", target.Lng)

	runCfg := scanrun.DefaultConfig()
	runCfg.TickInterval = cfg.Scan.TickInterval
	runCfg.SettleDelay = cfg.Scan.SettleDelay

	results := make(chan models.ScanResult, 1)
	halfway := make(chan struct{}, 1)
	var (
		mu        sync.Mutex
		lastPhase string
	)

	runner, err := scanrun.New(runCfg, scanrun.NewSynthesizer(area).Build,
		func(r models.ScanResult) { results <- r },
		scanrun.WithStatusListener(func(s models.RunStatus) {
			mu.Lock()
			if s.Phase != lastPhase {
				slog.Info("phase", "label", s.Phase, "progress", fmt.Sprintf("%.1f", s.Progress))
				lastPhase = s.Phase
			}
			mu.Unlock()
			if s.State == models.RunScanning && s.Progress >= 50 {
				select {
				case halfway <- struct{}{}:
				default:
				}
			}
		}),
	)
	if err != nil {
		logging.Fatalf("Failed to create runner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(); err != nil {
		logging.Fatalf("Failed to start scan: %v", err)
	}

	paused := *pauseFor <= 0
	for {
		select {
		case <-ctx.Done():
			runner.Stop()
			slog.Info("scan aborted")
			os.Exit(130)
		case <-halfway:
			if paused {
				continue
			}
			paused = true
			if err := runner.Pause(); err != nil {
				slog.Warn("pause rejected", "error", err)
				continue
			}
			time.Sleep(*pauseFor)
			if err := runner.Resume(); err != nil {
				logging.Fatalf("Failed to resume scan: %v", err)
			}
		case r := <-results:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(r); err != nil {
				logging.Fatalf("Failed to write result: %v", err)
			}
			return
		}
	}
}

func watchEvents(ctx context.Context, addr, reportID string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client := internalgrpc.NewClient(conn)
	enc := json.NewEncoder(os.Stdout)

	if reportID != "" {
		res, err := client.GetScanResult(ctx, reportID)
		if err != nil {
			return fmt.Errorf("error fetching report %s: %w", reportID, err)
		}
		return enc.Encode(res)
	}

	stream, err := client.StreamScanEvents(ctx)
	if err != nil {
		return fmt.Errorf("error opening event stream: %w", err)
	}
	slog.Info("watching scan events", "addr", addr)

	for {
		e, err := stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
}
