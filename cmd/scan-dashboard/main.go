package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/robot-scan-console/internal/api"
	"github.com/mr1hm/robot-scan-console/internal/config"
	"github.com/mr1hm/robot-scan-console/internal/console"
	"github.com/mr1hm/robot-scan-console/internal/geo"
	internalgrpc "github.com/mr1hm/robot-scan-console/internal/grpc"
	"github.com/mr1hm/robot-scan-console/internal/ingestion"
	"github.com/mr1hm/robot-scan-console/internal/logging"
	"github.com/mr1hm/robot-scan-console/internal/metrics"
	"github.com/mr1hm/robot-scan-console/internal/repository"
	"github.com/mr1hm/robot-scan-console/internal/scanarea"
	"github.com/mr1hm/robot-scan-console/internal/scanrun"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatalf("Failed to initialize history store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scan.Seed {
		if err := seedIfEmpty(ctx, store); err != nil {
			logging.Fatalf("Failed to seed history: %v", err)
		}
	}

	// Fans run status and results out to WebSocket and gRPC subscribers
	broadcaster := internalgrpc.NewBroadcaster()

	mgr := ingestion.NewManager(cfg, store, broadcaster)
	mgr.Start(ctx)

	area, err := scanarea.New(cfg.Robot.ZoneName, geo.Point{Lat: cfg.Robot.Lat, Lng: cfg.Robot.Lng},
		cfg.Scan.BoundarySizeM, cfg.Scan.ScanSizeM)
	if err != nil {
		logging.Fatalf("Failed to initialize scan area: %v", err)
	}

	runCfg := scanrun.DefaultConfig()
	runCfg.TickInterval = cfg.Scan.TickInterval
	runCfg.SettleDelay = cfg.Scan.SettleDelay

	con, err := console.New(area, runCfg, store, mgr, broadcaster)
	if err != nil {
		logging.Fatalf("Failed to initialize console: %v", err)
	}

	grpcServer := internalgrpc.NewServer(store, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(metrics.Middleware())
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	handler := api.NewHandler(con, broadcaster)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	con.Shutdown()
	cancel()
	mgr.Stop()
	broadcaster.Close() // Close all streams gracefully
	grpcServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.DB.Path == "" {
		slog.Info("keeping scan history in memory")
		return repository.NewMemoryStore(), nil
	}
	slog.Info("keeping scan history in sqlite", "path", cfg.DB.Path)
	return repository.NewSQLiteDB(cfg.DB.Path)
}

// seedIfEmpty loads the demo markers and log rows on first start only, so a
// persistent store is not seeded twice.
func seedIfEmpty(ctx context.Context, store repository.Store) error {
	existing, err := store.FilterByRisk(ctx, repository.AllRisks())
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return repository.Seed(ctx, store, repository.DefaultSeedMarkers(), repository.DefaultSeedLogs())
}
