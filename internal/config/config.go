package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	GRPC    GRPCConfig
	Worker  WorkerConfig
	Robot   RobotConfig
	Scan    ScanConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

// RobotConfig is the initial robot fix and zone until telemetry updates them.
type RobotConfig struct {
	Lat      float64
	Lng      float64
	ZoneName string
}

type ScanConfig struct {
	BoundarySizeM float64
	ScanSizeM     float64
	TickInterval  time.Duration
	SettleDelay   time.Duration
	Seed          bool
}

// DatabaseConfig selects the history store. An empty Path keeps history in
// memory only.
type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Robot: RobotConfig{
			Lat:      getEnvFloat("ROBOT_LAT", 34.2257),
			Lng:      getEnvFloat("ROBOT_LNG", -117.8512),
			ZoneName: getEnv("ZONE_NAME", "Area A-01"),
		},
		Scan: ScanConfig{
			BoundarySizeM: getEnvFloat("BOUNDARY_SIZE_M", 200),
			ScanSizeM:     getEnvFloat("SCAN_SIZE_M", 50),
			TickInterval:  getEnvDuration("SCAN_TICK_INTERVAL", 500*time.Millisecond),
			SettleDelay:   getEnvDuration("SCAN_SETTLE_DELAY", time.Second),
			Seed:          getEnvBool("SEED_HISTORY", true),
		},
		DB: DatabaseConfig{
			Path: os.Getenv("HISTORY_DB_PATH"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("invalid rate limit: %.1f rps, burst %d", c.Server.RateLimitRPS, c.Server.RateLimitBurst)
	}

	if math.IsNaN(c.Robot.Lat) || math.Abs(c.Robot.Lat) >= 90 {
		return fmt.Errorf("invalid robot latitude: %f", c.Robot.Lat)
	}
	if math.IsNaN(c.Robot.Lng) || math.Abs(c.Robot.Lng) > 180 {
		return fmt.Errorf("invalid robot longitude: %f", c.Robot.Lng)
	}

	if c.Scan.BoundarySizeM <= 0 || c.Scan.ScanSizeM <= 0 {
		return fmt.Errorf("area sizes must be positive")
	}
	if c.Scan.TickInterval < 10*time.Millisecond {
		return fmt.Errorf("scan tick interval must be at least 10ms")
	}
	if c.Scan.SettleDelay < 0 {
		return fmt.Errorf("scan settle delay must not be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
