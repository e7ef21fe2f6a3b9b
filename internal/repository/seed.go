package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

// SeedMarker is a past scan supplied at startup.
type SeedMarker struct {
	Point  geo.Point
	Risk   models.RiskLevel
	Result *models.ScanResult
}

// DefaultSeedMarkers are the example scans the dashboard starts with.
func DefaultSeedMarkers() []SeedMarker {
	return []SeedMarker{
		{
			Point: geo.Point{Lat: 34.228, Lng: -117.858},
			Risk:  models.RiskLow,
			Result: &models.ScanResult{
				ZoneID:       "B-03",
				Location:     "Area B-03",
				AreaSize:     "50 m × 50 m",
				Duration:     "14 min 22 sec",
				CompletedAt:  "28 Jan 2026 15:30",
				RiskLevel:    models.RiskLow,
				AvgPlantTemp: 26.2,
				AvgAirTemp:   25.8,
				TempDiff:     0.4,
				FuelLoad:     models.FuelLow,
				FuelDensity:  0.32,
				Biomass:      0.8,
				Recommendations: []string{
					"Area is healthy",
					"No immediate action required",
					"Schedule routine check in 30 days",
				},
				Latitude:  "34.228000",
				Longitude: "-117.858000",
			},
		},
		{
			Point: geo.Point{Lat: 34.223, Lng: -117.845},
			Risk:  models.RiskMedium,
			Result: &models.ScanResult{
				ZoneID:       "C-07",
				Location:     "Area C-07",
				AreaSize:     "50 m × 50 m",
				Duration:     "15 min 08 sec",
				CompletedAt:  "25 Jan 2026 10:15",
				RiskLevel:    models.RiskMedium,
				AvgPlantTemp: 30.1,
				AvgAirTemp:   28.2,
				TempDiff:     1.9,
				FuelLoad:     models.FuelMedium,
				FuelDensity:  0.55,
				Biomass:      1.3,
				Recommendations: []string{
					"Monitor area closely",
					"Consider preventive measures",
					"Re-scan in 14 days",
				},
				Latitude:  "34.223000",
				Longitude: "-117.845000",
			},
		},
		{
			Point: geo.Point{Lat: 34.230, Lng: -117.842},
			Risk:  models.RiskHigh,
			Result: &models.ScanResult{
				ZoneID:       "A-01",
				Location:     "Area A-01",
				AreaSize:     "50 m × 50 m",
				Duration:     "15 min 45 sec",
				CompletedAt:  "01 Feb 2026 14:30",
				RiskLevel:    models.RiskHigh,
				AvgPlantTemp: 34.5,
				AvgAirTemp:   29.0,
				TempDiff:     5.5,
				FuelLoad:     models.FuelHigh,
				FuelDensity:  0.85,
				Biomass:      2.1,
				Recommendations: []string{
					"Immediate action required",
					"High fire risk detected",
					"Inspect and clear dry vegetation",
				},
				Latitude:  "34.230000",
				Longitude: "-117.842000",
			},
		},
	}
}

func DefaultSeedLogs() []models.LogRow {
	return []models.LogRow{
		{
			Zone:         "A-01",
			RecordedAt:   time.Date(2026, 1, 23, 14, 30, 0, 0, time.UTC),
			AvgAirTemp:   28.2,
			AvgHumidity:  66,
			AvgPlantTemp: 29.4,
			FuelLoad:     models.FuelHigh,
		},
		{
			Zone:         "B-03",
			RecordedAt:   time.Date(2025, 7, 28, 15, 30, 0, 0, time.UTC),
			AvgAirTemp:   29.2,
			AvgHumidity:  56,
			AvgPlantTemp: 30.4,
			FuelLoad:     models.FuelLow,
		},
	}
}

// Seed loads markers and log rows into an empty store.
func Seed(ctx context.Context, store Store, markers []SeedMarker, logs []models.LogRow) error {
	for _, m := range markers {
		if _, err := store.Add(ctx, m.Result, m.Point, m.Risk); err != nil {
			return fmt.Errorf("error seeding history marker: %w", err)
		}
	}
	for _, l := range logs {
		if _, err := store.AddLog(ctx, l); err != nil {
			return fmt.Errorf("error seeding scan log: %w", err)
		}
	}
	return nil
}
