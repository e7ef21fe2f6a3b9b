package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel accepts any casing ("High", "low").
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Title returns the capitalized label shown on result pages ("High").
func (r RiskLevel) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

type FuelLoad string

const (
	FuelLow    FuelLoad = "low"
	FuelMedium FuelLoad = "medium"
	FuelHigh   FuelLoad = "high"
)

// ScanResult is the report produced once per completed scan. Treat it as
// immutable; copy Recommendations before handing it to another owner.
type ScanResult struct {
	ZoneID          string    `json:"zone_id"`
	Location        string    `json:"location"`
	AreaSize        string    `json:"area_size"`
	Duration        string    `json:"duration"`
	CompletedAt     string    `json:"completed_at"`
	RiskLevel       RiskLevel `json:"risk_level"`
	AvgPlantTemp    float64   `json:"avg_plant_temp"`
	AvgAirTemp      float64   `json:"avg_air_temp"`
	AvgHumidity     float64   `json:"avg_humidity"`
	TempDiff        float64   `json:"temp_diff"`
	FuelLoad        FuelLoad  `json:"fuel_load"`
	FuelDensity     float64   `json:"fuel_density"`
	Biomass         float64   `json:"biomass"`
	Recommendations []string  `json:"recommendations"`
	Latitude        string    `json:"latitude"`  // 6 decimal places
	Longitude       string    `json:"longitude"` // 6 decimal places
}

func (r ScanResult) Clone() ScanResult {
	r.Recommendations = append([]string(nil), r.Recommendations...)
	return r
}

// HistoryMarker is a past scan location shown on the map.
type HistoryMarker struct {
	ID        string      `json:"id"`
	Point     geo.Point   `json:"point"`
	RiskLevel RiskLevel   `json:"risk_level"`
	ScanData  *ScanResult `json:"scan_data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// LogRow is one line of the scan data log table.
type LogRow struct {
	ID           string    `json:"id"`
	Zone         string    `json:"zone"`
	RecordedAt   time.Time `json:"recorded_at"`
	AvgAirTemp   float64   `json:"avg_air_temp"`
	AvgHumidity  float64   `json:"avg_humidity"`
	AvgPlantTemp float64   `json:"avg_plant_temp"`
	FuelLoad     FuelLoad  `json:"fuel_load"`
}
