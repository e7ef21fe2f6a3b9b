package scanrun

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

const (
	defaultZoneID     = "A-01"
	completedAtLayout = "02 Jan 2006 15:04"
)

// AreaReader is the part of the scan area a report is built from.
type AreaReader interface {
	ZoneName() string
	ScanTarget() geo.Point
	AreaLabel() string
}

var recommendations = map[models.RiskLevel][]string{
	models.RiskLow: {
		"Area is healthy",
		"No immediate action required",
		"Schedule routine check in 30 days",
	},
	models.RiskMedium: {
		"Monitor area closely",
		"Consider preventive measures",
		"Re-scan in 14 days",
	},
	models.RiskHigh: {
		"Immediate action required",
		"High fire risk detected",
		"Inspect and clear dry vegetation",
	},
}

// Recommendations returns a fresh copy of the advice list for a risk level.
func Recommendations(level models.RiskLevel) []string {
	return append([]string(nil), recommendations[level]...)
}

// Synthesizer fabricates sensor readings for a finished simulated scan and
// classifies them. Readings are drawn from Rand, so a fixed source gives a
// reproducible report.
type Synthesizer struct {
	Area AreaReader
	Rand func() float64
	Now  func() time.Time
}

func NewSynthesizer(area AreaReader) *Synthesizer {
	return &Synthesizer{
		Area: area,
		Rand: rand.Float64,
		Now:  time.Now,
	}
}

// Build is a ResultBuilder. The location is read from the area at call
// time so the report reflects where the target sits when it is emitted.
func (s *Synthesizer) Build(info RunInfo) (models.ScanResult, error) {
	if s.Area == nil {
		return models.ScanResult{}, fmt.Errorf("synthesizer has no scan area")
	}

	target := s.Area.ScanTarget()
	zone := s.Area.ZoneName()

	airTemp := round(24+s.Rand()*8, 1)
	tempDiff := round(s.Rand()*6, 1)
	density := round(0.2+s.Rand()*0.75, 2)
	humidity := round(40+s.Rand()*35, 0)
	fuel := FuelLoadFor(density)
	risk := RiskFor(tempDiff, fuel)

	return models.ScanResult{
		ZoneID:          ZoneID(zone),
		Location:        zone,
		AreaSize:        s.Area.AreaLabel(),
		Duration:        FormatDuration(info.Active),
		CompletedAt:     s.Now().Format(completedAtLayout),
		RiskLevel:       risk,
		AvgPlantTemp:    round(airTemp+tempDiff, 1),
		AvgAirTemp:      airTemp,
		AvgHumidity:     humidity,
		TempDiff:        tempDiff,
		FuelLoad:        fuel,
		FuelDensity:     density,
		Biomass:         round(0.4+density*1.9, 1),
		Recommendations: Recommendations(risk),
		Latitude:        fmt.Sprintf("%.6f", target.Lat),
		Longitude:       fmt.Sprintf("%.6f", target.Lng),
	}, nil
}

// FuelLoadFor buckets a fuel density index.
func FuelLoadFor(density float64) models.FuelLoad {
	switch {
	case density >= 0.7:
		return models.FuelHigh
	case density >= 0.4:
		return models.FuelMedium
	default:
		return models.FuelLow
	}
}

// RiskFor combines the plant/air temperature differential with the fuel
// load; either one alone can raise the level.
func RiskFor(tempDiff float64, fuel models.FuelLoad) models.RiskLevel {
	switch {
	case tempDiff >= 3 || fuel == models.FuelHigh:
		return models.RiskHigh
	case tempDiff >= 1 || fuel == models.FuelMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// ZoneID is the last word of a zone name ("Area A-01" -> "A-01").
func ZoneID(zoneName string) string {
	fields := strings.Fields(zoneName)
	if len(fields) == 0 {
		return defaultZoneID
	}
	return fields[len(fields)-1]
}

// FormatDuration renders "15 min 08 sec".
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d min %02d sec", secs/60, secs%60)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
