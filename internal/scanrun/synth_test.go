package scanrun

import (
	"testing"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

type staticArea struct {
	zone   string
	target geo.Point
}

func (a staticArea) ZoneName() string      { return a.zone }
func (a staticArea) ScanTarget() geo.Point { return a.target }
func (a staticArea) AreaLabel() string     { return "50 m × 50 m" }

func TestSynthesizer_Build(t *testing.T) {
	values := []float64{0.5, 0.5, 0.5} // air 28.0, diff 3.0, density 0.575, humidity 57.5
	i := 0
	s := &Synthesizer{
		Area: staticArea{zone: "Area C-07", target: geo.Point{Lat: 34.2312345678, Lng: -117.8498765432}},
		Rand: func() float64 { v := values[i%len(values)]; i++; return v },
		Now:  func() time.Time { return time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC) },
	}

	res, err := s.Build(RunInfo{Active: 15*time.Minute + 32*time.Second})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.ZoneID != "C-07" || res.Location != "Area C-07" {
		t.Errorf("unexpected zone fields %q / %q", res.ZoneID, res.Location)
	}
	if res.Latitude != "34.231235" || res.Longitude != "-117.849877" {
		t.Errorf("unexpected coordinates %s, %s", res.Latitude, res.Longitude)
	}
	if res.Duration != "15 min 32 sec" {
		t.Errorf("unexpected duration %q", res.Duration)
	}
	if res.CompletedAt != "01 Feb 2026 14:30" {
		t.Errorf("unexpected completed_at %q", res.CompletedAt)
	}
	if res.AvgAirTemp != 28.0 || res.TempDiff != 3.0 || res.AvgPlantTemp != 31.0 {
		t.Errorf("unexpected temperatures %+v", res)
	}
	if res.AvgHumidity != 58 {
		t.Errorf("expected humidity 58, got %.1f", res.AvgHumidity)
	}
	if res.FuelLoad != models.FuelMedium {
		t.Errorf("expected medium fuel load, got %s", res.FuelLoad)
	}
	if res.RiskLevel != models.RiskHigh {
		t.Errorf("expected high risk from 3.0 differential, got %s", res.RiskLevel)
	}
	if len(res.Recommendations) != 3 || res.Recommendations[0] != "Immediate action required" {
		t.Errorf("unexpected recommendations %v", res.Recommendations)
	}
	if res.AreaSize != "50 m × 50 m" {
		t.Errorf("unexpected area size %q", res.AreaSize)
	}
}

func TestRiskFor(t *testing.T) {
	tests := []struct {
		diff float64
		fuel models.FuelLoad
		want models.RiskLevel
	}{
		{0.4, models.FuelLow, models.RiskLow},
		{1.9, models.FuelMedium, models.RiskMedium},
		{0.2, models.FuelMedium, models.RiskMedium},
		{1.2, models.FuelLow, models.RiskMedium},
		{5.5, models.FuelHigh, models.RiskHigh},
		{3.7, models.FuelLow, models.RiskHigh},
		{0.0, models.FuelHigh, models.RiskHigh},
	}
	for _, tt := range tests {
		if got := RiskFor(tt.diff, tt.fuel); got != tt.want {
			t.Errorf("RiskFor(%.1f, %s) = %s, want %s", tt.diff, tt.fuel, got, tt.want)
		}
	}
}

func TestFuelLoadFor(t *testing.T) {
	tests := map[float64]models.FuelLoad{
		0.32: models.FuelLow,
		0.4:  models.FuelMedium,
		0.55: models.FuelMedium,
		0.78: models.FuelHigh,
		0.85: models.FuelHigh,
	}
	for density, want := range tests {
		if got := FuelLoadFor(density); got != want {
			t.Errorf("FuelLoadFor(%.2f) = %s, want %s", density, got, want)
		}
	}
}

func TestZoneID(t *testing.T) {
	tests := map[string]string{
		"Area A-01":   "A-01",
		"B-03":        "B-03",
		"":            "A-01",
		"   ":         "A-01",
		"North Ridge": "Ridge",
	}
	for in, want := range tests {
		if got := ZoneID(in); got != want {
			t.Errorf("ZoneID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(14*time.Minute + 22*time.Second); got != "14 min 22 sec" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(8*time.Second + 600*time.Millisecond); got != "0 min 09 sec" {
		t.Errorf("got %q", got)
	}
}

func TestRecommendationsReturnsCopy(t *testing.T) {
	a := Recommendations(models.RiskLow)
	a[0] = "changed"
	if Recommendations(models.RiskLow)[0] != "Area is healthy" {
		t.Error("Recommendations leaked its backing slice")
	}
}

func TestPhaseTable(t *testing.T) {
	phases := DefaultPhases()
	if err := phases.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}

	tests := map[float64]string{
		0:     "Initializing sensors…",
		9.99:  "Initializing sensors…",
		10:    "Calibrating thermal camera…",
		39.9:  "Scanning quadrant 1/4…",
		40:    "Scanning quadrant 2/4…",
		69.9:  "Scanning quadrant 3/4…",
		84.9:  "Scanning quadrant 4/4…",
		85:    "Processing data…",
		95:    "Finalizing report…",
		99.99: "Finalizing report…",
		100:   PhaseComplete,
	}
	for progress, want := range tests {
		if got := phases.Label(progress); got != want {
			t.Errorf("Label(%.2f) = %q, want %q", progress, got, want)
		}
	}

	bad := PhaseTable{{Until: 50, Label: "b"}, {Until: 10, Label: "a"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsorted table")
	}
	if err := (PhaseTable{{Until: 90, Label: "a"}}).Validate(); err == nil {
		t.Error("expected error for table not reaching 100")
	}
}
