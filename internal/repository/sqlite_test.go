package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

func TestNewSQLiteDB_OpenFailureReleasesHandle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "missing-dir", "history.db")
	db, err := NewSQLiteDB(path)
	if err == nil {
		db.Close()
		t.Fatal("expected error opening a database in a missing directory")
	}
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s := setupTestDB(t)
		defer s.Close()
		fn(t, s)
	})
}

func TestStore_AddAndGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		result := &models.ScanResult{
			ZoneID:          "A-01",
			Location:        "Area A-01",
			RiskLevel:       models.RiskHigh,
			TempDiff:        3.7,
			Recommendations: []string{"Action required"},
			Latitude:        "34.225700",
			Longitude:       "-117.851200",
		}

		added, err := s.Add(ctx, result, geo.Point{Lat: 34.2257, Lng: -117.8512}, models.RiskHigh)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if added.ID == "" {
			t.Fatal("expected a generated id")
		}

		// Mutating the caller's copy must not reach the stored marker.
		result.Recommendations[0] = "mutated"

		got, err := s.Get(ctx, added.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.RiskLevel != models.RiskHigh || got.Point.Lat != 34.2257 {
			t.Errorf("unexpected marker %+v", got)
		}
		if got.ScanData == nil || got.ScanData.ZoneID != "A-01" {
			t.Fatalf("expected scan data, got %+v", got.ScanData)
		}
		if got.ScanData.Recommendations[0] != "Action required" {
			t.Errorf("stored result was mutated: %v", got.ScanData.Recommendations)
		}
	})
}

func TestStore_UniqueIDs(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			m, err := s.Add(ctx, nil, geo.Point{Lat: 34, Lng: -117}, models.RiskLow)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if seen[m.ID] {
				t.Fatalf("duplicate id %s", m.ID)
			}
			seen[m.ID] = true
		}
	})
}

func TestStore_GetNotFound(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), "nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_MarkerWithoutScanData(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		m, err := s.Add(ctx, nil, geo.Point{Lat: 1, Lng: 2}, models.RiskMedium)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		got, err := s.Get(ctx, m.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ScanData != nil {
			t.Errorf("expected nil scan data, got %+v", got.ScanData)
		}
	})
}

func TestStore_FilterByRisk(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		levels := []models.RiskLevel{
			models.RiskLow, models.RiskMedium, models.RiskHigh,
			models.RiskLow, models.RiskHigh, models.RiskLow,
		}
		var lowIDs []string
		for i, level := range levels {
			m, err := s.Add(ctx, nil, geo.Point{Lat: float64(i), Lng: 0}, level)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if level == models.RiskLow {
				lowIDs = append(lowIDs, m.ID)
			}
		}

		low, err := s.FilterByRisk(ctx, RiskSet{models.RiskLow: true})
		if err != nil {
			t.Fatalf("FilterByRisk failed: %v", err)
		}
		if len(low) != len(lowIDs) {
			t.Fatalf("expected %d low markers, got %d", len(lowIDs), len(low))
		}
		for i, m := range low {
			if m.ID != lowIDs[i] {
				t.Errorf("order not preserved at %d: expected %s, got %s", i, lowIDs[i], m.ID)
			}
			if m.RiskLevel != models.RiskLow {
				t.Errorf("expected low risk, got %s", m.RiskLevel)
			}
		}

		all, err := s.FilterByRisk(ctx, AllRisks())
		if err != nil {
			t.Fatalf("FilterByRisk failed: %v", err)
		}
		if len(all) != len(levels) {
			t.Errorf("expected %d markers, got %d", len(levels), len(all))
		}
		for i, m := range all {
			if m.Point.Lat != float64(i) {
				t.Errorf("insertion order broken at %d", i)
			}
		}

		none, err := s.FilterByRisk(ctx, RiskSet{models.RiskHigh: false})
		if err != nil {
			t.Fatalf("FilterByRisk failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no markers, got %d", len(none))
		}
	})
}

func TestStore_Logs(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		for i, zone := range []string{"A-01", "B-03", "A-01"} {
			_, err := s.AddLog(ctx, models.LogRow{
				Zone:       zone,
				RecordedAt: base.Add(time.Duration(i) * time.Hour),
				AvgAirTemp: 28,
				FuelLoad:   models.FuelLow,
			})
			if err != nil {
				t.Fatalf("AddLog failed: %v", err)
			}
		}

		rows, err := s.ListLogs(ctx, LogFilter{})
		if err != nil {
			t.Fatalf("ListLogs failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		if !rows[0].RecordedAt.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("expected newest first, got %s", rows[0].RecordedAt)
		}
		if rows[0].ID == "" {
			t.Error("expected generated log id")
		}

		rows, _ = s.ListLogs(ctx, LogFilter{Zone: "A-01"})
		if len(rows) != 2 {
			t.Errorf("expected 2 rows for A-01, got %d", len(rows))
		}

		since := base.Add(30 * time.Minute)
		rows, _ = s.ListLogs(ctx, LogFilter{Since: &since})
		if len(rows) != 2 {
			t.Errorf("expected 2 rows since %s, got %d", since, len(rows))
		}

		rows, _ = s.ListLogs(ctx, LogFilter{Limit: 1})
		if len(rows) != 1 {
			t.Errorf("expected 1 row with limit, got %d", len(rows))
		}
	})
}

func TestSeed(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := Seed(ctx, s, DefaultSeedMarkers(), DefaultSeedLogs()); err != nil {
			t.Fatalf("Seed failed: %v", err)
		}

		markers, err := s.FilterByRisk(ctx, AllRisks())
		if err != nil {
			t.Fatalf("FilterByRisk failed: %v", err)
		}
		if len(markers) != 3 {
			t.Fatalf("expected 3 seeded markers, got %d", len(markers))
		}
		if markers[2].ScanData == nil || markers[2].ScanData.Location != "Area A-01" {
			t.Errorf("unexpected third marker %+v", markers[2])
		}

		logs, err := s.ListLogs(ctx, LogFilter{})
		if err != nil {
			t.Fatalf("ListLogs failed: %v", err)
		}
		if len(logs) != 2 || logs[0].Zone != "A-01" {
			t.Errorf("unexpected seeded logs %+v", logs)
		}
	})
}
