package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu      sync.RWMutex
	markers []models.HistoryMarker
	byID    map[string]int
	logs    []models.LogRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
	}
}

func (s *MemoryStore) Add(ctx context.Context, result *models.ScanResult, point geo.Point, risk models.RiskLevel) (models.HistoryMarker, error) {
	m := models.HistoryMarker{
		ID:        uuid.NewString(),
		Point:     point,
		RiskLevel: risk,
		ScanData:  cloneResult(result),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[m.ID] = len(s.markers)
	s.markers = append(s.markers, m)
	s.mu.Unlock()

	return copyMarker(m), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.HistoryMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return models.HistoryMarker{}, fmt.Errorf("history marker %q: %w", id, ErrNotFound)
	}
	return copyMarker(s.markers[i]), nil
}

func (s *MemoryStore) FilterByRisk(ctx context.Context, enabled RiskSet) ([]models.HistoryMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.HistoryMarker, 0, len(s.markers))
	for _, m := range s.markers {
		if enabled[m.RiskLevel] {
			out = append(out, copyMarker(m))
		}
	}
	return out, nil
}

func (s *MemoryStore) AddLog(ctx context.Context, row models.LogRow) (models.LogRow, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.logs = append(s.logs, row)
	s.mu.Unlock()

	return row, nil
}

// ListLogs returns rows newest first.
func (s *MemoryStore) ListLogs(ctx context.Context, opts LogFilter) ([]models.LogRow, error) {
	s.mu.RLock()
	rows := make([]models.LogRow, 0, len(s.logs))
	for _, r := range s.logs {
		if opts.Since != nil && r.RecordedAt.Before(*opts.Since) {
			continue
		}
		if opts.Zone != "" && r.Zone != opts.Zone {
			continue
		}
		rows = append(rows, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RecordedAt.After(rows[j].RecordedAt) })
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneResult(r *models.ScanResult) *models.ScanResult {
	if r == nil {
		return nil
	}
	c := r.Clone()
	return &c
}

func copyMarker(m models.HistoryMarker) models.HistoryMarker {
	m.ScanData = cloneResult(m.ScanData)
	return m
}
