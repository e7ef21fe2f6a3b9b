package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

var ErrNotFound = errors.New("not found")

// RiskSet is the set of risk levels whose markers are visible.
type RiskSet map[models.RiskLevel]bool

func AllRisks() RiskSet {
	return RiskSet{models.RiskLow: true, models.RiskMedium: true, models.RiskHigh: true}
}

type LogFilter struct {
	Limit int
	Since *time.Time
	Zone  string
}

// HistoryRepository holds completed-scan markers. Markers are never
// mutated once added; listings preserve insertion order.
type HistoryRepository interface {
	Add(ctx context.Context, result *models.ScanResult, point geo.Point, risk models.RiskLevel) (models.HistoryMarker, error)
	Get(ctx context.Context, id string) (models.HistoryMarker, error)
	FilterByRisk(ctx context.Context, enabled RiskSet) ([]models.HistoryMarker, error)
}

type LogRepository interface {
	AddLog(ctx context.Context, row models.LogRow) (models.LogRow, error)
	ListLogs(ctx context.Context, opts LogFilter) ([]models.LogRow, error)
}

// Store is what the console needs from a backing store.
type Store interface {
	HistoryRepository
	LogRepository
	Close() error
}
