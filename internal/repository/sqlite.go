package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/robot-scan-console/internal/geo"
	"github.com/mr1hm/robot-scan-console/internal/models"
)

// SQLiteDB keeps history and log rows in a SQLite file so they survive a
// restart. It is optional; MemoryStore is used when no path is configured.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS history_markers (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			risk_level TEXT NOT NULL,
			scan_data TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scan_logs (
			id TEXT PRIMARY KEY,
			zone TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			avg_air_temp REAL,
			avg_humidity REAL,
			avg_plant_temp REAL,
			fuel_load TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_markers_risk ON history_markers(risk_level);
		CREATE INDEX IF NOT EXISTS idx_scan_logs_recorded_at ON scan_logs(recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Add(ctx context.Context, result *models.ScanResult, point geo.Point, risk models.RiskLevel) (models.HistoryMarker, error) {
	m := models.HistoryMarker{
		ID:        uuid.NewString(),
		Point:     point,
		RiskLevel: risk,
		ScanData:  cloneResult(result),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	var data sql.NullString
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return models.HistoryMarker{}, fmt.Errorf("error encoding scan data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_markers (id, latitude, longitude, risk_level, scan_data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, point.Lat, point.Lng, string(risk), data, m.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return models.HistoryMarker{}, fmt.Errorf("error inserting history marker: %w", err)
	}

	return m, nil
}

func (s *SQLiteDB) Get(ctx context.Context, id string) (models.HistoryMarker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, risk_level, scan_data, created_at FROM history_markers WHERE id = ?`, id)

	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryMarker{}, fmt.Errorf("history marker %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.HistoryMarker{}, fmt.Errorf("error reading history marker: %w", err)
	}
	return m, nil
}

func (s *SQLiteDB) FilterByRisk(ctx context.Context, enabled RiskSet) ([]models.HistoryMarker, error) {
	var (
		placeholders []string
		args         []any
	)
	for level, on := range enabled {
		if on {
			placeholders = append(placeholders, "?")
			args = append(args, string(level))
		}
	}
	if len(args) == 0 {
		return []models.HistoryMarker{}, nil
	}

	query := `SELECT id, latitude, longitude, risk_level, scan_data, created_at FROM history_markers
		WHERE risk_level IN (` + strings.Join(placeholders, ", ") + `) ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying history markers: %w", err)
	}
	defer rows.Close()

	markers := []models.HistoryMarker{}
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning history marker: %w", err)
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

func (s *SQLiteDB) AddLog(ctx context.Context, row models.LogRow) (models.LogRow, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_logs (id, zone, recorded_at, avg_air_temp, avg_humidity, avg_plant_temp, fuel_load) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Zone, row.RecordedAt.UnixMilli(), row.AvgAirTemp, row.AvgHumidity, row.AvgPlantTemp, string(row.FuelLoad),
	)
	if err != nil {
		return models.LogRow{}, fmt.Errorf("error inserting scan log: %w", err)
	}
	return row, nil
}

func (s *SQLiteDB) ListLogs(ctx context.Context, opts LogFilter) ([]models.LogRow, error) {
	query := `SELECT id, zone, recorded_at, avg_air_temp, avg_humidity, avg_plant_temp, fuel_load FROM scan_logs WHERE 1=1`
	var args []any

	if opts.Since != nil {
		query += ` AND recorded_at >= ?`
		args = append(args, opts.Since.UnixMilli())
	}
	if opts.Zone != "" {
		query += ` AND zone = ?`
		args = append(args, opts.Zone)
	}
	query += ` ORDER BY recorded_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying scan logs: %w", err)
	}
	defer rows.Close()

	logs := []models.LogRow{}
	for rows.Next() {
		var (
			r          models.LogRow
			recordedAt int64
			fuel       string
		)
		if err := rows.Scan(&r.ID, &r.Zone, &recordedAt, &r.AvgAirTemp, &r.AvgHumidity, &r.AvgPlantTemp, &fuel); err != nil {
			return nil, fmt.Errorf("error scanning scan log: %w", err)
		}
		r.RecordedAt = time.UnixMilli(recordedAt).UTC()
		r.FuelLoad = models.FuelLoad(fuel)
		logs = append(logs, r)
	}
	return logs, rows.Err()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarker(row rowScanner) (models.HistoryMarker, error) {
	var (
		m         models.HistoryMarker
		risk      string
		data      sql.NullString
		createdAt int64
	)
	if err := row.Scan(&m.ID, &m.Point.Lat, &m.Point.Lng, &risk, &data, &createdAt); err != nil {
		return models.HistoryMarker{}, err
	}
	m.RiskLevel = models.RiskLevel(risk)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()

	if data.Valid {
		var res models.ScanResult
		if err := json.Unmarshal([]byte(data.String), &res); err != nil {
			return models.HistoryMarker{}, fmt.Errorf("error decoding scan data: %w", err)
		}
		m.ScanData = &res
	}
	return m, nil
}
