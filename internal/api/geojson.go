package api

import (
	"github.com/paulmach/orb/geojson"

	"github.com/mr1hm/robot-scan-console/internal/models"
)

// toGeoJSON renders history markers as points for the map layer.
func toGeoJSON(markers []models.HistoryMarker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range markers {
		f := geojson.NewFeature(m.Point.Orb())
		f.ID = m.ID
		f.Properties["id"] = m.ID
		f.Properties["risk_level"] = string(m.RiskLevel)
		f.Properties["created_at"] = m.CreatedAt
		if m.ScanData != nil {
			f.Properties["zone_id"] = m.ScanData.ZoneID
			f.Properties["completed_at"] = m.ScanData.CompletedAt
			f.Properties["fuel_load"] = string(m.ScanData.FuelLoad)
		}
		fc.Append(f)
	}

	return fc
}
