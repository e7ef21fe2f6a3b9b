// Package geo holds the flat-Earth coordinate helpers used to position the
// scan boundary and scan target. The approximation is only valid for the
// tens-to-hundreds of meters a single scan covers.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// MetersPerDegree is the scale factor used for both axes before the
// longitude cosine correction.
const MetersPerDegree = 111000.0

// containsTolerance absorbs the cosine drift between the boundary center
// latitude and the inner rectangle's own latitude (well under a centimeter).
const containsTolerance = 1e-7

var ErrInvalidLatitude = errors.New("latitude out of range")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Orb returns the point in orb's [lng, lat] order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lng: p.Lon()}
}

// Rect is an axis-aligned rectangle given by its southwest and northeast corners.
type Rect struct {
	SouthWest Point `json:"southwest"`
	NorthEast Point `json:"northeast"`
}

func (r Rect) Bound() orb.Bound {
	return orb.Bound{Min: r.SouthWest.Orb(), Max: r.NorthEast.Orb()}
}

func (r Rect) Center() Point {
	return FromOrb(r.Bound().Center())
}

// Contains reports whether inner lies fully inside r.
func (r Rect) Contains(inner Rect) bool {
	outer := r.Bound().Pad(containsTolerance)
	return outer.Contains(inner.SouthWest.Orb()) && outer.Contains(inner.NorthEast.Orb())
}

func MetersToDegreesLat(m float64) float64 {
	return m / MetersPerDegree
}

// MetersToDegreesLng converts an east-west distance at the given latitude.
func MetersToDegreesLng(m, atLat float64) (float64, error) {
	if math.Abs(atLat) >= 90 || math.IsNaN(atLat) {
		return 0, fmt.Errorf("converting %.1fm at lat %f: %w", m, atLat, ErrInvalidLatitude)
	}
	return m / (MetersPerDegree * math.Cos(atLat*math.Pi/180)), nil
}

// BoundsOf returns the rectangle of the given size in meters centered on center.
func BoundsOf(center Point, widthM, heightM float64) (Rect, error) {
	latOffset := MetersToDegreesLat(heightM / 2)
	lngOffset, err := MetersToDegreesLng(widthM/2, center.Lat)
	if err != nil {
		return Rect{}, err
	}

	return Rect{
		SouthWest: Point{Lat: center.Lat - latOffset, Lng: center.Lng - lngOffset},
		NorthEast: Point{Lat: center.Lat + latOffset, Lng: center.Lng + lngOffset},
	}, nil
}

// Clamp moves p so that an innerM square centered on the result stays inside
// the boundaryM square centered on center. Each axis is clamped on its own.
// When innerM >= boundaryM there is no room to move and the result is center.
func Clamp(p, center Point, boundaryM, innerM float64) (Point, error) {
	maxOffset := (boundaryM - innerM) / 2
	if maxOffset < 0 {
		maxOffset = 0
	}

	latOffset := MetersToDegreesLat(maxOffset)
	lngOffset, err := MetersToDegreesLng(maxOffset, center.Lat)
	if err != nil {
		return Point{}, err
	}

	return Point{
		Lat: clampFloat(p.Lat, center.Lat-latOffset, center.Lat+latOffset),
		Lng: clampFloat(p.Lng, center.Lng-lngOffset, center.Lng+lngOffset),
	}, nil
}

// Distance is the Euclidean distance in meters between a and b using the
// same scale factors as the conversions above, evaluated at a's latitude.
// It is not a great-circle distance.
func Distance(a, b Point) (float64, error) {
	if math.Abs(a.Lat) >= 90 {
		return 0, fmt.Errorf("distance from lat %f: %w", a.Lat, ErrInvalidLatitude)
	}
	dy := (b.Lat - a.Lat) * MetersPerDegree
	dx := (b.Lng - a.Lng) * MetersPerDegree * math.Cos(a.Lat*math.Pi/180)
	return math.Hypot(dx, dy), nil
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
