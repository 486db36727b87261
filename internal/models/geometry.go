package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// GeoJSONPoint represents a GeoJSON Point for API input/output. Coordinates
// are [longitude, latitude], stored as GEOMETRY(Point, 4326) in PostGIS.
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func NewGeoJSONPoint(lon, lat float64) GeoJSONPoint {
	return GeoJSONPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

func (g GeoJSONPoint) Longitude() float64 {
	if len(g.Coordinates) < 2 {
		return 0
	}
	return g.Coordinates[0]
}

func (g GeoJSONPoint) Latitude() float64 {
	if len(g.Coordinates) < 2 {
		return 0
	}
	return g.Coordinates[1]
}

// Validate checks the GeoJSON shape and WGS84 coordinate ranges.
func (g GeoJSONPoint) Validate() error {
	if g.Type != "Point" {
		return &ValidationError{Field: "location.type", Reason: "must be Point"}
	}
	if len(g.Coordinates) != 2 {
		return &ValidationError{Field: "location.coordinates", Reason: "must be [longitude, latitude]"}
	}
	if lon := g.Coordinates[0]; lon < -180 || lon > 180 {
		return &ValidationError{Field: "location.coordinates", Reason: "longitude out of range [-180, 180]"}
	}
	if lat := g.Coordinates[1]; lat < -90 || lat > 90 {
		return &ValidationError{Field: "location.coordinates", Reason: "latitude out of range [-90, 90]"}
	}
	return nil
}

// Value converts the point to WKT with an SRID prefix for PostGIS.
func (g GeoJSONPoint) Value() (driver.Value, error) {
	if g.Type == "" {
		return nil, nil
	}

	geoJSONBytes, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	var geometry geom.T
	if err := geojson.Unmarshal(geoJSONBytes, &geometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
	}

	point, ok := geometry.(*geom.Point)
	if !ok {
		return nil, fmt.Errorf("geometry is not a Point")
	}
	point.SetSRID(4326)

	wktString, err := wkt.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to WKT: %w", err)
	}

	return fmt.Sprintf("SRID=%d;%s", point.SRID(), wktString), nil
}

// Scan converts PostGIS EWKB back to GeoJSON.
func (g *GeoJSONPoint) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan GeoJSONPoint: expected []byte, got %T", value)
	}

	geometry, err := ewkb.Unmarshal(bytes)
	if err != nil {
		return fmt.Errorf("failed to unmarshal EWKB: %w", err)
	}

	point, ok := geometry.(*geom.Point)
	if !ok {
		return fmt.Errorf("scanned geometry is not a Point")
	}

	g.Type = "Point"
	g.Coordinates = []float64{point.X(), point.Y()}
	return nil
}
