package export

import (
	"encoding/json"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

type geoFeatureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   geoGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// renderGeoJSON emits a Point per resolved stop and a LineString through
// them in visiting order. Unresolved stops are left out; coordinates are
// [lng, lat] as GeoJSON requires.
func renderGeoJSON(it *itinerary.Itinerary) ([]byte, error) {
	fc := geoFeatureCollection{Type: "FeatureCollection", Features: []geoFeature{}}
	var route [][2]float64

	for i, s := range it.Stops {
		if !s.Location.IsResolved() {
			continue
		}
		pt := [2]float64{s.Location.Lng, s.Location.Lat}
		route = append(route, pt)
		fc.Features = append(fc.Features, geoFeature{
			Type:     "Feature",
			ID:       s.ID,
			Geometry: geoGeometry{Type: "Point", Coordinates: pt},
			Properties: map[string]any{
				"order":     i + 1,
				"name":      s.Name,
				"address":   s.Location.Address,
				"startTime": s.StartTime,
				"endTime":   s.EndTime,
				"type":      s.Type,
				"isFixed":   s.IsFixed,
			},
		})
	}

	if len(route) > 1 {
		fc.Features = append(fc.Features, geoFeature{
			Type:       "Feature",
			ID:         "route",
			Geometry:   geoGeometry{Type: "LineString", Coordinates: route},
			Properties: map[string]any{"name": it.Title},
		})
	}
	return json.MarshalIndent(fc, "", "  ")
}
