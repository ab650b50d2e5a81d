package export

import (
	"encoding/json"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

const schemaOrg = "https://schema.org"

// JSONLDNode is a JSON-LD node whose properties are flattened next to its
// @id and @type.
type JSONLDNode struct {
	ID         string
	Type       string
	Properties map[string]any
}

// MarshalJSON implements custom JSON marshaling for JSONLDNode.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	for k, v := range n.Properties {
		m[k] = v
	}
	if n.ID != "" {
		m["@id"] = n.ID
	}
	if n.Type != "" {
		m["@type"] = n.Type
	}
	return json.Marshal(m)
}

// schemaType maps an activity to the closest schema.org class.
var schemaType = map[itinerary.ActivityType]string{
	itinerary.ActivityFood:        "FoodEstablishment",
	itinerary.ActivitySightseeing: "TouristAttraction",
	itinerary.ActivityActivity:    "TouristAttraction",
	itinerary.ActivityTransit:     "Place",
	itinerary.ActivityCommitment:  "Place",
}

// renderJSONLD describes the itinerary as a schema.org TouristTrip whose
// itinerary is an ordered ItemList of places.
func renderJSONLD(it *itinerary.Itinerary, opts Options) ([]byte, error) {
	items := make([]JSONLDNode, 0, len(it.Stops))
	for i, s := range it.Stops {
		items = append(items, JSONLDNode{
			Type: "ListItem",
			Properties: map[string]any{
				"position": i + 1,
				"item":     placeNode(it, s, opts),
			},
		})
	}

	props := map[string]any{
		"@context": schemaOrg,
		"name":     it.Title,
		"itinerary": JSONLDNode{
			Type: "ItemList",
			Properties: map[string]any{
				"numberOfItems":   len(items),
				"itemListOrder":   "https://schema.org/ItemListOrderAscending",
				"itemListElement": items,
			},
		},
	}
	if it.Summary != "" {
		props["description"] = it.Summary
	}
	if opts.City != "" {
		props["touristType"] = "Local"
		props["subjectOf"] = JSONLDNode{Type: "City", Properties: map[string]any{"name": opts.City}}
	}

	doc := JSONLDNode{
		ID:         "urn:localflow:itinerary:" + it.ID,
		Type:       "TouristTrip",
		Properties: props,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func placeNode(it *itinerary.Itinerary, s itinerary.Stop, opts Options) JSONLDNode {
	typ := schemaType[s.Type]
	if typ == "" {
		typ = "Place"
	}
	props := map[string]any{
		"name":    s.Name,
		"address": s.Location.Address,
	}
	if s.Description != "" {
		props["description"] = s.Description
	}
	if s.Location.IsResolved() {
		props["geo"] = JSONLDNode{
			Type: "GeoCoordinates",
			Properties: map[string]any{
				"latitude":  s.Location.Lat,
				"longitude": s.Location.Lng,
			},
		}
	}
	if len(s.Tags) > 0 {
		props["keywords"] = s.Tags
	}
	if start, err := opts.at(s.StartTime); err == nil {
		if end, err := opts.at(s.EndTime); err == nil {
			props["event"] = JSONLDNode{
				Type: "Event",
				Properties: map[string]any{
					"name":      s.Name,
					"startDate": start.Format("2006-01-02T15:04"),
					"endDate":   end.Format("2006-01-02T15:04"),
				},
			}
		}
	}
	return JSONLDNode{
		ID:         "urn:localflow:itinerary:" + it.ID + ":stop:" + s.ID,
		Type:       typ,
		Properties: props,
	}
}
