package itinerary

import (
	"net/url"
)

const (
	mapsSearchURL     = "https://www.google.com/maps/search/"
	mapsDirectionsURL = "https://www.google.com/maps/dir/"
)

// Link is a navigation link for one stop.
type Link struct {
	StopID string `json:"stopId"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// DirectionsURL returns a maps link for stop. The first stop (prev == nil)
// gets a place search; later stops get transit directions from prev.
func DirectionsURL(prev *Stop, stop Stop) string {
	if prev == nil {
		q := url.Values{}
		q.Set("api", "1")
		q.Set("query", placeQuery(stop))
		return mapsSearchURL + "?" + q.Encode()
	}
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", placeQuery(*prev))
	q.Set("destination", placeQuery(stop))
	q.Set("travelmode", "transit")
	return mapsDirectionsURL + "?" + q.Encode()
}

// Links returns a directions link for every stop in order.
func Links(it *Itinerary) []Link {
	links := make([]Link, 0, len(it.Stops))
	for i, s := range it.Stops {
		var prev *Stop
		if i > 0 {
			prev = &it.Stops[i-1]
		}
		links = append(links, Link{StopID: s.ID, Name: s.Name, URL: DirectionsURL(prev, s)})
	}
	return links
}

func placeQuery(s Stop) string {
	if s.Location.Address != "" && s.Location.Address != s.Name {
		return s.Name + ", " + s.Location.Address
	}
	return s.Name
}
