package graph

import (
	"math"

	"github.com/example/train-booking/internal/models"
)

// Edge is a directed link as stored in a station's connectedTo list.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Find returns the station with the given id.
func Find(id int, stations []models.Station) (models.Station, bool) {
	for _, s := range stations {
		if s.ID == id {
			return s, true
		}
	}
	return models.Station{}, false
}

// Adjacent returns the stations directly reachable from id, in catalog
// order. The station itself is never part of the result, and an unknown id
// or an unloaded catalog yields an empty result.
func Adjacent(id int, stations []models.Station) []models.Station {
	src, ok := Find(id, stations)
	if !ok || len(src.ConnectedTo) == 0 {
		return []models.Station{}
	}
	next := make(map[int]struct{}, len(src.ConnectedTo))
	for _, ref := range src.ConnectedTo {
		if ref.ID != id {
			next[ref.ID] = struct{}{}
		}
	}
	out := make([]models.Station, 0, len(next))
	for _, s := range stations {
		if _, ok := next[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// IsAdjacent reports whether to is listed in from's connectedTo.
func IsAdjacent(from, to int, stations []models.Station) bool {
	if from == to {
		return false
	}
	src, ok := Find(from, stations)
	if !ok {
		return false
	}
	for _, ref := range src.ConnectedTo {
		if ref.ID == to {
			return true
		}
	}
	return false
}

// Asymmetric lists stored links whose target does not link back. Links
// pointing at stations missing from the catalog are reported as well.
func Asymmetric(stations []models.Station) []Edge {
	links := make(map[Edge]struct{})
	for _, s := range stations {
		for _, ref := range s.ConnectedTo {
			links[Edge{From: s.ID, To: ref.ID}] = struct{}{}
		}
	}
	var out []Edge
	for _, s := range stations {
		for _, ref := range s.ConnectedTo {
			if _, ok := links[Edge{From: ref.ID, To: s.ID}]; !ok {
				out = append(out, Edge{From: s.ID, To: ref.ID})
			}
		}
	}
	return out
}

// Distance between two stations in meters.
func Distance(a, b models.Station) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// PathDistance sums hop distances along path. Hops touching an unknown
// station are skipped.
func PathDistance(path []int, stations []models.Station) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		a, okA := Find(path[i-1], stations)
		b, okB := Find(path[i], stations)
		if !okA || !okB {
			continue
		}
		total += Distance(a, b)
	}
	return total
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
