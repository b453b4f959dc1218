package search

import (
	"strings"
	"time"

	"github.com/example/train-booking/internal/models"
)

// Filter returns the stations whose city contains query, ignoring case.
// An empty query returns the input unchanged. Order is preserved.
func Filter(query string, stations []models.Station) []models.Station {
	q := strings.ToLower(query)
	if q == "" {
		return stations
	}
	out := make([]models.Station, 0, len(stations))
	for _, s := range stations {
		if strings.Contains(strings.ToLower(s.City), q) {
			out = append(out, s)
		}
	}
	return out
}

// Query builds trip search parameters between two stations.
func Query(from, to models.Station, when time.Time) models.TripQuery {
	return models.TripQuery{
		FromLatitude:  from.Latitude,
		FromLongitude: from.Longitude,
		ToLatitude:    to.Latitude,
		ToLongitude:   to.Longitude,
		Time:          when.UTC().Format(time.RFC3339),
	}
}
