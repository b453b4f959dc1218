package route

import (
	"github.com/example/train-booking/internal/graph"
	"github.com/example/train-booking/internal/models"
)

// Summary is a route with its ids resolved to display names.
type Summary struct {
	Route          models.Route `json:"route"`
	Stations       []string     `json:"stations"`
	Carriages      []string     `json:"carriages"`
	DistanceMeters float64      `json:"distance_meters"`
}

// Summarize resolves station ids to cities and carriage codes to names in
// route order. Ids missing from the catalog are left out.
func Summarize(r models.Route, stations []models.Station, catalog []models.Carriage) Summary {
	s := Summary{Route: r, Stations: []string{}, Carriages: []string{}}
	for _, id := range r.Path {
		if st, ok := graph.Find(id, stations); ok {
			s.Stations = append(s.Stations, st.City)
		}
	}
	for _, code := range r.Carriages {
		for _, c := range catalog {
			if c.Code == code {
				s.Carriages = append(s.Carriages, c.Name)
				break
			}
		}
	}
	s.DistanceMeters = graph.PathDistance(r.Path, stations)
	return s
}

func SummarizeAll(routes []models.Route, stations []models.Station, catalog []models.Carriage) []Summary {
	out := make([]Summary, 0, len(routes))
	for _, r := range routes {
		out = append(out, Summarize(r, stations, catalog))
	}
	return out
}
