package graph

import (
	"testing"

	"github.com/example/train-booking/internal/models"
)

func twoStations() []models.Station {
	return []models.Station{
		{ID: 1, City: "Paris", ConnectedTo: []models.StationRef{{ID: 2}}},
		{ID: 2, City: "Lyon", ConnectedTo: []models.StationRef{{ID: 1}}},
	}
}

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestAdjacentOffersOnlyNeighbour(t *testing.T) {
	got := Adjacent(1, twoStations())
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected [2], got %+v", got)
	}
}

func TestAdjacentNeverIncludesSelf(t *testing.T) {
	stations := []models.Station{
		{ID: 1, ConnectedTo: []models.StationRef{{ID: 1}, {ID: 2}, {ID: 3}}},
		{ID: 2, ConnectedTo: []models.StationRef{{ID: 2}, {ID: 1}}},
		{ID: 3},
	}
	for _, s := range stations {
		for _, n := range Adjacent(s.ID, stations) {
			if n.ID == s.ID {
				t.Fatalf("station %d listed as its own neighbour", s.ID)
			}
		}
	}
	if IsAdjacent(1, 1, stations) {
		t.Fatal("self loop reported as adjacent")
	}
}

func TestAdjacentKeepsCatalogOrder(t *testing.T) {
	stations := []models.Station{
		{ID: 5},
		{ID: 1, ConnectedTo: []models.StationRef{{ID: 9}, {ID: 5}}},
		{ID: 9},
	}
	got := Adjacent(1, stations)
	if len(got) != 2 || got[0].ID != 5 || got[1].ID != 9 {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestAdjacentUnknownOrEmptyCatalog(t *testing.T) {
	if got := Adjacent(42, twoStations()); len(got) != 0 {
		t.Fatalf("expected empty, got %+v", got)
	}
	if got := Adjacent(1, nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAsymmetric(t *testing.T) {
	stations := []models.Station{
		{ID: 1, ConnectedTo: []models.StationRef{{ID: 2}, {ID: 3}}},
		{ID: 2, ConnectedTo: []models.StationRef{{ID: 1}}},
		{ID: 3},
	}
	got := Asymmetric(stations)
	if len(got) != 1 || got[0] != (Edge{From: 1, To: 3}) {
		t.Fatalf("unexpected asymmetric edges %+v", got)
	}
	if len(Asymmetric(twoStations())) != 0 {
		t.Fatal("symmetric graph reported asymmetric")
	}
}

func TestPathDistance(t *testing.T) {
	stations := []models.Station{
		{ID: 1, Latitude: 0, Longitude: 0},
		{ID: 2, Latitude: 0, Longitude: 1},
	}
	d := PathDistance([]int{1, 2, 99}, stations)
	if d < 111000 || d > 111400 {
		t.Fatalf("expected ~111km, got %f", d)
	}
}
