package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/train-booking/internal/models"
)

var ErrNotFound = errors.New("not found")

// MemoryStore is an in-process stand-in for the backend, used when no
// backend or database is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	stations  []models.Station
	carriages []models.Carriage
	routes    []models.Route
	rides     map[int]models.Ride
	booked    map[int]map[int]bool
	nextRoute int
	nextOrder int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[int]models.Ride), booked: make(map[int]map[int]bool)}
}

// Seed replaces the catalog collections.
func (m *MemoryStore) Seed(stations []models.Station, carriages []models.Carriage, routes []models.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations = append([]models.Station(nil), stations...)
	m.carriages = append([]models.Carriage(nil), carriages...)
	m.routes = append([]models.Route(nil), routes...)
	for _, r := range routes {
		if r.ID > m.nextRoute {
			m.nextRoute = r.ID
		}
	}
}

func (m *MemoryStore) PutRide(r models.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.RideID] = r
}

func (m *MemoryStore) Stations(ctx context.Context) ([]models.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Station{}, m.stations...), nil
}

func (m *MemoryStore) Carriages(ctx context.Context) ([]models.Carriage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Carriage{}, m.carriages...), nil
}

func (m *MemoryStore) Routes(ctx context.Context) ([]models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Route{}, m.routes...), nil
}

func (m *MemoryStore) CreateRoute(ctx context.Context, r models.Route) (models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRoute++
	r.ID = m.nextRoute
	m.routes = append(m.routes, r)
	return r, nil
}

func (m *MemoryStore) Ride(ctx context.Context, rideID int) (models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[rideID]
	if !ok {
		return models.Ride{}, fmt.Errorf("ride %d: %w", rideID, ErrNotFound)
	}
	return r, nil
}

// CreateOrder books a seat once per ride. A taken seat is reported the way
// the backend does: a result without id.
func (m *MemoryStore) CreateOrder(ctx context.Context, o models.Order) (models.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[o.RideID]; !ok {
		return models.OrderResult{}, fmt.Errorf("ride %d: %w", o.RideID, ErrNotFound)
	}
	seats := m.booked[o.RideID]
	if seats == nil {
		seats = make(map[int]bool)
		m.booked[o.RideID] = seats
	}
	if seats[o.Seat] {
		return models.OrderResult{Message: "Seat is already booked"}, nil
	}
	seats[o.Seat] = true
	m.nextOrder++
	return models.OrderResult{ID: m.nextOrder}, nil
}
