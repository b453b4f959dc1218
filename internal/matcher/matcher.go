package matcher

import (
	"context"

	"github.com/example/train-booking/internal/catalog"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/schema"
)

// MatchCarriages resolves the ride's carriage references against the
// catalog. Each carriage type appears once, in order of first use; how often
// it is used is tracked by the seat schemas, not here. Unknown references
// are dropped.
func MatchCarriages(refs []string, catalog []models.Carriage) []models.Carriage {
	seen := make(map[string]struct{}, len(refs))
	out := make([]models.Carriage, 0, len(refs))
	for _, ref := range refs {
		c, ok := schema.Resolve(ref, catalog)
		if !ok {
			continue
		}
		if _, dup := seen[c.Code]; dup {
			continue
		}
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	return out
}

type Catalog interface {
	Current() catalog.Snapshot
}

type Rides interface {
	Ride(ctx context.Context, rideID int) (models.Ride, error)
}

// Fare is the price of one carriage type between two stations of a ride.
type Fare struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int    `json:"price"`
	Seats int    `json:"seats"`
}

type RideDetail struct {
	Ride       models.Ride             `json:"ride"`
	From       int                     `json:"from"`
	To         int                     `json:"to"`
	Carriages  []models.Carriage       `json:"carriages"`
	Schemas    []models.CarriageSchema `json:"schemas"`
	TotalSeats int                     `json:"total_seats"`
	Fares      []Fare                  `json:"fares"`
}

type Service struct {
	Catalog Catalog
	Rides   Rides
}

// RideDetail combines a ride with the current carriage catalog. from and to
// default to the ends of the ride's path when zero.
func (s *Service) RideDetail(ctx context.Context, rideID, from, to int) (RideDetail, error) {
	ride, err := s.Rides.Ride(ctx, rideID)
	if err != nil {
		return RideDetail{}, err
	}
	return Detail(ride, s.Catalog.Current().Carriages, from, to), nil
}

// Detail is the pure part of RideDetail.
func Detail(ride models.Ride, carriages []models.Carriage, from, to int) RideDetail {
	if from == 0 && len(ride.Path) > 0 {
		from = ride.Path[0]
	}
	if to == 0 && len(ride.Path) > 0 {
		to = ride.Path[len(ride.Path)-1]
	}
	schemas := schema.ForRide(ride, carriages)
	matched := MatchCarriages(ride.Carriages, carriages)
	return RideDetail{
		Ride:       ride,
		From:       from,
		To:         to,
		Carriages:  matched,
		Schemas:    schemas.Used(),
		TotalSeats: schemas.Total(),
		Fares:      Fares(ride, matched, schemas, from, to),
	}
}

// Fares sums segment prices between from and to for every matched carriage
// type. Stations that are not on the ride, or are in the wrong order, yield
// no fares.
func Fares(ride models.Ride, matched []models.Carriage, schemas schema.Schemas, from, to int) []Fare {
	start, end := indexOf(ride.Path, from), indexOf(ride.Path, to)
	out := []Fare{}
	if start < 0 || end < 0 || start >= end {
		return out
	}
	segments := ride.Schedule.Segments
	for _, c := range matched {
		price := 0
		for i := start; i < end && i < len(segments); i++ {
			if p, ok := segments[i].Price[c.Code]; ok {
				price += p
			} else {
				price += segments[i].Price[c.Name]
			}
		}
		out = append(out, Fare{Code: c.Code, Name: c.Name, Price: price, Seats: schemas[c.Name].Seats})
	}
	return out
}

func indexOf(path []int, id int) int {
	for i, v := range path {
		if v == id {
			return i
		}
	}
	return -1
}
