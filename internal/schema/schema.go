package schema

import (
	"sort"

	"github.com/example/train-booking/internal/models"
)

// Schemas holds one seat summary per carriage name for a single ride.
type Schemas map[string]models.CarriageSchema

// Derive starts an empty summary for every carriage type in the catalog.
func Derive(catalog []models.Carriage) Schemas {
	s := make(Schemas, len(catalog))
	for _, c := range catalog {
		s[c.Name] = models.CarriageSchema{
			Name:       c.Name,
			Rows:       c.Rows,
			LeftSeats:  c.LeftSeats,
			RightSeats: c.RightSeats,
		}
	}
	return s
}

// Resolve finds the carriage a ride refers to. Rides reference carriages by
// code, older rides by name; code wins.
func Resolve(ref string, catalog []models.Carriage) (models.Carriage, bool) {
	for _, c := range catalog {
		if c.Code == ref {
			return c, true
		}
	}
	for _, c := range catalog {
		if c.Name == ref {
			return c, true
		}
	}
	return models.Carriage{}, false
}

// Accumulate adds the capacity of the carriage referenced by code to its
// summary. Unknown codes are ignored.
func (s Schemas) Accumulate(code string, catalog []models.Carriage) {
	c, ok := Resolve(code, catalog)
	if !ok {
		return
	}
	cur, ok := s[c.Name]
	if !ok {
		cur = models.CarriageSchema{Name: c.Name, Rows: c.Rows, LeftSeats: c.LeftSeats, RightSeats: c.RightSeats}
	}
	cur.Seats += c.Capacity()
	s[c.Name] = cur
}

// ForRide derives the catalog summaries and adds the capacity of every
// carriage the ride uses.
func ForRide(ride models.Ride, catalog []models.Carriage) Schemas {
	used := Schemas{}
	for _, code := range ride.Carriages {
		used.Accumulate(code, catalog)
	}
	return Merge(Derive(catalog), used)
}

// Merge returns a new set with seats summed per name.
func Merge(a, b Schemas) Schemas {
	out := make(Schemas, len(a)+len(b))
	for name, v := range a {
		out[name] = v
	}
	for name, v := range b {
		if cur, ok := out[name]; ok {
			cur.Seats += v.Seats
			out[name] = cur
			continue
		}
		out[name] = v
	}
	return out
}

func (s Schemas) Total() int {
	total := 0
	for _, v := range s {
		total += v.Seats
	}
	return total
}

// Used returns the summaries with at least one seat, sorted by name.
func (s Schemas) Used() []models.CarriageSchema {
	out := make([]models.CarriageSchema, 0, len(s))
	for _, v := range s {
		if v.Seats > 0 {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
