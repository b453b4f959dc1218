package models

// StationRef points at a neighbouring station by id.
type StationRef struct {
	ID       int `json:"id"`
	Distance int `json:"distance,omitempty"`
}

type Station struct {
	ID          int          `json:"id"`
	City        string       `json:"city"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	ConnectedTo []StationRef `json:"connectedTo"`
}

type Carriage struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	LeftSeats  int    `json:"leftSeats"`
	RightSeats int    `json:"rightSeats"`
}

// Capacity is rows * (leftSeats + rightSeats).
func (c Carriage) Capacity() int {
	return c.Rows * (c.LeftSeats + c.RightSeats)
}

type Route struct {
	ID        int      `json:"id,omitempty"`
	Path      []int    `json:"path"`
	Carriages []string `json:"carriages"`
}

type Segment struct {
	Time          []string       `json:"time"`
	Price         map[string]int `json:"price"`
	OccupiedSeats []int          `json:"occupiedSeats"`
}

type Schedule struct {
	Segments []Segment `json:"segments"`
}

type Ride struct {
	RideID    int      `json:"rideId"`
	RouteID   int      `json:"routeId"`
	Path      []int    `json:"path"`
	Carriages []string `json:"carriages"`
	Schedule  Schedule `json:"schedule"`
}

type CarriageSchema struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	LeftSeats  int    `json:"leftSeats"`
	RightSeats int    `json:"rightSeats"`
	Seats      int    `json:"seats"`
}

type Order struct {
	RideID       int `json:"rideId"`
	Seat         int `json:"seat"`
	StationStart int `json:"stationStart"`
	StationEnd   int `json:"stationEnd"`
}

// OrderResult is the backend's reply to an order. A zero ID means the
// order was not created.
type OrderResult struct {
	ID      int    `json:"id"`
	Message string `json:"message,omitempty"`
}

type TripQuery struct {
	FromLatitude  float64 `json:"fromLatitude"`
	FromLongitude float64 `json:"fromLongitude"`
	ToLatitude    float64 `json:"toLatitude"`
	ToLongitude   float64 `json:"toLongitude"`
	Time          string  `json:"time"`
}

// CatalogChange is published whenever the admin side mutates a catalog
// collection.
type CatalogChange struct {
	Kind string `json:"kind"` // station, carriage, route
	ID   int    `json:"id,omitempty"`
}

type BookingEvent struct {
	Order   Order  `json:"order"`
	OrderID int    `json:"order_id,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
