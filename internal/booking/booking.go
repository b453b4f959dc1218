package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/backend"
	"github.com/example/train-booking/internal/matcher"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/notify"
	"github.com/example/train-booking/internal/observability"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrRejected     = errors.New("order rejected")
)

type Orders interface {
	CreateOrder(ctx context.Context, o models.Order) (models.OrderResult, error)
}

// Holds reserves the fare while the order is being placed.
type Holds interface {
	Hold(ctx context.Context, amount int64, o models.Order) (string, error)
	Capture(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
}

type Publisher interface {
	PublishBooking(ctx context.Context, e models.BookingEvent) error
}

// Request is what the client sends. Zero stations default to the ends of
// the ride; a zero seat gets a placeholder seat.
type Request struct {
	RideID       int    `json:"rideId"`
	Seat         int    `json:"seat"`
	StationStart int    `json:"stationStart"`
	StationEnd   int    `json:"stationEnd"`
	Carriage     string `json:"carriage,omitempty"`
}

type Service struct {
	Orders   Orders
	Rides    matcher.Rides
	Catalog  matcher.Catalog
	Holds    Holds // optional
	Notifier notify.Notifier
	Events   Publisher
	Log      *logrus.Logger

	// Forget is called with the ride id after a successful order so cached
	// occupancy is refreshed.
	Forget func(rideID int)
	// PickSeat chooses a seat when the request has none.
	PickSeat func() int
}

// Book shapes the order, submits it and reports the outcome to the
// notifier. Failures leave no hold behind.
func (s *Service) Book(ctx context.Context, req Request) (models.OrderResult, error) {
	order, ride, err := s.shape(ctx, req)
	if err != nil {
		return models.OrderResult{}, err
	}
	log := s.Log.WithFields(logrus.Fields{"ride_id": order.RideID, "seat": order.Seat, "from": order.StationStart, "to": order.StationEnd})

	holdID := ""
	if s.Holds != nil {
		if req.Carriage == "" {
			return models.OrderResult{}, fmt.Errorf("%w: carriage is required", ErrInvalidOrder)
		}
		var carriages []models.Carriage
		if s.Catalog != nil {
			carriages = s.Catalog.Current().Carriages
		}
		amount := fareFor(ride, carriages, req.Carriage, order)
		if amount <= 0 {
			return models.OrderResult{}, fmt.Errorf("%w: no fare for carriage %q between %d and %d", ErrInvalidOrder, req.Carriage, order.StationStart, order.StationEnd)
		}
		holdID, err = s.Holds.Hold(ctx, amount, order)
		if err != nil {
			observability.OrdersTotal.WithLabelValues("payment_error").Inc()
			s.report(ctx, order, 0, false, "Failed! payment could not be held")
			return models.OrderResult{}, fmt.Errorf("hold fare: %w", err)
		}
		log = log.WithField("payment_intent", holdID)
	}

	res, err := s.Orders.CreateOrder(ctx, order)
	if err == nil && res.ID == 0 {
		msg := res.Message
		if msg == "" {
			msg = "order was not created"
		}
		err = fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	if err != nil {
		s.release(ctx, log, holdID)
		observability.OrdersTotal.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("order failed")
		s.report(ctx, order, 0, false, "Failed! "+failureMessage(err, res))
		return res, err
	}

	if holdID != "" {
		if cerr := s.Holds.Capture(ctx, holdID); cerr != nil {
			log.WithError(cerr).Error("capture fare failed")
		}
	}
	if s.Forget != nil {
		s.Forget(order.RideID)
	}
	observability.OrdersTotal.WithLabelValues("ok").Inc()
	log.WithField("order_id", res.ID).Info("order created")
	s.report(ctx, order, res.ID, true, "Success!")
	return res, nil
}

func (s *Service) shape(ctx context.Context, req Request) (models.Order, models.Ride, error) {
	if req.RideID <= 0 {
		return models.Order{}, models.Ride{}, fmt.Errorf("%w: ride id is required", ErrInvalidOrder)
	}
	order := models.Order{RideID: req.RideID, Seat: req.Seat, StationStart: req.StationStart, StationEnd: req.StationEnd}

	var ride models.Ride
	if s.Rides != nil {
		r, err := s.Rides.Ride(ctx, req.RideID)
		if err != nil {
			s.report(ctx, order, 0, false, "Failed! "+backend.Message(err))
			return models.Order{}, models.Ride{}, fmt.Errorf("fetch ride %d: %w", req.RideID, err)
		}
		ride = r
		if n := len(ride.Path); n > 0 {
			if order.StationStart == 0 {
				order.StationStart = ride.Path[0]
			}
			if order.StationEnd == 0 {
				order.StationEnd = ride.Path[n-1]
			}
		}
	}
	if order.StationStart == 0 || order.StationEnd == 0 {
		return models.Order{}, models.Ride{}, fmt.Errorf("%w: start and end stations are required", ErrInvalidOrder)
	}
	if order.StationStart == order.StationEnd {
		return models.Order{}, models.Ride{}, fmt.Errorf("%w: start and end stations must differ", ErrInvalidOrder)
	}
	if len(ride.Path) > 0 {
		from, to := indexOf(ride.Path, order.StationStart), indexOf(ride.Path, order.StationEnd)
		if from < 0 || to < 0 {
			return models.Order{}, models.Ride{}, fmt.Errorf("%w: stations %d and %d must both be on the ride", ErrInvalidOrder, order.StationStart, order.StationEnd)
		}
		if from > to {
			return models.Order{}, models.Ride{}, fmt.Errorf("%w: station %d comes after %d on the ride", ErrInvalidOrder, order.StationStart, order.StationEnd)
		}
	}
	if order.Seat < 0 {
		return models.Order{}, models.Ride{}, fmt.Errorf("%w: seat must be positive", ErrInvalidOrder)
	}
	if order.Seat == 0 {
		order.Seat = s.pickSeat()
	}
	return order, ride, nil
}

func (s *Service) pickSeat() int {
	if s.PickSeat != nil {
		return s.PickSeat()
	}
	return rand.Intn(100) + 1
}

func (s *Service) release(ctx context.Context, log *logrus.Entry, holdID string) {
	if holdID == "" {
		return
	}
	if err := s.Holds.Cancel(ctx, holdID); err != nil {
		log.WithError(err).Error("cancel fare hold failed")
	}
}

func (s *Service) report(ctx context.Context, order models.Order, orderID int, success bool, message string) {
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, success, message); err != nil {
			s.Log.WithError(err).Warn("notification failed")
		}
	}
	if s.Events != nil {
		ev := models.BookingEvent{Order: order, OrderID: orderID, Success: success, Message: message}
		if err := s.Events.PublishBooking(ctx, ev); err != nil {
			s.Log.WithError(err).Warn("publish booking event failed")
		}
	}
}

func failureMessage(err error, res models.OrderResult) string {
	if errors.Is(err, ErrRejected) && res.Message != "" {
		return res.Message
	}
	if errors.Is(err, ErrRejected) {
		return "order was not created"
	}
	return backend.Message(err)
}

func indexOf(path []int, id int) int {
	for i, v := range path {
		if v == id {
			return i
		}
	}
	return -1
}

func fareFor(ride models.Ride, catalog []models.Carriage, carriage string, o models.Order) int64 {
	d := matcher.Detail(ride, catalog, o.StationStart, o.StationEnd)
	for _, f := range d.Fares {
		if f.Code == carriage || f.Name == carriage {
			return int64(f.Price)
		}
	}
	return 0
}
