package httpapi

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/backend"
	"github.com/example/train-booking/internal/booking"
	"github.com/example/train-booking/internal/catalog"
	"github.com/example/train-booking/internal/config"
	"github.com/example/train-booking/internal/events"
	"github.com/example/train-booking/internal/matcher"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/notify"
	"github.com/example/train-booking/internal/payments"
	"github.com/example/train-booking/internal/route"
	"github.com/example/train-booking/internal/storage"
)

// trips is what the server needs from whoever owns rides and orders.
type trips interface {
	catalog.Source
	RouteCreator
	backend.RideSource
	booking.Orders
}

type catalogStore interface {
	catalog.Source
	RouteCreator
}

// NewServerFromConfig wires the server with sensible fallbacks: without a
// backend URL rides and orders live in memory, PG_DSN switches the catalog
// to postgres, and redis, kafka, stripe and pushover are used only when
// configured.
func NewServerFromConfig(ctx context.Context, cfg config.ServerConfig, log *logrus.Logger) (*Server, error) {
	var closers []func() error

	var t trips
	if cfg.BackendURL != "" {
		t = backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout)
	} else {
		log.Warn("BACKEND_URL not set, using in-memory trip store")
		m := storage.NewMemoryStore()
		seedDemo(m)
		t = m
	}

	var store catalogStore = t
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, ps.Close)
		store = ps
	}

	var mirror catalog.Mirror
	var snapshots *storage.RedisSnapshot
	if cfg.RedisAddr != "" {
		snapshots = storage.NewRedisSnapshot(cfg.RedisAddr, cfg.RedisPassword, cfg.SnapshotKey, cfg.SnapshotTTL)
		closers = append(closers, snapshots.Close)
		mirror = snapshots
	}
	cache := catalog.NewCache(store, mirror, log)
	if snapshots != nil {
		if snap, err := snapshots.Get(ctx); err != nil {
			log.WithError(err).Warn("reading catalog snapshot failed")
		} else if cache.Warm(snap) {
			log.WithField("loaded_at", snap.LoadedAt).Info("catalog warmed from redis")
		}
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.CatalogTopic, cfg.BookingTopic)
		closers = append(closers, kp.Close)
		pub = kp
	}

	hub := notify.NewWSHub(log)
	notifiers := notify.Multi{hub, notify.Log{Logger: log}}
	if cfg.PushoverToken != "" {
		notifiers = append(notifiers, notify.NewPushover(cfg.PushoverToken, cfg.PushoverUser, log))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL))
	}

	rides := backend.NewCachedRides(t, cfg.RideCacheTTL)
	svc := &booking.Service{
		Orders:   t,
		Rides:    rides,
		Catalog:  cache,
		Notifier: notifiers,
		Events:   pub,
		Log:      log,
		Forget:   rides.Forget,
	}
	if cfg.StripeKey != "" {
		svc.Holds = payments.NewStripeClient(cfg.StripeKey, cfg.StripeCurrency)
	}

	s := NewServer(Deps{
		Catalog:     cache,
		Routes:      store,
		Rides:       &matcher.Service{Catalog: cache, Rides: rides},
		Booking:     svc,
		Events:      pub,
		Hub:         hub,
		Limits:      route.Limits{MinStations: cfg.MinStations, MinCarriages: cfg.MinCarriages},
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})
	s.closers = closers
	return s, nil
}

// seedDemo fills an in-memory store so the API is usable without a backend.
func seedDemo(m *storage.MemoryStore) {
	m.Seed(
		[]models.Station{
			{ID: 1, City: "Berlin", Latitude: 52.52, Longitude: 13.405, ConnectedTo: []models.StationRef{{ID: 2}}},
			{ID: 2, City: "Leipzig", Latitude: 51.34, Longitude: 12.375, ConnectedTo: []models.StationRef{{ID: 1}, {ID: 3}}},
			{ID: 3, City: "Munich", Latitude: 48.137, Longitude: 11.575, ConnectedTo: []models.StationRef{{ID: 2}}},
		},
		[]models.Carriage{
			{Code: "C1", Name: "Coach", Rows: 10, LeftSeats: 2, RightSeats: 2},
			{Code: "S1", Name: "Sleeper", Rows: 8, LeftSeats: 1, RightSeats: 1},
		},
		[]models.Route{{ID: 1, Path: []int{1, 2, 3}, Carriages: []string{"C1", "C1", "S1"}}},
	)
	m.PutRide(models.Ride{
		RideID:    1,
		RouteID:   1,
		Path:      []int{1, 2, 3},
		Carriages: []string{"C1", "C1", "S1"},
		Schedule: models.Schedule{Segments: []models.Segment{
			{Time: []string{"2026-01-10T08:00:00Z", "2026-01-10T09:15:00Z"}, Price: map[string]int{"C1": 1900, "S1": 3500}},
			{Time: []string{"2026-01-10T09:30:00Z", "2026-01-10T12:40:00Z"}, Price: map[string]int{"C1": 4900, "S1": 8900}},
		}},
	})
}
