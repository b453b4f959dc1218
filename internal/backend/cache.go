package backend

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/example/train-booking/internal/models"
)

// RideSource is anything that can fetch a ride by id.
type RideSource interface {
	Ride(ctx context.Context, rideID int) (models.Ride, error)
}

// CachedRides keeps recently fetched rides for ttl. Failed lookups are not
// cached.
type CachedRides struct {
	src   RideSource
	store *gocache.Cache
}

func NewCachedRides(src RideSource, ttl time.Duration) *CachedRides {
	return &CachedRides{src: src, store: gocache.New(ttl, 2*ttl)}
}

func (c *CachedRides) Ride(ctx context.Context, rideID int) (models.Ride, error) {
	key := strconv.Itoa(rideID)
	if v, ok := c.store.Get(key); ok {
		return v.(models.Ride), nil
	}
	r, err := c.src.Ride(ctx, rideID)
	if err != nil {
		return models.Ride{}, err
	}
	c.store.SetDefault(key, r)
	return r, nil
}

// Forget drops a cached ride, e.g. after an order changed its occupancy.
func (c *CachedRides) Forget(rideID int) {
	c.store.Delete(strconv.Itoa(rideID))
}
