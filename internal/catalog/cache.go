package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/observability"
)

// Source is where catalog collections are loaded from.
type Source interface {
	Stations(ctx context.Context) ([]models.Station, error)
	Carriages(ctx context.Context) ([]models.Carriage, error)
	Routes(ctx context.Context) ([]models.Route, error)
}

// Mirror receives every applied snapshot, e.g. to warm other processes.
type Mirror interface {
	Save(ctx context.Context, s Snapshot) error
}

// Snapshot is an immutable view of the catalog. Callers must not modify
// the slices.
type Snapshot struct {
	Version   uint64            `json:"version"`
	Stations  []models.Station  `json:"stations"`
	Carriages []models.Carriage `json:"carriages"`
	Routes    []models.Route    `json:"routes"`
	LoadedAt  time.Time         `json:"loaded_at"`
}

// Loaded reports whether any load has completed.
func (s Snapshot) Loaded() bool { return !s.LoadedAt.IsZero() }

// Cache holds the current catalog snapshot. Loads may overlap; the most
// recently started load that completes wins and older results are dropped.
type Cache struct {
	src    Source
	mirror Mirror
	log    *logrus.Logger

	started atomic.Uint64

	mu      sync.RWMutex
	cur     Snapshot
	applied uint64
	subs    map[int]chan Snapshot
	nextSub int
}

func NewCache(src Source, mirror Mirror, log *logrus.Logger) *Cache {
	return &Cache{src: src, mirror: mirror, log: log, subs: make(map[int]chan Snapshot)}
}

// Current returns the latest snapshot. Before the first load it is empty.
func (c *Cache) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Load fetches all collections concurrently. A failed collection keeps its
// previous value (empty before the first load); the error is returned so
// callers can report it, but the snapshot is still applied.
func (c *Cache) Load(ctx context.Context) (Snapshot, error) {
	seq := c.started.Add(1)
	start := time.Now()
	prev := c.Current()

	// Each collection starts from the previous snapshot and is replaced only
	// when its fetch succeeds, even if the source returned no rows.
	stations, carriages, routes := prev.Stations, prev.Carriages, prev.Routes
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		v, err := c.src.Stations(ctx)
		if err != nil {
			return fmt.Errorf("load stations: %w", err)
		}
		stations = nonNil(v)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		v, err := c.src.Carriages(ctx)
		if err != nil {
			return fmt.Errorf("load carriages: %w", err)
		}
		carriages = nonNil(v)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		v, err := c.src.Routes(ctx)
		if err != nil {
			return fmt.Errorf("load routes: %w", err)
		}
		routes = nonNil(v)
		return nil
	})
	err := p.Wait()

	observability.CatalogLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.CatalogLoadsTotal.WithLabelValues("error").Inc()
		c.log.WithError(err).WithField("seq", seq).Warn("catalog load failed")
	} else {
		observability.CatalogLoadsTotal.WithLabelValues("ok").Inc()
	}

	snap, applied := c.apply(seq, Snapshot{
		Stations:  stations,
		Carriages: carriages,
		Routes:    routes,
		LoadedAt:  time.Now(),
	})
	if !applied {
		c.log.WithField("seq", seq).Debug("discarding stale catalog load")
		return c.Current(), err
	}
	if c.mirror != nil {
		if merr := c.mirror.Save(ctx, snap); merr != nil {
			c.log.WithError(merr).Warn("catalog mirror save failed")
		}
	}
	c.log.WithFields(logrus.Fields{
		"version":   snap.Version,
		"stations":  len(snap.Stations),
		"carriages": len(snap.Carriages),
		"routes":    len(snap.Routes),
	}).Info("catalog loaded")
	return snap, err
}

// Warm installs a snapshot obtained elsewhere, but only while nothing has
// been loaded yet.
func (c *Cache) Warm(s Snapshot) bool {
	c.mu.Lock()
	if c.cur.Loaded() || !s.Loaded() {
		c.mu.Unlock()
		return false
	}
	s.Version = c.cur.Version + 1
	c.cur = s
	c.mu.Unlock()
	c.publish(s)
	return true
}

// Invalidate drops the current snapshot. Readers see an empty catalog
// until the next load.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cur = Snapshot{Version: c.cur.Version + 1}
	c.applied = c.started.Load()
	s := c.cur
	c.mu.Unlock()
	c.publish(s)
}

// Subscribe returns a channel that receives every new snapshot. Slow
// readers only see the latest one. The returned func unsubscribes.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) apply(seq uint64, s Snapshot) (Snapshot, bool) {
	c.mu.Lock()
	if seq <= c.applied {
		c.mu.Unlock()
		return Snapshot{}, false
	}
	c.applied = seq
	s.Version = c.cur.Version + 1
	c.cur = s
	c.mu.Unlock()
	observability.CatalogVersion.Set(float64(s.Version))
	c.publish(s)
	return s, true
}

func (c *Cache) publish(s Snapshot) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
