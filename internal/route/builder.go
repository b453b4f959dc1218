package route

import (
	"errors"
	"fmt"

	"github.com/example/train-booking/internal/graph"
	"github.com/example/train-booking/internal/models"
)

var (
	ErrNotAdjacent      = errors.New("station is not connected to the previous station")
	ErrUnknownStation   = errors.New("unknown station")
	ErrUnknownCarriage  = errors.New("unknown carriage")
	ErrUnsetSlot        = errors.New("route has an unset slot")
	ErrTooFewStations   = errors.New("route has too few stations")
	ErrTooFewCarriages  = errors.New("route has too few carriages")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// Limits are the minimum sizes a route must reach before it can be
// finalized.
type Limits struct {
	MinStations  int
	MinCarriages int
}

// DefaultLimits accepts single-station routes; the admin form has not
// been switched to two-station routes yet.
var DefaultLimits = Limits{MinStations: 1, MinCarriages: 1}

// Builder composes a route one hop at a time against a station catalog
// snapshot. The confirmed path and the pending selection are kept apart so
// the trailing empty slot never leaks into the finished route.
type Builder struct {
	stations  []models.Station
	catalog   []models.Carriage
	limits    Limits
	path      []int
	pending   *int
	carriages []string

	pendingCarriage *string
}

func NewBuilder(stations []models.Station, catalog []models.Carriage, limits Limits) *Builder {
	if limits.MinStations < 1 {
		limits.MinStations = 1
	}
	if limits.MinCarriages < 1 {
		limits.MinCarriages = 1
	}
	return &Builder{stations: stations, catalog: catalog, limits: limits}
}

// FromRoute loads an existing route for editing. The stored path is
// replayed hop by hop so a route whose links were removed from the
// catalog is rejected.
func FromRoute(r models.Route, stations []models.Station, catalog []models.Carriage, limits Limits) (*Builder, error) {
	b := NewBuilder(stations, catalog, limits)
	for i, id := range r.Path {
		if err := b.AppendStation(id); err != nil {
			return nil, fmt.Errorf("path[%d]=%d: %w", i, id, err)
		}
	}
	for i, code := range r.Carriages {
		if err := b.AppendCarriage(code); err != nil {
			return nil, fmt.Errorf("carriages[%d]=%q: %w", i, code, err)
		}
	}
	return b, nil
}

// Path returns a copy of the confirmed stations.
func (b *Builder) Path() []int {
	return append([]int(nil), b.path...)
}

func (b *Builder) Carriages() []string {
	return append([]string(nil), b.carriages...)
}

// Candidates returns the stations selectable for the next hop: the whole
// catalog for an empty path, otherwise the neighbours of the last station.
func (b *Builder) Candidates() []models.Station {
	if len(b.path) == 0 {
		return append([]models.Station{}, b.stations...)
	}
	return graph.Adjacent(b.path[len(b.path)-1], b.stations)
}

// AppendStation confirms id as the next hop.
func (b *Builder) AppendStation(id int) error {
	if id == 0 {
		return ErrUnsetSlot
	}
	if _, ok := graph.Find(id, b.stations); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStation, id)
	}
	if n := len(b.path); n > 0 && !graph.IsAdjacent(b.path[n-1], id, b.stations) {
		return fmt.Errorf("%w: %d -> %d", ErrNotAdjacent, b.path[n-1], id)
	}
	b.path = append(b.path, id)
	b.pending = nil
	return nil
}

// TruncateFrom keeps path[0..index] and drops everything after it. A
// negative index clears the path.
func (b *Builder) TruncateFrom(index int) {
	if index < 0 {
		b.path = b.path[:0]
		b.pending = nil
		return
	}
	if index+1 < len(b.path) {
		b.path = b.path[:index+1]
		b.pending = nil
	}
}

// SetStation replaces the station at index and discards the hops after it.
// Index may equal the path length, which appends.
func (b *Builder) SetStation(index, id int) error {
	if index < 0 || index > len(b.path) {
		return ErrIndexOutOfBounds
	}
	prev, pending := b.Path(), b.pending
	b.TruncateFrom(index - 1)
	if err := b.AppendStation(id); err != nil {
		b.path, b.pending = prev, pending
		return err
	}
	return nil
}

// SetPending records the selection in the trailing slot without
// confirming it.
func (b *Builder) SetPending(id int) {
	b.pending = &id
}

func (b *Builder) Pending() (int, bool) {
	if b.pending == nil {
		return 0, false
	}
	return *b.pending, true
}

// ConfirmPending appends the pending selection.
func (b *Builder) ConfirmPending() error {
	if b.pending == nil {
		return ErrUnsetSlot
	}
	return b.AppendStation(*b.pending)
}

func (b *Builder) AppendCarriage(code string) error {
	if code == "" {
		return ErrUnsetSlot
	}
	if !b.knownCarriage(code) {
		return fmt.Errorf("%w: %s", ErrUnknownCarriage, code)
	}
	b.carriages = append(b.carriages, code)
	b.pendingCarriage = nil
	return nil
}

// SetPendingCarriage records the selection in the trailing carriage slot
// without confirming it.
func (b *Builder) SetPendingCarriage(code string) {
	b.pendingCarriage = &code
}

func (b *Builder) PendingCarriage() (string, bool) {
	if b.pendingCarriage == nil {
		return "", false
	}
	return *b.pendingCarriage, true
}

// ConfirmPendingCarriage appends the pending carriage selection.
func (b *Builder) ConfirmPendingCarriage() error {
	if b.pendingCarriage == nil {
		return ErrUnsetSlot
	}
	return b.AppendCarriage(*b.pendingCarriage)
}

func (b *Builder) SetCarriage(index int, code string) error {
	if index == len(b.carriages) {
		return b.AppendCarriage(code)
	}
	if index < 0 || index > len(b.carriages) {
		return ErrIndexOutOfBounds
	}
	if code == "" {
		return ErrUnsetSlot
	}
	if !b.knownCarriage(code) {
		return fmt.Errorf("%w: %s", ErrUnknownCarriage, code)
	}
	b.carriages[index] = code
	return nil
}

func (b *Builder) RemoveCarriage(index int) error {
	if index < 0 || index >= len(b.carriages) {
		return ErrIndexOutOfBounds
	}
	b.carriages = append(b.carriages[:index], b.carriages[index+1:]...)
	return nil
}

// Finalize emits the route. The pending slot is never part of it.
func (b *Builder) Finalize() (models.Route, error) {
	if len(b.path) < b.limits.MinStations {
		return models.Route{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewStations, len(b.path), b.limits.MinStations)
	}
	if len(b.carriages) < b.limits.MinCarriages {
		return models.Route{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewCarriages, len(b.carriages), b.limits.MinCarriages)
	}
	for _, id := range b.path {
		if id == 0 {
			return models.Route{}, ErrUnsetSlot
		}
	}
	for _, code := range b.carriages {
		if code == "" {
			return models.Route{}, ErrUnsetSlot
		}
	}
	return models.Route{Path: b.Path(), Carriages: b.Carriages()}, nil
}

// IsValidation reports whether err is a local validation failure rather
// than an upstream one.
func IsValidation(err error) bool {
	for _, target := range []error{ErrNotAdjacent, ErrUnknownStation, ErrUnknownCarriage, ErrUnsetSlot, ErrTooFewStations, ErrTooFewCarriages, ErrIndexOutOfBounds} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (b *Builder) knownCarriage(code string) bool {
	for _, c := range b.catalog {
		if c.Code == code {
			return true
		}
	}
	return false
}
