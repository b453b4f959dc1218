package catalog

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/models"
)

type fakeSource struct {
	stations    []models.Station
	carriages   []models.Carriage
	routes      []models.Route
	failStation bool
}

func (f *fakeSource) Stations(ctx context.Context) ([]models.Station, error) {
	if f.failStation {
		return nil, errors.New("backend down")
	}
	return f.stations, nil
}

func (f *fakeSource) Carriages(ctx context.Context) ([]models.Carriage, error) {
	return f.carriages, nil
}

func (f *fakeSource) Routes(ctx context.Context) ([]models.Route, error) {
	return f.routes, nil
}

type fakeMirror struct{ saved []Snapshot }

func (m *fakeMirror) Save(ctx context.Context, s Snapshot) error {
	m.saved = append(m.saved, s)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCurrentBeforeLoadIsEmpty(t *testing.T) {
	c := NewCache(&fakeSource{}, nil, quietLogger())
	s := c.Current()
	if s.Loaded() || len(s.Stations) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}
}

func TestLoadAppliesAndMirrors(t *testing.T) {
	src := &fakeSource{
		stations:  []models.Station{{ID: 1}},
		carriages: []models.Carriage{{Code: "C1"}},
		routes:    []models.Route{{ID: 7}},
	}
	m := &fakeMirror{}
	c := NewCache(src, m, quietLogger())
	s, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.Loaded() || s.Version != 1 || len(s.Routes) != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if len(m.saved) != 1 {
		t.Fatalf("expected mirror save, got %d", len(m.saved))
	}
}

func TestFailedCollectionKeepsPrevious(t *testing.T) {
	src := &fakeSource{stations: []models.Station{{ID: 1}}, carriages: []models.Carriage{{Code: "C1"}}}
	c := NewCache(src, nil, quietLogger())
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.failStation = true
	src.carriages = []models.Carriage{{Code: "C2"}}
	s, err := c.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Stations) != 1 || s.Carriages[0].Code != "C2" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestEmptiedCollectionReplacesPrevious(t *testing.T) {
	src := &fakeSource{
		stations: []models.Station{{ID: 1}},
		routes:   []models.Route{{ID: 7, Path: []int{1}, Carriages: []string{"C1"}}},
	}
	c := NewCache(src, nil, quietLogger())
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.routes = nil
	s, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Routes) != 0 || s.Routes == nil {
		t.Fatalf("successful empty load must replace routes, got %+v", s.Routes)
	}
	if len(s.Stations) != 1 {
		t.Fatalf("stations should be kept, got %+v", s.Stations)
	}
}

func TestFailedFirstLoadIsEmpty(t *testing.T) {
	c := NewCache(&fakeSource{failStation: true}, nil, quietLogger())
	s, err := c.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Stations) != 0 {
		t.Fatalf("expected no stations, got %+v", s.Stations)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	c := NewCache(&fakeSource{stations: []models.Station{{ID: 1}}}, nil, quietLogger())
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()
	for i := 0; i < 3; i++ {
		if _, err := c.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case s := <-ch:
		if s.Version != 3 {
			t.Fatalf("expected latest version 3, got %d", s.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}

// orderedSource blocks the first Stations call until gate is closed and
// answers later calls immediately with a different station.
type orderedSource struct {
	fakeSource
	calls atomic.Int32
	gate  chan struct{}
}

func (o *orderedSource) Stations(ctx context.Context) ([]models.Station, error) {
	if o.calls.Add(1) == 1 {
		<-o.gate
		return []models.Station{{ID: 1}}, nil
	}
	return []models.Station{{ID: 2}}, nil
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	src := &orderedSource{gate: make(chan struct{})}
	c := NewCache(src, nil, quietLogger())

	done := make(chan struct{})
	go func() {
		_, _ = c.Load(context.Background())
		close(done)
	}()
	for src.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(src.gate)
	<-done

	if got := c.Current().Stations[0].ID; got != 2 {
		t.Fatalf("stale load overwrote newer snapshot, got station %d", got)
	}
}

func TestInvalidateAndWarm(t *testing.T) {
	c := NewCache(&fakeSource{stations: []models.Station{{ID: 1}}}, nil, quietLogger())
	if !c.Warm(Snapshot{Stations: []models.Station{{ID: 9}}, LoadedAt: time.Now()}) {
		t.Fatal("warm should apply to an empty cache")
	}
	if c.Warm(Snapshot{Stations: []models.Station{{ID: 10}}, LoadedAt: time.Now()}) {
		t.Fatal("warm must not replace a loaded snapshot")
	}
	c.Invalidate()
	if c.Current().Loaded() {
		t.Fatal("invalidate should drop the snapshot")
	}
}
