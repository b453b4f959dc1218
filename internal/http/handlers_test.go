package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/booking"
	"github.com/example/train-booking/internal/catalog"
	"github.com/example/train-booking/internal/matcher"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/notify"
	"github.com/example/train-booking/internal/route"
	"github.com/example/train-booking/internal/storage"
)

type recordingEvents struct {
	changes  []models.CatalogChange
	bookings []models.BookingEvent
}

func (r *recordingEvents) PublishCatalogChange(ctx context.Context, c models.CatalogChange) error {
	r.changes = append(r.changes, c)
	return nil
}

func (r *recordingEvents) PublishBooking(ctx context.Context, e models.BookingEvent) error {
	r.bookings = append(r.bookings, e)
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingEvents) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := storage.NewMemoryStore()
	seedDemo(store)
	cache := catalog.NewCache(store, nil, log)
	if _, err := cache.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	ev := &recordingEvents{}
	hub := notify.NewWSHub(log)
	s := NewServer(Deps{
		Catalog: cache,
		Routes:  store,
		Rides:   &matcher.Service{Catalog: cache, Rides: store},
		Booking: &booking.Service{
			Orders:   store,
			Rides:    store,
			Catalog:  cache,
			Notifier: hub,
			Events:   ev,
			Log:      log,
		},
		Events: ev,
		Hub:    hub,
		Limits: route.Limits{MinStations: 2, MinCarriages: 1},
		Log:    log,
	})
	return s, ev
}

func do(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestStationSearch(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, "GET", "/api/v1/stations?q=LEIP", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var got []models.Station
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].City != "Leipzig" {
		t.Fatalf("unexpected stations %+v", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
}

func TestNextStations(t *testing.T) {
	s, _ := newTestServer(t)
	var got []models.Station
	w := do(t, s, "GET", "/api/v1/stations/2/next", "")
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected candidates %+v", got)
	}

	w = do(t, s, "GET", "/api/v1/stations/99/next", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
}

func TestCreateRoute(t *testing.T) {
	s, ev := newTestServer(t)

	w := do(t, s, "POST", "/api/v1/routes", `{"path":[1,3],"carriages":["C1"]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-adjacent hop: expected 422, got %d %s", w.Code, w.Body.String())
	}
	w = do(t, s, "POST", "/api/v1/routes", `{"path":[1],"carriages":["C1"]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short route: expected 422, got %d", w.Code)
	}

	w = do(t, s, "POST", "/api/v1/routes", `{"path":[3,2,1],"carriages":["S1","C1"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	var created models.Route
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 2 {
		t.Fatalf("unexpected id %d", created.ID)
	}
	if len(ev.changes) != 1 || ev.changes[0].ID != 2 {
		t.Fatalf("expected catalog change event, got %+v", ev.changes)
	}

	var summaries []route.Summary
	w = do(t, s, "GET", "/api/v1/routes", "")
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 || strings.Join(summaries[1].Stations, ",") != "Munich,Leipzig,Berlin" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
}

func TestRideDetail(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, "GET", "/api/v1/rides/1?from=2&to=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d %s", w.Code, w.Body.String())
	}
	var d matcher.RideDetail
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if len(d.Carriages) != 2 || d.TotalSeats != 96 {
		t.Fatalf("unexpected detail %+v", d)
	}
	if len(d.Fares) != 2 || d.Fares[0].Code != "C1" || d.Fares[0].Price != 4900 {
		t.Fatalf("unexpected fares %+v", d.Fares)
	}

	if w := do(t, s, "GET", "/api/v1/rides/42", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestOrderOutcomes(t *testing.T) {
	s, ev := newTestServer(t)

	w := do(t, s, "POST", "/api/v1/rides/1/orders", `{"seat":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	w = do(t, s, "POST", "/api/v1/rides/1/orders", `{"seat":5}`)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "Seat is already booked") {
		t.Fatalf("expected conflict, got %d %s", w.Code, w.Body.String())
	}
	w = do(t, s, "POST", "/api/v1/rides/1/orders", `{"seat":5,"stationStart":2,"stationEnd":2}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = do(t, s, "POST", "/api/v1/rides/1/orders", `{"seat":6,"stationStart":2,"stationEnd":99}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("off-route station: expected 400, got %d", w.Code)
	}
	if len(ev.bookings) != 2 || !ev.bookings[0].Success || ev.bookings[1].Success {
		t.Fatalf("unexpected booking events %+v", ev.bookings)
	}
}

func TestReload(t *testing.T) {
	s, _ := newTestServer(t)
	before := s.Catalog.Current().Version
	w := do(t, s, "POST", "/internal/catalog/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if s.Catalog.Current().Version != before+1 {
		t.Fatalf("expected version bump")
	}
}

func TestReloadWithReset(t *testing.T) {
	s, _ := newTestServer(t)
	before := s.Catalog.Current()
	w := do(t, s, "POST", "/internal/catalog/reload?reset=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d %s", w.Code, w.Body.String())
	}
	after := s.Catalog.Current()
	if after.Version != before.Version+2 {
		t.Fatalf("expected reset and load to bump the version twice, got %d -> %d", before.Version, after.Version)
	}
	if len(after.Stations) != len(before.Stations) || len(after.Routes) != len(before.Routes) {
		t.Fatalf("reload after reset lost data: %+v", after)
	}
}

func TestOrderNotificationReachesClient(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notifications/abc"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/v1/rides/1/orders", bytes.NewBufferString(`{"seat":9}`))
	req.Header.Set("X-Client-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env notify.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "notification" || !env.Success || env.Message != "Success!" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
