package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/train-booking/internal/models"
)

func TestClientDecodesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing auth header")
		}
		switch r.URL.Path {
		case "/api/station":
			w.Write([]byte(`[{"id":1,"city":"Paris","latitude":48.8,"longitude":2.3,"connectedTo":[{"id":2,"distance":400}]}]`))
		case "/api/carriage":
			w.Write([]byte(`[{"code":"C1","name":"Coach","rows":10,"leftSeats":2,"rightSeats":2}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", time.Second)
	stations, err := c.Stations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stations) != 1 || stations[0].ConnectedTo[0].ID != 2 {
		t.Fatalf("unexpected stations %+v", stations)
	}
	carriages, err := c.Carriages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if carriages[0].Capacity() != 40 {
		t.Fatalf("unexpected capacity %d", carriages[0].Capacity())
	}
}

func TestClientSurfacesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Seat is already booked","reason":"alreadyBooked"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.CreateOrder(context.Background(), models.Order{RideID: 1, Seat: 3})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected APIError, got %v", err)
	}
	if Message(err) != "Seat is already booked" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestClientCreateRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got models.Route
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		if r.Method != http.MethodPost || len(got.Path) != 2 {
			t.Errorf("unexpected request %s %+v", r.Method, got)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12}`))
	}))
	defer srv.Close()

	r, err := NewClient(srv.URL, "", time.Second).CreateRoute(context.Background(), models.Route{Path: []int{1, 2}, Carriages: []string{"C1"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != 12 {
		t.Fatalf("expected id 12, got %d", r.ID)
	}
}

type countingRides struct{ calls int }

func (c *countingRides) Ride(ctx context.Context, rideID int) (models.Ride, error) {
	c.calls++
	if rideID < 0 {
		return models.Ride{}, errors.New("bad ride")
	}
	return models.Ride{RideID: rideID}, nil
}

func TestCachedRides(t *testing.T) {
	src := &countingRides{}
	c := NewCachedRides(src, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := c.Ride(context.Background(), 5); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", src.calls)
	}
	c.Forget(5)
	_, _ = c.Ride(context.Background(), 5)
	if src.calls != 2 {
		t.Fatalf("expected refetch after forget, got %d", src.calls)
	}
	_, _ = c.Ride(context.Background(), -1)
	_, _ = c.Ride(context.Background(), -1)
	if src.calls != 4 {
		t.Fatalf("errors must not be cached, got %d calls", src.calls)
	}
}
