package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recorder struct {
	calls []Message
	err   error
}

func (r *recorder) Notify(ctx context.Context, success bool, message string) error {
	r.calls = append(r.calls, Message{Success: success, Message: message})
	return r.err
}

func TestMultiDeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("boom")}
	err := Multi{a, Log{Logger: quietLogger()}, b}.Notify(context.Background(), false, "Failed! no seats")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.calls) != 1 || len(b.calls) != 1 || a.calls[0].Success {
		t.Fatalf("unexpected calls %+v %+v", a.calls, b.calls)
	}
}

func TestWebhookPostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := WithClient(context.Background(), "c1")
	if err := NewWebhook(srv.URL).Notify(ctx, true, "Success!"); err != nil {
		t.Fatal(err)
	}
	if got["client_id"] != "c1" || got["success"] != true || got["message"] != "Success!" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhook(srv.URL).Notify(context.Background(), true, "x"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestWSHubTargetsClient(t *testing.T) {
	hub := NewWSHub(quietLogger())
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go hub.Serve(r.URL.Query().Get("id"), conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?id=c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ctx := WithClient(context.Background(), "c1")
	if err := hub.Notify(ctx, false, "Failed! Seat is already booked"); err != nil {
		t.Fatal(err)
	}
	var env Envelope
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "notification" || env.Success || env.Message != "Failed! Seat is already booked" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	if err := hub.Notify(WithClient(context.Background(), "other"), true, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
