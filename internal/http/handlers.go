package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/backend"
	"github.com/example/train-booking/internal/booking"
	"github.com/example/train-booking/internal/catalog"
	"github.com/example/train-booking/internal/events"
	"github.com/example/train-booking/internal/graph"
	"github.com/example/train-booking/internal/matcher"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/notify"
	"github.com/example/train-booking/internal/observability"
	"github.com/example/train-booking/internal/route"
	"github.com/example/train-booking/internal/search"
	"github.com/example/train-booking/internal/storage"
)

// RouteCreator persists a finalized route and returns it with its id.
type RouteCreator interface {
	CreateRoute(ctx context.Context, r models.Route) (models.Route, error)
}

// Deps are the collaborators of the API. Only Catalog and Log are required.
type Deps struct {
	Catalog     *catalog.Cache
	Routes      RouteCreator
	Rides       *matcher.Service
	Booking     *booking.Service
	Events      events.Publisher
	Hub         *notify.WSHub
	Limits      route.Limits
	CORSOrigins []string
	Log         *logrus.Logger
}

type Server struct {
	Catalog *catalog.Cache
	Routes  RouteCreator
	Rides   *matcher.Service
	Booking *booking.Service
	Events  events.Publisher
	Hub     *notify.WSHub
	Limits  route.Limits

	logger   *logrus.Logger
	origins  []string
	mux      *mux.Router
	handler  http.Handler
	upgrader websocket.Upgrader
	closers  []func() error
}

func NewServer(d Deps) *Server {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Hub == nil {
		d.Hub = notify.NewWSHub(d.Log)
	}
	if d.Limits == (route.Limits{}) {
		d.Limits = route.DefaultLimits
	}
	s := &Server{
		Catalog: d.Catalog,
		Routes:  d.Routes,
		Rides:   d.Rides,
		Booking: d.Booking,
		Events:  d.Events,
		Hub:     d.Hub,
		Limits:  d.Limits,
		logger:  d.Log,
		origins: d.CORSOrigins,
		mux:     mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.registerMiddleware()
	s.routes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Client-ID"},
	}).Handler(s.mux)
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/stations", s.handleStations).Methods("GET")
	api.HandleFunc("/stations/asymmetric", s.handleAsymmetric).Methods("GET")
	api.HandleFunc("/stations/{id:[0-9]+}/next", s.handleNextStations).Methods("GET")
	api.HandleFunc("/routes", s.handleListRoutes).Methods("GET")
	api.HandleFunc("/routes", s.handleCreateRoute).Methods("POST")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/rides/{id:[0-9]+}", s.handleRide).Methods("GET")
	api.HandleFunc("/rides/{id:[0-9]+}/orders", s.handleOrder).Methods("POST")

	s.mux.HandleFunc("/internal/catalog/reload", s.handleReload).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/notifications/{client_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }

// Start loads the catalog in the background and announces every new
// snapshot version to websocket clients. A positive refresh reloads the
// catalog periodically. It returns immediately.
func (s *Server) Start(ctx context.Context, refresh time.Duration) {
	ch, unsubscribe := s.Catalog.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-ch:
				s.Hub.Broadcast(notify.Envelope{Type: "catalog", Version: snap.Version})
			}
		}
	}()

	go func() {
		if _, err := s.Catalog.Load(ctx); err != nil {
			s.logger.WithError(err).Warn("initial catalog load incomplete")
		}
		if refresh <= 0 {
			return
		}
		t := time.NewTicker(refresh)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = s.Catalog.Load(ctx)
			}
		}
	}()
}

// Close releases the clients opened by NewServerFromConfig.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations := search.Filter(r.URL.Query().Get("q"), s.Catalog.Current().Stations)
	if stations == nil {
		stations = []models.Station{}
	}
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) handleNextStations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid station id")
		return
	}
	writeJSON(w, http.StatusOK, graph.Adjacent(id, s.Catalog.Current().Stations))
}

func (s *Server) handleAsymmetric(w http.ResponseWriter, r *http.Request) {
	edges := graph.Asymmetric(s.Catalog.Current().Stations)
	if edges == nil {
		edges = []graph.Edge{}
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	snap := s.Catalog.Current()
	writeJSON(w, http.StatusOK, route.SummarizeAll(snap.Routes, snap.Stations, snap.Carriages))
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	if s.Routes == nil {
		writeError(w, http.StatusServiceUnavailable, "route storage not configured")
		return
	}
	var req models.Route
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := s.Catalog.Current()
	b, err := route.FromRoute(req, snap.Stations, snap.Carriages, s.Limits)
	if err == nil {
		req, err = b.Finalize()
	}
	if err != nil {
		observability.RoutesSubmitted.WithLabelValues("invalid").Inc()
		writeError(w, statusFor(err), err.Error())
		return
	}

	created, err := s.Routes.CreateRoute(r.Context(), req)
	if err != nil {
		observability.RoutesSubmitted.WithLabelValues("failed").Inc()
		s.logger.WithError(err).Warn("create route failed")
		writeError(w, http.StatusBadGateway, backend.Message(err))
		return
	}
	observability.RoutesSubmitted.WithLabelValues("ok").Inc()

	if err := s.Events.PublishCatalogChange(r.Context(), models.CatalogChange{Kind: "route", ID: created.ID}); err != nil {
		s.logger.WithError(err).Warn("publish catalog change failed")
	}
	if _, err := s.Catalog.Load(r.Context()); err != nil {
		s.logger.WithError(err).Warn("catalog reload after route create incomplete")
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, errFrom := strconv.Atoi(q.Get("from"))
	to, errTo := strconv.Atoi(q.Get("to"))
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "from and to must be station ids")
		return
	}
	when := time.Now()
	if v := q.Get("time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "time must be RFC3339")
			return
		}
		when = t
	}
	stations := s.Catalog.Current().Stations
	a, okA := graph.Find(from, stations)
	b, okB := graph.Find(to, stations)
	if !okA || !okB {
		writeError(w, http.StatusNotFound, "unknown station")
		return
	}
	writeJSON(w, http.StatusOK, search.Query(a, b, when))
}

func (s *Server) handleRide(w http.ResponseWriter, r *http.Request) {
	if s.Rides == nil {
		writeError(w, http.StatusServiceUnavailable, "ride lookup not configured")
		return
	}
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	from, to, ok := stationParams(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to must be station ids")
		return
	}
	detail, err := s.Rides.RideDetail(r.Context(), id, from, to)
	if err != nil {
		writeError(w, statusFor(err), backend.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if s.Booking == nil {
		writeError(w, http.StatusServiceUnavailable, "booking not configured")
		return
	}
	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.RideID, _ = strconv.Atoi(mux.Vars(r)["id"])

	ctx := notify.WithClient(r.Context(), r.Header.Get("X-Client-ID"))
	res, err := s.Booking.Book(ctx, req)
	if err != nil {
		msg := backend.Message(err)
		if errors.Is(err, booking.ErrRejected) && res.Message != "" {
			msg = res.Message
		}
		writeError(w, statusFor(err), msg)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleReload reloads the catalog. With reset=true the current snapshot is
// dropped first so a failed load leaves nothing stale behind.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("reset") == "true" {
		s.Catalog.Invalidate()
	}
	snap, err := s.Catalog.Load(r.Context())
	resp := map[string]any{
		"version":   snap.Version,
		"stations":  len(snap.Stations),
		"carriages": len(snap.Carriages),
		"routes":    len(snap.Routes),
	}
	if err != nil {
		resp["error"] = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["client_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).WithField("client_id", id).Debug("ws upgrade failed")
		return
	}
	s.Hub.Serve(id, conn)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// stationParams reads the optional from/to query parameters. Missing values
// are zero.
func stationParams(r *http.Request) (from, to int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	return from, to, true
}

func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case route.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
