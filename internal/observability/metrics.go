package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogLoadsTotal   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "train_booking", Name: "catalog_loads_total", Help: "Catalog loads by result"}, []string{"result"})
	CatalogLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "train_booking", Name: "catalog_load_duration_seconds", Help: "Catalog load latency seconds"})
	CatalogVersion      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "train_booking", Name: "catalog_version", Help: "Version of the applied catalog snapshot"})

	RoutesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "train_booking", Name: "routes_submitted_total", Help: "Route submissions by result"}, []string{"result"})
	OrdersTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "train_booking", Name: "orders_total", Help: "Order submissions by result"}, []string{"result"})
	Notifications   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "train_booking", Name: "notifications_total", Help: "Notifications delivered by channel"}, []string{"channel"})
	WSSessions      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "train_booking", Name: "ws_sessions", Help: "Connected notification sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "train_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "train_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
