package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/backend"
	"github.com/example/train-booking/internal/catalog"
	"github.com/example/train-booking/internal/config"
	"github.com/example/train-booking/internal/logging"
	"github.com/example/train-booking/internal/models"
	"github.com/example/train-booking/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total catalog change messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	snapshotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_updates_total",
		Help: "Total successful catalog snapshot writes",
	})
	snapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_errors_total",
		Help: "Total failed catalog reloads or snapshot writes",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, snapshotUpdates, snapshotErrors)
}

var CLI struct {
	Config      string `help:"Optional YAML config file, overridden by environment variables." type:"path"`
	MetricsAddr string `help:"Address to serve prometheus metrics on." default:":2112"`
}

func main() {
	kong.Parse(&CLI)

	cfg, err := config.LoadConsumerConfig(CLI.Config)
	log := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	snapshots := storage.NewRedisSnapshot(cfg.RedisAddr, cfg.RedisPass, cfg.SnapshotKey, cfg.SnapshotTTL)
	cache := catalog.NewCache(backend.NewClient(cfg.BackendURL, cfg.BackendToken, 0), nil, log)

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := snapshots.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.WithField("addr", CLI.MetricsAddr).Info("metrics/health listening")
		if err := http.ListenAndServe(CLI.MetricsAddr, mux); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.Topic, GroupID: cfg.Group, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = snapshots.Close()
	}()

	log.WithFields(logrus.Fields{"topic": cfg.Topic, "brokers": cfg.KafkaBrokers, "group": cfg.Group}).Info("consumer listening")

	readBackoff := backoff.NewExponentialBackOff()
	readBackoff.InitialInterval = time.Second
	readBackoff.MaxInterval = 30 * time.Second
	readBackoff.MaxElapsedTime = 0

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down consumer")
				return
			}
			wait := readBackoff.NextBackOff()
			log.WithError(err).WithField("backoff", wait).Warn("kafka read error")
			if !sleepCtx(ctx, wait) {
				log.Info("shutting down consumer")
				return
			}
			continue
		}
		readBackoff.Reset()
		msgsConsumed.Inc()

		var change models.CatalogChange
		if err := json.Unmarshal(m.Value, &change); err != nil || change.Kind == "" {
			msgsInvalid.Inc()
			log.WithField("offset", m.Offset).Warn("invalid catalog change message")
			continue
		}

		if err := refresh(ctx, cache, snapshots, cfg.Attempts, cfg.RetryDelay); err != nil {
			snapshotErrors.Inc()
			log.WithError(err).WithFields(logrus.Fields{"kind": change.Kind, "id": change.ID}).Warn("snapshot refresh failed")
			continue
		}
		snapshotUpdates.Inc()
		log.WithFields(logrus.Fields{"kind": change.Kind, "id": change.ID, "version": cache.Current().Version}).Info("catalog snapshot refreshed")
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Loader produces a fresh catalog snapshot.
type Loader interface {
	Load(ctx context.Context) (catalog.Snapshot, error)
}

// SnapshotWriter is the subset of the redis snapshot store the consumer
// needs; tests provide a fake.
type SnapshotWriter interface {
	Save(ctx context.Context, s catalog.Snapshot) error
}

// refresh reloads the catalog and stores it. An incomplete load is not
// written so a backend outage never replaces a good snapshot.
func refresh(ctx context.Context, l Loader, w SnapshotWriter, attempts int, delay time.Duration) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return err
	}
	return saveWithRetry(ctx, w, snap, attempts, delay)
}

// saveWithRetry writes s, retrying with exponential backoff up to attempts
// times in total.
func saveWithRetry(ctx context.Context, w SnapshotWriter, s catalog.Snapshot, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		return errors.New("attempts must be positive")
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
	return backoff.Retry(func() error { return w.Save(ctx, s) }, policy)
}
