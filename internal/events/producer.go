package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/train-booking/internal/models"
)

const (
	DefaultCatalogTopic = "catalog-changes"
	DefaultBookingTopic = "bookings"
)

// Publisher announces catalog mutations and booking outcomes.
type Publisher interface {
	PublishCatalogChange(ctx context.Context, c models.CatalogChange) error
	PublishBooking(ctx context.Context, e models.BookingEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer       messageWriter
	catalogTopic string
	bookingTopic string
}

func NewKafkaProducer(brokers []string, catalogTopic, bookingTopic string) *KafkaProducer {
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Balancer: &kafka.LeastBytes{}, AllowAutoTopicCreation: true}
	return newProducer(w, catalogTopic, bookingTopic)
}

func newProducer(w messageWriter, catalogTopic, bookingTopic string) *KafkaProducer {
	if catalogTopic == "" {
		catalogTopic = DefaultCatalogTopic
	}
	if bookingTopic == "" {
		bookingTopic = DefaultBookingTopic
	}
	return &KafkaProducer{writer: w, catalogTopic: catalogTopic, bookingTopic: bookingTopic}
}

func (k *KafkaProducer) PublishCatalogChange(ctx context.Context, c models.CatalogChange) error {
	return k.publish(ctx, k.catalogTopic, c.Kind, c)
}

func (k *KafkaProducer) PublishBooking(ctx context.Context, e models.BookingEvent) error {
	return k.publish(ctx, k.bookingTopic, strconv.Itoa(e.Order.RideID), e)
}

func (k *KafkaProducer) publish(ctx context.Context, topic, key string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishCatalogChange(context.Context, models.CatalogChange) error { return nil }
func (Nop) PublishBooking(context.Context, models.BookingEvent) error        { return nil }
