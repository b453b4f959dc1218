package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/observability"
)

// Notifier tells the user how an operation ended.
type Notifier interface {
	Notify(ctx context.Context, success bool, message string) error
}

// Message is the payload pushed to clients.
type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type clientKey struct{}

// WithClient scopes notifications in ctx to one connected client.
func WithClient(ctx context.Context, clientID string) context.Context {
	if clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey{}, clientID)
}

func ClientFrom(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey{}).(string); ok {
		return v
	}
	return ""
}

// Log writes notifications to the logger. It never fails.
type Log struct {
	Logger *logrus.Logger
}

func (l Log) Notify(ctx context.Context, success bool, message string) error {
	entry := l.Logger.WithFields(logrus.Fields{"success": success, "client_id": ClientFrom(ctx)})
	if success {
		entry.Info(message)
	} else {
		entry.Warn(message)
	}
	observability.Notifications.WithLabelValues("log").Inc()
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, success bool, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, success, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
