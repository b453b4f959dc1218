package notify

import (
	"context"
	"fmt"

	"github.com/gregdel/pushover"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/observability"
)

const (
	PriorityNormal = 0
	PriorityHigh   = 1
)

// Pushover forwards notifications to an operator's pushover account.
// Failures are sent with high priority.
type Pushover struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	logger    *logrus.Logger
}

func NewPushover(token, userKey string, logger *logrus.Logger) *Pushover {
	return &Pushover{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
		logger:    logger,
	}
}

func (p *Pushover) Notify(ctx context.Context, success bool, message string) error {
	title, priority := "Booking confirmed", PriorityNormal
	if !success {
		title, priority = "Booking failed", PriorityHigh
	}
	msg := pushover.NewMessageWithTitle(message, title)
	msg.Priority = priority

	resp, err := p.app.SendMessage(msg, p.recipient)
	if err != nil {
		return fmt.Errorf("sending pushover notification: %w", err)
	}
	observability.Notifications.WithLabelValues("pushover").Inc()

	p.logger.WithFields(logrus.Fields{
		"title":      title,
		"status":     resp.Status,
		"request_id": resp.ID,
	}).Debug("notification sent")
	return nil
}
