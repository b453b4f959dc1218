package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/train-booking/internal/observability"
)

// Webhook posts notifications as JSON to an HTTP endpoint.
type Webhook struct {
	Endpoint string // e.g. provider HTTP endpoint
	Client   *http.Client
}

func NewWebhook(endpoint string) *Webhook {
	return &Webhook{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (w *Webhook) Notify(ctx context.Context, success bool, message string) error {
	b, err := json.Marshal(map[string]any{"client_id": ClientFrom(ctx), "success": success, "message": message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	observability.Notifications.WithLabelValues("webhook").Inc()
	return nil
}
