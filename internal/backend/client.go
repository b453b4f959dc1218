package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/train-booking/internal/models"
)

// APIError is a non-2xx reply from the backend. Message carries the
// backend's own text so it can be shown to the user unchanged.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Message extracts the user-facing text from err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// Client talks to the catalog and trip services over HTTP.
type Client struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{Endpoint: strings.TrimRight(endpoint, "/"), Token: token, Client: &http.Client{Timeout: timeout}}
}

func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var out []models.Station
	if err := c.do(ctx, http.MethodGet, "/api/station", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Carriages(ctx context.Context) ([]models.Carriage, error) {
	var out []models.Carriage
	if err := c.do(ctx, http.MethodGet, "/api/carriage", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Routes(ctx context.Context) ([]models.Route, error) {
	var out []models.Route
	if err := c.do(ctx, http.MethodGet, "/api/route", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRoute stores a route and returns it with the id assigned by the
// backend.
func (c *Client) CreateRoute(ctx context.Context, r models.Route) (models.Route, error) {
	var out struct {
		ID int `json:"id"`
	}
	body := models.Route{Path: r.Path, Carriages: r.Carriages}
	if err := c.do(ctx, http.MethodPost, "/api/route", body, &out); err != nil {
		return models.Route{}, err
	}
	r.ID = out.ID
	return r, nil
}

func (c *Client) Ride(ctx context.Context, rideID int) (models.Ride, error) {
	var out models.Ride
	if err := c.do(ctx, http.MethodGet, "/api/search/"+strconv.Itoa(rideID), nil, &out); err != nil {
		return models.Ride{}, err
	}
	if out.RideID == 0 {
		out.RideID = rideID
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, o models.Order) (models.OrderResult, error) {
	var out models.OrderResult
	if err := c.do(ctx, http.MethodPost, "/api/order", o, &out); err != nil {
		return models.OrderResult{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
			if json.Unmarshal(b, &payload) == nil {
				apiErr.Message = payload.Message
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
