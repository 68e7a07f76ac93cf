// Package calendar is the side-channel that mirrors bookings into staff
// calendars. It is only ever used best-effort after commit.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Event is the calendar body for one booking.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	BookingID   string    `json:"booking_id"`
}

// CreateEvent returns the provider's event id, stored on the booking row so
// cancellations can delete it later.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	res, err := c.do(ctx, http.MethodPost, "/events", ev)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("calendar create event: decode: %w", err)
	}
	return out.ID, nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	res, err := c.do(ctx, http.MethodPut, "/events/"+eventID, ev)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := c.do(ctx, http.MethodDelete, "/events/"+eventID, nil)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar %s %s: %w", method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()
		return nil, fmt.Errorf("calendar %s %s: status %d: %s", method, path, res.StatusCode, bytes.TrimSpace(b))
	}
	return res, nil
}
