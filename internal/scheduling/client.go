// Package scheduling talks to the external scheduling provider that owns
// the actual calendar slots and the client book. Bookings reference its
// holds by an opaque id created upstream.
package scheduling

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

const defaultTimeout = 15 * time.Second

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// ConfirmHold turns the provider-side hold into a firm appointment. The
// metadata carries the payment reference for cross-system correlation.
func (c *Client) ConfirmHold(ctx context.Context, holdID string, metadata map[string]string) error {
	body := map[string]any{"metadata": metadata}
	return c.post(ctx, fmt.Sprintf("/holds/%s/confirm", holdID), body)
}

// CancelHold releases the provider-side slot. Callers on the cancellation
// path treat a failure here as best-effort: the ledger stays authoritative.
func (c *Client) CancelHold(ctx context.Context, holdID string) error {
	return c.post(ctx, fmt.Sprintf("/holds/%s/cancel", holdID), nil)
}

// Reschedule moves a confirmed hold to a new slot.
func (c *Client) Reschedule(ctx context.Context, holdID string, newStart, newEnd time.Time) error {
	body := map[string]any{
		"start": newStart.UTC().Format(time.RFC3339),
		"end":   newEnd.UTC().Format(time.RFC3339),
	}
	return c.post(ctx, fmt.Sprintf("/holds/%s/reschedule", holdID), body)
}

// ClientRecord is the provider-side view of a customer.
type ClientRecord struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Marketing bool   `json:"marketing"`
}

// SyncClient upserts the customer into the provider's client book and
// returns the provider's client reference.
func (c *Client) SyncClient(ctx context.Context, rec ClientRecord) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/clients", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("scheduling sync client: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", statusError("sync client", res)
	}

	var out struct {
		ClientRef string `json:"client_ref"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("scheduling sync client: decode: %w", err)
	}
	return out.ClientRef, nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, reader)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(path, res)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func statusError(op string, res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("scheduling %s: status %d: %s", op, res.StatusCode, bytes.TrimSpace(b))
}
