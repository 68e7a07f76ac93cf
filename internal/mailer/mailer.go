// Package mailer sends transactional email through an HTTP mail API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer is the capability the notify worker depends on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound transactional email.
type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment carries an optional receipt or similar document.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type Client struct {
	baseURL  string
	apiKey   string
	from     string
	fromName string
	http     *http.Client
}

func New(baseURL, apiKey, from, fromName string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(struct {
		From     string `json:"from"`
		FromName string `json:"from_name,omitempty"`
		Message
	}{From: c.from, FromName: c.fromName, Message: msg})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("send mail: status %d: %s", res.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}
