// Package crmclient writes enrichment results back to the CRM service over
// its internal surface.
package crmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError reports a non-2xx response from the CRM service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm responded %d: %s", e.StatusCode, e.Body)
}

// Client talks to the CRM internal API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// UpdateCoordinates PATCHes the customer's coordinates. Transport failures
// return as-is; HTTP failures return a *StatusError carrying the code.
func (c *Client) UpdateCoordinates(ctx context.Context, customerID string, lat, lng float64) error {
	body, err := json.Marshal(map[string]float64{
		"latitude":  lat,
		"longitude": lng,
	})
	if err != nil {
		return fmt.Errorf("encode coordinates: %w", err)
	}

	url := fmt.Sprintf("%s/internal/customers/%s/coordinates", c.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("patch coordinates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
