// Package client is a small HTTP client for the master's query API, shared by
// the status command, the TUI and the data logger.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/user/gridpulse/internal/model"
)

// Client talks to one master instance.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the master at baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Status fetches the aggregate system snapshot.
func (c *Client) Status(ctx context.Context) (model.SystemStatus, error) {
	var out model.SystemStatus
	err := c.get(ctx, "/api/status", &out)
	return out, err
}

// Outstation fetches full detail for one outstation.
func (c *Client) Outstation(ctx context.Context, id int) (model.OutstationStatus, error) {
	var out model.OutstationStatus
	err := c.get(ctx, fmt.Sprintf("/api/outstation/%d", id), &out)
	return out, err
}

// Measurements is the paginated history payload.
type Measurements struct {
	OutstationID int                 `json:"outstation_id"`
	TotalRecords int                 `json:"total_records"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
	Measurements []model.Measurement `json:"measurements"`
}

// History fetches measurement history, newest first.
func (c *Client) History(ctx context.Context, id, limit, offset int) (Measurements, error) {
	var out Measurements
	err := c.get(ctx, fmt.Sprintf("/api/measurements/%d?limit=%d&offset=%d", id, limit, offset), &out)
	return out, err
}

// Health checks master liveness.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/health", &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("master reports status %q", out.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("master unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("master returned %s for %s", resp.Status, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
