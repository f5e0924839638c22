// Package feed connects the dashboard core to the collector backend:
// a REST client for snapshot pulls, a websocket subscriber for push
// updates, and a fixed-interval poller as a consistency backstop.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// Client wraps the collector backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a backend API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FetchDevices retrieves the full device list snapshot.
func (c *Client) FetchDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := c.getJSON(ctx, "/devices", &devices); err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	return devices, nil
}

// FetchHierarchy retrieves the backend's pre-aggregated status tree.
func (c *Client) FetchHierarchy(ctx context.Context) (*models.FleetSnapshot, error) {
	var snap models.FleetSnapshot
	if err := c.getJSON(ctx, "/device-status-hierarchy", &snap); err != nil {
		return nil, fmt.Errorf("fetch hierarchy: %w", err)
	}
	return &snap, nil
}

// FetchAlertSummary retrieves alert counts by severity.
func (c *Client) FetchAlertSummary(ctx context.Context) (*models.AlertSummary, error) {
	var sum models.AlertSummary
	if err := c.getJSON(ctx, "/alerts-summary", &sum); err != nil {
		return nil, fmt.Errorf("fetch alert summary: %w", err)
	}
	return &sum, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
