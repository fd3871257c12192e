package dash

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cad-sentinel/internal/monitor"
)

// Client fetches security metrics from the monitoring service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetSecurityMetrics fetches the metrics rollup for the given range.
func (c *Client) GetSecurityMetrics(r monitor.Range) (*monitor.SecurityMetrics, error) {
	url := fmt.Sprintf("%s/api/v1/metrics/security?range=%s", c.baseURL, r)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var metrics monitor.SecurityMetrics
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &metrics, nil
}

// Healthy reports whether the service health endpoint answers OK.
func (c *Client) Healthy() bool {
	resp, err := c.httpClient.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
