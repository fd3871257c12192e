package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookDispatcher sends alerts via HTTP webhook. It is the simplest real
// transport a deployment can hang behind the Dispatcher interface.
type WebhookDispatcher struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookDispatcher creates a new webhook dispatcher.
func NewWebhookDispatcher(name, url string, headers map[string]string) *WebhookDispatcher {
	return &WebhookDispatcher{
		name:    name,
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookDispatcher) Name() string {
	return w.name
}

func (w *WebhookDispatcher) Send(ctx context.Context, alert *Alert) (DeliveryResult, error) {
	result := DeliveryResult{Channel: w.name}

	payload, err := json.Marshal(alert)
	if err != nil {
		return result, fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return result, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	result.Delivered = true
	return result, nil
}
