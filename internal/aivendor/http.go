package aivendor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// HTTPClient calls a JSON-over-HTTP vendor API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a vendor client for the given endpoint.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// GenerateTags implements Client.
func (c *HTTPClient) GenerateTags(ctx context.Context, req Request) ([]string, error) {
	var resp struct {
		Tags []string `json:"tags"`
	}
	if err := c.call(ctx, "tag", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// GenerateMetadata implements Client.
func (c *HTTPClient) GenerateMetadata(ctx context.Context, req Request) (*Metadata, error) {
	var resp Metadata
	if err := c.call(ctx, "metadata", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SuggestMetadata implements Client.
func (c *HTTPClient) SuggestMetadata(ctx context.Context, req Request) (*Metadata, error) {
	var resp Metadata
	if err := c.call(ctx, "suggest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) call(ctx context.Context, operation string, req Request, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	url := c.baseURL + "/v1/" + operation
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.AICallsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("ai vendor %s call failed: %w", operation, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("failed to close ai vendor response body: %v", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusPaymentRequired:
		metrics.AICallsTotal.WithLabelValues(operation, "quota").Inc()
		return fmt.Errorf("ai vendor %s rejected: %w", operation, ErrQuotaExceeded)
	case resp.StatusCode != http.StatusOK:
		metrics.AICallsTotal.WithLabelValues(operation, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ai vendor %s returned status %d: %s", operation, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.AICallsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	metrics.AICallsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}
