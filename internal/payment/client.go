package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusChecker issues a single order-status request.
type StatusChecker interface {
	CheckStatus(ctx context.Context, orderID string) (OrderStatus, error)
}

// Client is the upstream payment provider API.
type Client interface {
	StatusChecker
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
}

type CreateOrderRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
}

// StatusError is a non-200 response from the provider. Every HTTP error is
// terminal for a poll session; there is no retry tier.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
}

type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewHTTPClient builds a provider client with a per-request timeout.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := c.post(ctx, "/payments/orders", req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("provider response missing order_id")
	}
	return &resp, nil
}

type orderStatusRequest struct {
	OrderID string `json:"order_id"`
}

type orderStatusResponse struct {
	State string `json:"state"`
}

func (c *httpClient) CheckStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	var resp orderStatusResponse
	if err := c.post(ctx, "/payments/order-status", orderStatusRequest{OrderID: orderID}, &resp); err != nil {
		return StatusUnknown, err
	}
	return ParseOrderStatus(resp.State), nil
}

func (c *httpClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
