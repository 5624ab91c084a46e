package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"invoice-pay/pkg/types"
)

// APIError is a non-2xx answer from the invoicing server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// InvoiceClient talks to the invoicing server: invoices, routes and payments
type InvoiceClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewInvoiceClient creates a client for the server at baseURL. token is sent
// as a bearer token when set.
func NewInvoiceClient(baseURL, token string, timeout time.Duration) *InvoiceClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InvoiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetInvoiceByID fetches the current server snapshot of an invoice
func (c *InvoiceClient) GetInvoiceByID(ctx context.Context, id string) (*types.Invoice, error) {
	var inv types.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// GetPaymentRoutes lists the routes a wallet can pay an invoice request with
func (c *InvoiceClient) GetPaymentRoutes(ctx context.Context, requestID, wallet string) (*types.RoutesResponse, error) {
	q := url.Values{}
	q.Set("requestId", requestID)
	q.Set("walletAddress", wallet)

	var resp types.RoutesResponse
	if err := c.do(ctx, http.MethodGet, "/invoices/routes?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("invalid routes response: %w", err)
	}
	return &resp, nil
}

// PayRequest asks the server for the transactions or intent that pay a route
func (c *InvoiceClient) PayRequest(ctx context.Context, in types.PayRequestInput) (*types.RawPaymentBundle, error) {
	var bundle types.RawPaymentBundle
	if err := c.do(ctx, http.MethodPost, "/invoices/pay", in, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// SendPaymentIntent submits a signed envelope for a payment intent
func (c *InvoiceClient) SendPaymentIntent(ctx context.Context, sub types.PaymentIntentSubmission) error {
	return c.do(ctx, http.MethodPost, "/invoices/payment-intents", sub, nil)
}

// SetInvoiceAsProcessing tells the server the payer has settled. Idempotent.
func (c *InvoiceClient) SetInvoiceAsProcessing(ctx context.Context, invoiceID string) error {
	return c.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/processing", nil, nil)
}

func (c *InvoiceClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return "empty response"
	}

	var errorResp map[string]any
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if message, ok := errorResp["message"].(string); ok {
			return message
		}
		if message, ok := errorResp["error"].(string); ok {
			return message
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Sprintf("%v", errs)
		}
	}

	return strings.TrimSpace(string(body))
}
