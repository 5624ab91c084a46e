package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OneClickClient wraps the 1Click SDK for the token list crosschain routes settle through
type OneClickClient struct {
	client *oneclick.APIClient
	token  string
}

// NewOneClickClient creates a 1Click API client. baseURL overrides the SDK default when set.
func NewOneClickClient(jwtToken, baseURL string) *OneClickClient {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	return &OneClickClient{
		client: oneclick.NewAPIClient(config),
		token:  jwtToken,
	}
}

func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// GetSupportedTokens retrieves all tokens 1Click can route
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		if apiErr := oneClickError(httpResp); apiErr != nil {
			return nil, fmt.Errorf("failed to get tokens: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: httpResp.StatusCode, Message: "unexpected status"}
	}

	return resp, nil
}

// oneClickError extracts the server message from a failed SDK call
func oneClickError(httpResp *http.Response) error {
	if httpResp == nil {
		return nil
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil || len(bodyBytes) == 0 {
		return &APIError{StatusCode: httpResp.StatusCode, Message: http.StatusText(httpResp.StatusCode)}
	}

	var errorResp map[string]any
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return &APIError{StatusCode: httpResp.StatusCode, Message: message}
		}
	}
	return &APIError{StatusCode: httpResp.StatusCode, Message: errorMessage(bodyBytes)}
}
