/**
 * @description
 * This package provides a client for the Connector Gateway, the upstream
 * service that fronts the payment providers (Cashfree, Enpay). It
 * encapsulates authenticated HTTP calls for creating payment links and
 * querying provider-side transaction status, with response and error parsing.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the Connector Gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Connector Gateway client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PaymentLinkRequest is the payload for creating a hosted payment link.
type PaymentLinkRequest struct {
	MerchantRef   string `json:"merchant_ref"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Connector     string `json:"connector"`
}

// PaymentLinkResponse is the gateway's response to a payment link request.
type PaymentLinkResponse struct {
	GatewayReference string `json:"gateway_reference"`
	PaymentLink      string `json:"payment_link"`
	Status           string `json:"status"`
}

// StatusResponse is the gateway's view of a transaction's provider-side state.
type StatusResponse struct {
	GatewayReference string `json:"gateway_reference"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
}

// ErrorResponse represents an error from the Connector Gateway API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("gateway api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown gateway api error"
}

// CreatePaymentLink asks the gateway to create a hosted payment link with the
// selected provider.
func (c *Client) CreatePaymentLink(ctx context.Context, linkReq PaymentLinkRequest) (*PaymentLinkResponse, error) {
	body, err := json.Marshal(linkReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/payment-links", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-gateway-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute payment link request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment link response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError("create_payment_link", resp.StatusCode, bodyBytes)
	}

	var linkResp PaymentLinkResponse
	if err := json.Unmarshal(bodyBytes, &linkResp); err != nil {
		return nil, fmt.Errorf("failed to decode payment link response: %w", err)
	}
	if linkResp.GatewayReference == "" {
		return nil, fmt.Errorf("gateway returned no reference for payment link")
	}

	return &linkResp, nil
}

// GetTransactionStatus fetches the provider-side status for a gateway
// reference, used for manual verification against webhook-delivered state.
func (c *Client) GetTransactionStatus(ctx context.Context, gatewayReference string) (*StatusResponse, error) {
	url := c.BaseURL + "/api/v1/transactions/" + gatewayReference + "/status"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-gateway-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute status request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError("get_transaction_status", resp.StatusCode, bodyBytes)
	}

	var statusResp StatusResponse
	if err := json.Unmarshal(bodyBytes, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &statusResp, nil
}

func parseError(op string, statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Errors) == 0 {
		log.Printf("level=warn component=gateway_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, statusCode)
		return fmt.Errorf("gateway request failed (status %d)", statusCode)
	}
	log.Printf("level=warn component=gateway_client op=%s status=%d title=%q detail=%q",
		op, statusCode, errResp.Errors[0].Title, errResp.Errors[0].Detail)
	return &errResp
}
