package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
)

var _ Client = (*RazorpayClient)(nil)

// RazorpayClient talks to the Razorpay orders API. Signature
// verification follows the gateway's fixed scheme: hex HMAC-SHA256 with
// the key secret over "orderID|paymentID".
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
}

// NewRazorpayClient builds a client with a per-attempt timeout and a
// bounded retry count for transient failures.
func NewRazorpayClient(baseURL, keyID, keySecret string, timeout time.Duration, maxRetries int) *RazorpayClient {
	return &RazorpayClient{
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers the order with the gateway. Network errors and
// 5xx responses are retried with doubling backoff; 4xx responses are
// not, since retrying a rejected request cannot succeed.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return "", fmt.Errorf("failed to encode order request: %w", err)
	}

	backoff := 200 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", apperr.Wrap(apperr.TransientGateway, ctx.Err(), "gateway call cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		id, retryable, err := c.createOrderOnce(ctx, body)
		if err == nil {
			return id, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", apperr.Wrap(apperr.TransientGateway, lastErr,
		"payment gateway unreachable, please retry")
}

func (c *RazorpayClient) createOrderOnce(ctx context.Context, body []byte) (string, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out createOrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, fmt.Errorf("failed to decode order response: %w", err)
		}
		if out.ID == "" {
			return "", false, fmt.Errorf("gateway returned an empty order id")
		}
		return out.ID, false, nil
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("gateway returned %d", resp.StatusCode)
	default:
		return "", false, apperr.E(apperr.Validation, "gateway rejected the order (%d)", resp.StatusCode)
	}
}

// VerifySignature checks the hex HMAC-SHA256 of "orderID|paymentID"
// against the posted signature in constant time.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
