// Package processor implements the client for the external payment processor.
// GateFlow never touches card data; charges and refunds are delegated here.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for processor operations.
var (
	// ErrChargeDeclined is returned when the processor rejects the charge.
	ErrChargeDeclined = errors.New("charge declined")
	// ErrRefundRejected is returned when the processor rejects the refund.
	ErrRefundRejected = errors.New("refund rejected")
	// ErrProcessorUnavailable is returned on transport failures or 5xx responses.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
)

// DeclineError wraps ErrChargeDeclined with the processor's reason.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("charge declined: %s", e.Reason)
}

func (e *DeclineError) Unwrap() error {
	return ErrChargeDeclined
}

// ChargeRequest describes a charge to create.
type ChargeRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	Description   string `json:"description,omitempty"`
	// IdempotencyKey makes retried charges safe. GateFlow uses the
	// payment ID so one payment can never charge twice.
	IdempotencyKey string `json:"-"`
}

// ChargeResult is the processor's response to a successful charge.
type ChargeResult struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

// RefundResult is the processor's response to a refund.
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// processorError is the processor's error envelope.
type processorError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the external payment processor API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a processor client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger.With("component", "processor.client"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Charge creates a charge. A decline comes back as *DeclineError;
// transport failures and 5xx responses come back as ErrProcessorUnavailable
// so callers can distinguish "failed payment" from "unknown outcome".
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create charge request: %w", err)
	}
	c.setHeaders(httpReq, req.IdempotencyKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("charge request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("charge request completed",
		"http_status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result ChargeResult
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode charge response: %w", err)
		}
		return &result, nil

	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &DeclineError{Reason: readErrorMessage(resp.Body)}

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrProcessorUnavailable, resp.StatusCode)

	default:
		return nil, fmt.Errorf("processor returned HTTP %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}
}

// Refund refunds a charge in full.
func (c *Client) Refund(ctx context.Context, chargeID string) (*RefundResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/charges/"+chargeID+"/refund", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, fmt.Errorf("create refund request: %w", err)
	}
	c.setHeaders(httpReq, "refund-"+chargeID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("refund request failed", "charge_id", chargeID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result RefundResult
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode refund response: %w", err)
		}
		return &result, nil

	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrRefundRejected, readErrorMessage(resp.Body))

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrProcessorUnavailable, resp.StatusCode)

	default:
		return nil, fmt.Errorf("processor returned HTTP %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}
}

func (c *Client) setHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "GateFlow/1.0")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func readErrorMessage(body io.Reader) string {
	var perr processorError
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&perr); err != nil || perr.Error.Message == "" {
		return "unknown error"
	}
	return perr.Error.Message
}
