package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(server.URL, "sk_test_123", 5*time.Second, logger)
}

func TestCharge_Success(t *testing.T) {
	var gotIdempotencyKey, gotAuth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")

		if r.URL.Path != "/v1/charges" {
			t.Errorf("path = %q, want /v1/charges", r.URL.Path)
		}

		json.NewEncoder(w).Encode(ChargeResult{ChargeID: "ch_123", Status: "succeeded"})
	})

	result, err := client.Charge(context.Background(), ChargeRequest{
		AmountCents:    4900,
		Currency:       "USD",
		CustomerEmail:  "buyer@example.com",
		IdempotencyKey: "pay_abc",
	})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	if result.ChargeID != "ch_123" {
		t.Errorf("ChargeID = %q, want ch_123", result.ChargeID)
	}
	if gotIdempotencyKey != "pay_abc" {
		t.Errorf("Idempotency-Key = %q, want pay_abc", gotIdempotencyKey)
	}
	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestCharge_Declined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"code":"card_declined","message":"insufficient funds"}}`))
	})

	_, err := client.Charge(context.Background(), ChargeRequest{AmountCents: 100, Currency: "USD"})
	if !errors.Is(err, ErrChargeDeclined) {
		t.Fatalf("Charge() error = %v, want ErrChargeDeclined", err)
	}

	var decline *DeclineError
	if !errors.As(err, &decline) {
		t.Fatal("error should be a *DeclineError")
	}
	if decline.Reason != "insufficient funds" {
		t.Errorf("Reason = %q, want %q", decline.Reason, "insufficient funds")
	}
}

func TestCharge_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Charge(context.Background(), ChargeRequest{AmountCents: 100, Currency: "USD"})
	if !errors.Is(err, ErrProcessorUnavailable) {
		t.Fatalf("Charge() error = %v, want ErrProcessorUnavailable", err)
	}
}

func TestRefund_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/charges/ch_123/refund" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(RefundResult{RefundID: "re_456", Status: "refunded"})
	})

	result, err := client.Refund(context.Background(), "ch_123")
	if err != nil {
		t.Fatalf("Refund() error = %v", err)
	}
	if result.RefundID != "re_456" {
		t.Errorf("RefundID = %q, want re_456", result.RefundID)
	}
}

func TestRefund_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"already_refunded","message":"charge already refunded"}}`))
	})

	_, err := client.Refund(context.Background(), "ch_123")
	if !errors.Is(err, ErrRefundRejected) {
		t.Fatalf("Refund() error = %v, want ErrRefundRejected", err)
	}
}
