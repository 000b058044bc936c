package analytics

import (
	"testing"
	"time"
)

func validPayload() PaymentEventPayload {
	return PaymentEventPayload{
		PaymentID:   "01JD0000000000000000000001",
		ProductID:   "01JD0000000000000000000002",
		Kind:        KindSucceeded,
		AmountCents: 4900,
		Currency:    "USD",
		OccurredAt:  time.Now().UnixMilli(),
	}
}

func TestValidatePaymentEventPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*PaymentEventPayload)
		wantErr bool
	}{
		{
			name:    "valid succeeded event",
			mutate:  func(p *PaymentEventPayload) {},
			wantErr: false,
		},
		{
			name:    "valid refunded event",
			mutate:  func(p *PaymentEventPayload) { p.Kind = KindRefunded },
			wantErr: false,
		},
		{
			name:    "missing payment id",
			mutate:  func(p *PaymentEventPayload) { p.PaymentID = "" },
			wantErr: true,
		},
		{
			name:    "missing product id",
			mutate:  func(p *PaymentEventPayload) { p.ProductID = "" },
			wantErr: true,
		},
		{
			name:    "unknown kind",
			mutate:  func(p *PaymentEventPayload) { p.Kind = "chargeback" },
			wantErr: true,
		},
		{
			name:    "negative amount",
			mutate:  func(p *PaymentEventPayload) { p.AmountCents = -1 },
			wantErr: true,
		},
		{
			name:    "zero amount allowed",
			mutate:  func(p *PaymentEventPayload) { p.AmountCents = 0 },
			wantErr: false,
		},
		{
			name:    "unsupported currency",
			mutate:  func(p *PaymentEventPayload) { p.Currency = "XYZ" },
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			mutate:  func(p *PaymentEventPayload) { p.OccurredAt = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := validPayload()
			tt.mutate(&payload)

			err := ValidatePaymentEventPayload(payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePaymentEventPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
