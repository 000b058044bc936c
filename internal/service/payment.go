package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/analytics"
	"github.com/gateflow/gateflow/internal/metrics"
	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/processor"
	"github.com/gateflow/gateflow/internal/repository"
	"github.com/gateflow/gateflow/internal/webhook"
)

// Payment service errors.
var (
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrProductNotPurchasable = errors.New("product is not purchasable")
	ErrInvalidEmail          = errors.New("invalid customer email")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrPaymentNotRefundable  = errors.New("payment is not refundable")
	ErrProcessorDown         = errors.New("payment processor unavailable")
)

// ChargeClient abstracts the external payment processor.
type ChargeClient interface {
	Charge(ctx context.Context, req processor.ChargeRequest) (*processor.ChargeResult, error)
	Refund(ctx context.Context, chargeID string) (*processor.RefundResult, error)
}

// PaymentService orchestrates checkout: pricing, the processor call,
// coupon redemption, webhook fan-out and analytics events.
type PaymentService struct {
	repo      *repository.Repository
	processor ChargeClient
	hooks     *webhook.Publisher
	events    *analytics.Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	repo *repository.Repository,
	charger ChargeClient,
	hooks *webhook.Publisher,
	events *analytics.Publisher,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *PaymentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PaymentService{
		repo:      repo,
		processor: charger,
		hooks:     hooks,
		events:    events,
		logger:    logger.With("component", "service.payment"),
		metrics:   recorder,
	}
}

// CreatePaymentInput defines input for a checkout.
type CreatePaymentInput struct {
	ProductID     string
	CouponCode    string
	CustomerEmail string
	IncludeBump   bool
}

// Quote is the computed pricing for a checkout.
type Quote struct {
	BaseCents     int64
	DiscountCents int64
	BumpCents     int64
	TotalCents    int64
	Coupon        *model.Coupon
}

// PriceCheckout computes the amount to charge. The discount applies to
// the main product only and floors at zero; the bump price is added on top.
func (s *PaymentService) PriceCheckout(ctx context.Context, product *model.Product, couponCode string, includeBump bool) (*Quote, error) {
	quote := &Quote{BaseCents: product.PriceCents}

	if couponCode != "" {
		coupon, err := s.repo.GetCouponByCode(ctx, couponCode)
		if err != nil {
			if errors.Is(err, repository.ErrCouponNotFound) {
				return nil, ErrCouponNotFound
			}
			return nil, err
		}
		if !coupon.IsRedeemable(product.ID, time.Now()) {
			return nil, ErrCouponNotRedeemable
		}
		quote.Coupon = coupon
		quote.DiscountCents = coupon.DiscountCents(product.PriceCents)
	}

	if includeBump && product.HasBump() {
		quote.BumpCents = product.Bump.PriceCents
	}

	quote.TotalCents = product.PriceCents - quote.DiscountCents
	if quote.TotalCents < 0 {
		quote.TotalCents = 0
	}
	quote.TotalCents += quote.BumpCents

	return quote, nil
}

// CreatePayment runs a checkout end to end.
// The payment row is written before the processor call so the processor
// idempotency key (the payment ID) survives crashes mid-charge.
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*model.Payment, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveCheckoutDuration(time.Since(start))
	}()

	email := strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	product, err := s.repo.GetProductByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.IsPurchasable() {
		return nil, ErrProductNotPurchasable
	}

	quote, err := s.PriceCheckout(ctx, product, input.CouponCode, input.IncludeBump)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:            ulid.Make().String(),
		ProductID:     product.ID,
		CustomerEmail: email,
		AmountCents:   quote.TotalCents,
		Currency:      product.Currency,
		IncludeBump:   input.IncludeBump && product.HasBump(),
		Status:        model.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if quote.Coupon != nil {
		payment.CouponID = &quote.Coupon.ID
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	result, err := s.processor.Charge(ctx, processor.ChargeRequest{
		AmountCents:    payment.AmountCents,
		Currency:       payment.Currency,
		CustomerEmail:  payment.CustomerEmail,
		Description:    product.Name,
		IdempotencyKey: payment.ID,
	})
	if err != nil {
		return s.handleChargeFailure(ctx, payment, err)
	}

	payment.Status = model.PaymentStatusSucceeded
	payment.ProcessorChargeID = result.ChargeID
	if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, payment.Status, payment.ProcessorChargeID, ""); err != nil {
		return nil, fmt.Errorf("failed to record charge outcome: %w", err)
	}

	s.metrics.IncPayment("succeeded")

	// Coupon redemption counts only settled payments. A lost race against
	// the cap is logged, not refunded: the quote was honored at charge time.
	if quote.Coupon != nil {
		if err := s.repo.IncrementCouponRedemption(ctx, quote.Coupon.ID); err != nil {
			s.logger.Warn("coupon redemption increment failed",
				"coupon_id", quote.Coupon.ID,
				"payment_id", payment.ID,
				"error", err,
			)
		} else {
			s.metrics.IncCouponRedeemed()
		}
	}

	s.publishPaymentEvent(ctx, payment, model.EventTypePaymentSucceeded, analytics.KindSucceeded)

	s.logger.Info("payment succeeded",
		"payment_id", payment.ID,
		"product_id", product.ID,
		"amount_cents", payment.AmountCents,
		"currency", payment.Currency,
	)

	return payment, nil
}

// handleChargeFailure records the failed payment and maps processor errors.
func (s *PaymentService) handleChargeFailure(ctx context.Context, payment *model.Payment, chargeErr error) (*model.Payment, error) {
	var decline *processor.DeclineError
	if errors.As(chargeErr, &decline) {
		payment.Status = model.PaymentStatusFailed
		payment.FailureReason = decline.Reason
		if err := s.repo.UpdatePaymentStatus(ctx, payment.ID, payment.Status, "", payment.FailureReason); err != nil {
			s.logger.Error("failed to record declined payment", "payment_id", payment.ID, "error", err)
		}
		s.metrics.IncPayment("failed")
		return payment, fmt.Errorf("%w: %s", ErrPaymentDeclined, decline.Reason)
	}

	// Unknown outcome: leave the payment pending for reconciliation,
	// the idempotency key makes a retried charge safe.
	s.logger.Error("processor charge failed", "payment_id", payment.ID, "error", chargeErr)
	if errors.Is(chargeErr, processor.ErrProcessorUnavailable) {
		return nil, ErrProcessorDown
	}
	return nil, chargeErr
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListPaymentsInput defines input for listing payments.
type ListPaymentsInput struct {
	Status        string
	CustomerEmail string
	ProductID     string
	Cursor        string
	Limit         int
}

// ListPaymentsOutput defines output for listing payments.
type ListPaymentsOutput struct {
	Payments   []*model.Payment
	NextCursor string
	HasMore    bool
}

// ListPayments retrieves a paginated list of payments.
func (s *PaymentService) ListPayments(ctx context.Context, input ListPaymentsInput) (*ListPaymentsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	cursor, err := decodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	filter := repository.PaymentFilter{
		Status:        model.PaymentStatus(input.Status),
		CustomerEmail: input.CustomerEmail,
		ProductID:     input.ProductID,
	}

	payments, hasMore, err := s.repo.ListPayments(ctx, filter, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListPaymentsOutput{Payments: payments, HasMore: hasMore}
	if hasMore && len(payments) > 0 {
		last := payments[len(payments)-1]
		out.NextCursor = repository.EncodeCursor(&repository.PaginationCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return out, nil
}

// RefundPayment refunds a succeeded payment through the processor and
// publishes payment.refunded. Called by the refund-request module.
func (s *PaymentService) RefundPayment(ctx context.Context, id string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if !payment.IsRefundable() {
		return nil, ErrPaymentNotRefundable
	}

	if _, err := s.processor.Refund(ctx, payment.ProcessorChargeID); err != nil {
		if errors.Is(err, processor.ErrProcessorUnavailable) {
			return nil, ErrProcessorDown
		}
		return nil, fmt.Errorf("processor refund: %w", err)
	}

	if err := s.repo.MarkPaymentRefunded(ctx, payment.ID); err != nil {
		return nil, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	payment.Status = model.PaymentStatusRefunded
	now := time.Now().UTC()
	payment.RefundedAt = &now

	s.metrics.IncPayment("refunded")
	s.publishPaymentEvent(ctx, payment, model.EventTypePaymentRefunded, analytics.KindRefunded)

	s.logger.Info("payment refunded",
		"payment_id", payment.ID,
		"amount_cents", payment.AmountCents,
	)

	return payment, nil
}

// publishPaymentEvent fans a settled payment out to webhooks and the
// analytics stream. Both are best effort.
func (s *PaymentService) publishPaymentEvent(ctx context.Context, payment *model.Payment, eventType model.EventType, kind string) {
	if s.hooks != nil {
		data := map[string]any{
			"payment_id":     payment.ID,
			"product_id":     payment.ProductID,
			"amount_cents":   payment.AmountCents,
			"currency":       payment.Currency,
			"customer_email": payment.CustomerEmail,
			"status":         string(payment.Status),
		}
		if err := s.hooks.Publish(ctx, eventType, payment.ID, data); err != nil {
			s.logger.Warn("webhook publish failed",
				"payment_id", payment.ID,
				"event_type", eventType,
				"error", err,
			)
		}
	}

	if s.events != nil {
		s.events.PublishAsync(analytics.PaymentEventPayload{
			PaymentID:   payment.ID,
			ProductID:   payment.ProductID,
			Kind:        kind,
			AmountCents: payment.AmountCents,
			Currency:    payment.Currency,
			OccurredAt:  time.Now().UnixMilli(),
		})
	}
}
