package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gateflow/gateflow/internal/model"
	"github.com/gateflow/gateflow/internal/repository"
	"github.com/gateflow/gateflow/internal/webhook"
)

// Refund service errors.
var (
	ErrRefundRequestNotFound = errors.New("refund request not found")
	ErrRefundRequestOpen     = errors.New("an open refund request already exists for this payment")
	ErrRefundRequestResolved = errors.New("refund request already resolved")
	ErrInvalidRefundStatus   = errors.New("invalid refund resolution status")
)

const maxReasonLength = 2000

// RefundService handles refund request lifecycle.
type RefundService struct {
	repo     *repository.Repository
	payments *PaymentService
	hooks    *webhook.Publisher
	logger   *slog.Logger
}

// NewRefundService creates a new RefundService.
func NewRefundService(repo *repository.Repository, payments *PaymentService, hooks *webhook.Publisher, logger *slog.Logger) *RefundService {
	return &RefundService{
		repo:     repo,
		payments: payments,
		hooks:    hooks,
		logger:   logger.With("component", "service.refund"),
	}
}

// CreateRefundRequest opens a refund request for a succeeded payment.
func (s *RefundService) CreateRefundRequest(ctx context.Context, paymentID, reason string) (*model.RefundRequest, error) {
	if len(reason) > maxReasonLength {
		return nil, fmt.Errorf("%w: reason too long", ErrInvalidInput)
	}

	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !payment.IsRefundable() {
		return nil, ErrPaymentNotRefundable
	}

	request := &model.RefundRequest{
		ID:        ulid.Make().String(),
		PaymentID: payment.ID,
		Reason:    reason,
		Status:    model.RefundStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateRefundRequest(ctx, request); err != nil {
		if errors.Is(err, repository.ErrRefundRequestOpen) {
			return nil, ErrRefundRequestOpen
		}
		return nil, fmt.Errorf("failed to create refund request: %w", err)
	}

	if s.hooks != nil {
		if err := s.hooks.Publish(ctx, model.EventTypeRefundRequested, request.ID, map[string]any{
			"refund_request_id": request.ID,
			"payment_id":        payment.ID,
			"reason":            reason,
		}); err != nil {
			s.logger.Warn("webhook publish failed", "refund_request_id", request.ID, "error", err)
		}
	}

	return request, nil
}

// GetRefundRequest retrieves a refund request by ID.
func (s *RefundService) GetRefundRequest(ctx context.Context, id string) (*model.RefundRequest, error) {
	request, err := s.repo.GetRefundRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRefundRequestNotFound) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, err
	}
	return request, nil
}

// ListRefundRequestsInput defines input for listing refund requests.
type ListRefundRequestsInput struct {
	Status    string
	PaymentID string
	Cursor    string
	Limit     int
}

// ListRefundRequestsOutput defines output for listing refund requests.
type ListRefundRequestsOutput struct {
	Requests   []*model.RefundRequest
	NextCursor string
	HasMore    bool
}

// ListRefundRequests retrieves a paginated list of refund requests.
func (s *RefundService) ListRefundRequests(ctx context.Context, input ListRefundRequestsInput) (*ListRefundRequestsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	cursor, err := decodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	filter := repository.RefundRequestFilter{
		Status:    model.RefundStatus(input.Status),
		PaymentID: input.PaymentID,
	}

	requests, hasMore, err := s.repo.ListRefundRequests(ctx, filter, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListRefundRequestsOutput{Requests: requests, HasMore: hasMore}
	if hasMore && len(requests) > 0 {
		last := requests[len(requests)-1]
		out.NextCursor = repository.EncodeCursor(&repository.PaginationCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return out, nil
}

// ApproveRefundRequest refunds the payment through the processor, then
// resolves the request. The processor call comes first so an approval
// never records success for money that was not returned.
func (s *RefundService) ApproveRefundRequest(ctx context.Context, id, note string) (*model.RefundRequest, error) {
	request, err := s.GetRefundRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.IsResolved() {
		return nil, ErrRefundRequestResolved
	}

	if _, err := s.payments.RefundPayment(ctx, request.PaymentID); err != nil {
		// Payment already refunded out of band: still resolve the request.
		if !errors.Is(err, ErrPaymentNotRefundable) {
			return nil, err
		}
		payment, getErr := s.repo.GetPaymentByID(ctx, request.PaymentID)
		if getErr != nil || payment.Status != model.PaymentStatusRefunded {
			return nil, err
		}
	}

	return s.resolve(ctx, request, model.RefundStatusApproved, note)
}

// RejectRefundRequest resolves the request as rejected with a note.
func (s *RefundService) RejectRefundRequest(ctx context.Context, id, note string) (*model.RefundRequest, error) {
	request, err := s.GetRefundRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.IsResolved() {
		return nil, ErrRefundRequestResolved
	}

	return s.resolve(ctx, request, model.RefundStatusRejected, note)
}

func (s *RefundService) resolve(ctx context.Context, request *model.RefundRequest, status model.RefundStatus, note string) (*model.RefundRequest, error) {
	if err := s.repo.ResolveRefundRequest(ctx, request.ID, status, note); err != nil {
		if errors.Is(err, repository.ErrRefundRequestResolved) {
			return nil, ErrRefundRequestResolved
		}
		if errors.Is(err, repository.ErrRefundRequestNotFound) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, err
	}

	request.Status = status
	request.ResolutionNote = note
	now := time.Now().UTC()
	request.ResolvedAt = &now

	if s.hooks != nil {
		if err := s.hooks.Publish(ctx, model.EventTypeRefundResolved, request.ID, map[string]any{
			"refund_request_id": request.ID,
			"payment_id":        request.PaymentID,
			"status":            string(status),
			"resolution_note":   note,
		}); err != nil {
			s.logger.Warn("webhook publish failed", "refund_request_id", request.ID, "error", err)
		}
	}

	s.logger.Info("refund request resolved",
		"refund_request_id", request.ID,
		"payment_id", request.PaymentID,
		"status", string(status),
	)

	return request, nil
}
