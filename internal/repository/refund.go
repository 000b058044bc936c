package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gateflow/gateflow/internal/model"
)

// Common errors for refund request repository operations.
var (
	ErrRefundRequestNotFound = errors.New("refund request not found")
	ErrRefundRequestOpen     = errors.New("an open refund request already exists for this payment")
	ErrRefundRequestResolved = errors.New("refund request already resolved")
)

const refundColumns = `id, payment_id, reason, status, resolution_note, resolved_at, created_at`

// CreateRefundRequest inserts a new refund request. A partial unique index on
// (payment_id) WHERE status = 'pending' guarantees one open request per payment.
func (r *Repository) CreateRefundRequest(ctx context.Context, req *model.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (id, payment_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.PaymentID,
		req.Reason,
		string(req.Status),
		req.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrRefundRequestOpen
		}
		return fmt.Errorf("failed to create refund request: %w", err)
	}

	return nil
}

// GetRefundRequestByID retrieves a refund request by ID.
func (r *Repository) GetRefundRequestByID(ctx context.Context, id string) (*model.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`

	return r.scanRefundRequest(r.pool.QueryRow(ctx, query, id))
}

// RefundRequestFilter narrows refund request listings.
type RefundRequestFilter struct {
	Status    model.RefundStatus
	PaymentID string
}

// ListRefundRequests returns a page of refund requests ordered by (created_at, id) descending.
func (r *Repository) ListRefundRequests(ctx context.Context, filter RefundRequestFilter, cursor *PaginationCursor, limit int) ([]*model.RefundRequest, bool, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE 1=1`
	args := []any{}
	argn := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, string(filter.Status))
		argn++
	}
	if filter.PaymentID != "" {
		query += fmt.Sprintf(" AND payment_id = $%d", argn)
		args = append(args, filter.PaymentID)
		argn++
	}

	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argn, argn+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argn += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argn)
	args = append(args, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list refund requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.RefundRequest
	for rows.Next() {
		req, err := r.scanRefundRequestFromRows(rows)
		if err != nil {
			return nil, false, fmt.Errorf("failed to scan refund request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating refund requests: %w", err)
	}

	hasMore := len(requests) > limit
	if hasMore {
		requests = requests[:limit]
	}

	return requests, hasMore, nil
}

// ResolveRefundRequest transitions a pending request to approved or rejected.
// Resolving an already-resolved request returns ErrRefundRequestResolved.
func (r *Repository) ResolveRefundRequest(ctx context.Context, id string, status model.RefundStatus, note string) error {
	query := `
		UPDATE refund_requests
		SET status = $2, resolution_note = $3, resolved_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.pool.Exec(ctx, query, id,
		string(status), note, time.Now(), string(model.RefundStatusPending))
	if err != nil {
		return fmt.Errorf("failed to resolve refund request: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish missing from already-resolved for the API error code.
		if _, getErr := r.GetRefundRequestByID(ctx, id); getErr != nil {
			return ErrRefundRequestNotFound
		}
		return ErrRefundRequestResolved
	}

	return nil
}

func (r *Repository) scanRefundRequest(row pgx.Row) (*model.RefundRequest, error) {
	var req model.RefundRequest
	var status string

	err := row.Scan(
		&req.ID,
		&req.PaymentID,
		&req.Reason,
		&status,
		&req.ResolutionNote,
		&req.ResolvedAt,
		&req.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan refund request: %w", err)
	}

	req.Status = model.RefundStatus(status)
	return &req, nil
}

func (r *Repository) scanRefundRequestFromRows(rows pgx.Rows) (*model.RefundRequest, error) {
	var req model.RefundRequest
	var status string

	err := rows.Scan(
		&req.ID,
		&req.PaymentID,
		&req.Reason,
		&status,
		&req.ResolutionNote,
		&req.ResolvedAt,
		&req.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	req.Status = model.RefundStatus(status)
	return &req, nil
}
