package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gateflow/gateflow/internal/model"
)

// ErrPaymentNotFound is returned when a payment does not exist.
var ErrPaymentNotFound = errors.New("payment not found")

const paymentColumns = `id, product_id, coupon_id, customer_email, amount_cents, currency,
		include_bump, status, processor_charge_id, failure_reason, refunded_at, created_at`

// CreatePayment inserts a new payment record.
func (r *Repository) CreatePayment(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, product_id, coupon_id, customer_email, amount_cents, currency,
			include_bump, status, processor_charge_id, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.ProductID,
		p.CouponID,
		p.CustomerEmail,
		p.AmountCents,
		p.Currency,
		p.IncludeBump,
		string(p.Status),
		p.ProcessorChargeID,
		p.FailureReason,
		p.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetPaymentByID retrieves a payment by ID.
func (r *Repository) GetPaymentByID(ctx context.Context, id string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Status        model.PaymentStatus
	CustomerEmail string
	ProductID     string
}

// ListPayments returns a page of payments ordered by (created_at, id) descending.
func (r *Repository) ListPayments(ctx context.Context, filter PaymentFilter, cursor *PaginationCursor, limit int) ([]*model.Payment, bool, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	args := []any{}
	argn := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, string(filter.Status))
		argn++
	}
	if filter.CustomerEmail != "" {
		query += fmt.Sprintf(" AND customer_email = lower($%d)", argn)
		args = append(args, filter.CustomerEmail)
		argn++
	}
	if filter.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", argn)
		args = append(args, filter.ProductID)
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
		return nil, false, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		p, err := r.scanPaymentFromRows(rows)
		if err != nil {
			return nil, false, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating payments: %w", err)
	}

	hasMore := len(payments) > limit
	if hasMore {
		payments = payments[:limit]
	}

	return payments, hasMore, nil
}

// UpdatePaymentStatus records the outcome reported by the processor.
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, status model.PaymentStatus, chargeID, failureReason string) error {
	query := `
		UPDATE payments
		SET status = $2, processor_charge_id = $3, failure_reason = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, string(status), chargeID, failureReason)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

// MarkPaymentRefunded flips a succeeded payment to refunded. Only succeeded
// payments transition, so a double refund is a no-op at the database level.
func (r *Repository) MarkPaymentRefunded(ctx context.Context, id string) error {
	query := `
		UPDATE payments
		SET status = $2, refunded_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, id,
		string(model.PaymentStatusRefunded), time.Now(), string(model.PaymentStatusSucceeded))
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

func (r *Repository) scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var status string

	err := row.Scan(
		&p.ID,
		&p.ProductID,
		&p.CouponID,
		&p.CustomerEmail,
		&p.AmountCents,
		&p.Currency,
		&p.IncludeBump,
		&status,
		&p.ProcessorChargeID,
		&p.FailureReason,
		&p.RefundedAt,
		&p.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func (r *Repository) scanPaymentFromRows(rows pgx.Rows) (*model.Payment, error) {
	var p model.Payment
	var status string

	err := rows.Scan(
		&p.ID,
		&p.ProductID,
		&p.CouponID,
		&p.CustomerEmail,
		&p.AmountCents,
		&p.Currency,
		&p.IncludeBump,
		&status,
		&p.ProcessorChargeID,
		&p.FailureReason,
		&p.RefundedAt,
		&p.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	p.Status = model.PaymentStatus(status)
	return &p, nil
}
