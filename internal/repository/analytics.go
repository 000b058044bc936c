package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gateflow/gateflow/internal/model"
)

// RevenueDay is one row of the daily revenue aggregate.
type RevenueDay struct {
	Day          time.Time `json:"day"`
	Currency     string    `json:"currency"`
	GrossCents   int64     `json:"gross_cents"`
	PaymentCount int64     `json:"payment_count"`
	RefundCount  int64     `json:"refund_count"`
}

// RevenueSummary holds storefront-wide totals.
type RevenueSummary struct {
	GrossCentsByCurrency map[string]int64 `json:"gross_cents_by_currency"`
	PaymentCount         int64            `json:"payment_count"`
	RefundCount          int64            `json:"refund_count"`
	ActiveProducts       int64            `json:"active_products"`
}

// UpsertRevenueDay folds a batch of counted payment events into the daily
// aggregate. Idempotent per (day, currency) row, additive per call.
func (r *Repository) UpsertRevenueDay(ctx context.Context, day time.Time, currency string, grossCents, payments, refunds int64) error {
	query := `
		INSERT INTO revenue_daily (day, currency, gross_cents, payment_count, refund_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (day, currency) DO UPDATE
		SET gross_cents = revenue_daily.gross_cents + EXCLUDED.gross_cents,
			payment_count = revenue_daily.payment_count + EXCLUDED.payment_count,
			refund_count = revenue_daily.refund_count + EXCLUDED.refund_count
	`

	_, err := r.pool.Exec(ctx, query, day.UTC().Truncate(24*time.Hour), currency, grossCents, payments, refunds)
	if err != nil {
		return fmt.Errorf("failed to upsert revenue day: %w", err)
	}

	return nil
}

// GetRevenueSummary returns totals across all aggregated days plus the
// count of currently active products.
func (r *Repository) GetRevenueSummary(ctx context.Context) (*RevenueSummary, error) {
	summary := &RevenueSummary{
		GrossCentsByCurrency: make(map[string]int64),
	}

	rows, err := r.pool.Query(ctx, `
		SELECT currency, COALESCE(SUM(gross_cents), 0),
			COALESCE(SUM(payment_count), 0), COALESCE(SUM(refund_count), 0)
		FROM revenue_daily
		GROUP BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency string
		var gross, payments, refunds int64
		if err := rows.Scan(&currency, &gross, &payments, &refunds); err != nil {
			return nil, fmt.Errorf("failed to scan revenue summary: %w", err)
		}
		summary.GrossCentsByCurrency[currency] = gross
		summary.PaymentCount += payments
		summary.RefundCount += refunds
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revenue summary: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE active = true AND deleted_at IS NULL`,
	).Scan(&summary.ActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count active products: %w", err)
	}

	return summary, nil
}

// GetRevenueSeries returns daily rows within [from, to], oldest first.
func (r *Repository) GetRevenueSeries(ctx context.Context, from, to time.Time) ([]*RevenueDay, error) {
	query := `
		SELECT day, currency, gross_cents, payment_count, refund_count
		FROM revenue_daily
		WHERE day >= $1 AND day <= $2
		ORDER BY day ASC, currency ASC
	`

	rows, err := r.pool.Query(ctx, query, from.UTC().Truncate(24*time.Hour), to.UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue series: %w", err)
	}
	defer rows.Close()

	var days []*RevenueDay
	for rows.Next() {
		var d RevenueDay
		if err := rows.Scan(&d.Day, &d.Currency, &d.GrossCents, &d.PaymentCount, &d.RefundCount); err != nil {
			return nil, fmt.Errorf("failed to scan revenue day: %w", err)
		}
		days = append(days, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revenue series: %w", err)
	}

	return days, nil
}

// CountPaymentsByStatus is used by the status endpoint for a cheap
// liveness-level sanity figure.
func (r *Repository) CountPaymentsByStatus(ctx context.Context, status model.PaymentStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = $1`, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}
