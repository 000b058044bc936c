package handler

import (
	"fmt"
	"net/http"

	"github.com/gateflow/gateflow/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "gateflow_payments_total{status=\"succeeded\"} %d\n", snap.PaymentsSucceeded)
	writeMetric(w, "gateflow_payments_total{status=\"failed\"} %d\n", snap.PaymentsFailed)
	writeMetric(w, "gateflow_payments_total{status=\"refunded\"} %d\n", snap.PaymentsRefunded)
	writeMetric(w, "gateflow_coupons_redeemed_total %d\n", snap.CouponsRedeemed)
	writeMetric(w, "gateflow_checkout_duration_seconds_count %d\n", snap.CheckoutDurationCount)
	writeMetric(w, "gateflow_checkout_duration_seconds_sum %.6f\n", float64(snap.CheckoutDurationTotalNs)/1e9)

	writeMetric(w, "gateflow_products_created_total %d\n", snap.ProductsCreated)
	writeMetric(w, "gateflow_products_updated_total %d\n", snap.ProductsUpdated)
	writeMetric(w, "gateflow_products_deleted_total %d\n", snap.ProductsDeleted)

	writeMetric(w, "gateflow_webhook_deliveries_total{status=\"success\"} %d\n", snap.WebhookDeliveriesSuccess)
	writeMetric(w, "gateflow_webhook_deliveries_total{status=\"failed\"} %d\n", snap.WebhookDeliveriesFailed)
	writeMetric(w, "gateflow_webhook_retries_total %d\n", snap.WebhookRetries)
	writeMetric(w, "gateflow_webhook_queue_depth %d\n", snap.WebhookQueueDepth)

	writeMetric(w, "gateflow_analytics_events_published_total{status=\"success\"} %d\n", snap.AnalyticsEventsPublished)
	writeMetric(w, "gateflow_analytics_events_published_total{status=\"dropped\"} %d\n", snap.AnalyticsEventsDropped)
	writeMetric(w, "gateflow_analytics_events_processed_total{status=\"success\"} %d\n", snap.AnalyticsEventsProcessed)
	writeMetric(w, "gateflow_analytics_events_processed_total{status=\"failed\"} %d\n", snap.AnalyticsEventsFailed)
	writeMetric(w, "gateflow_analytics_queue_depth %d\n", snap.AnalyticsQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
