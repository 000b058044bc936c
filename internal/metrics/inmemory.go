package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PaymentsSucceeded        uint64
	PaymentsFailed           uint64
	PaymentsRefunded         uint64
	CouponsRedeemed          uint64
	CheckoutDurationCount    uint64
	CheckoutDurationTotalNs  int64
	ProductsCreated          uint64
	ProductsUpdated          uint64
	ProductsDeleted          uint64
	WebhookDeliveriesSuccess uint64
	WebhookDeliveriesFailed  uint64
	WebhookRetries           uint64
	WebhookQueueDepth        int64
	AnalyticsEventsPublished uint64
	AnalyticsEventsDropped   uint64
	AnalyticsEventsProcessed uint64
	AnalyticsEventsFailed    uint64
	AnalyticsQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory. Used for the /metrics
// endpoint and in tests.
type InMemoryRecorder struct {
	paymentsSucceeded        uint64
	paymentsFailed           uint64
	paymentsRefunded         uint64
	couponsRedeemed          uint64
	checkoutDurationCount    uint64
	checkoutDurationTotalNs  int64
	productsCreated          uint64
	productsUpdated          uint64
	productsDeleted          uint64
	webhookDeliveriesSuccess uint64
	webhookDeliveriesFailed  uint64
	webhookRetries           uint64
	webhookQueueDepth        int64
	analyticsEventsPublished uint64
	analyticsEventsDropped   uint64
	analyticsEventsProcessed uint64
	analyticsEventsFailed    uint64
	analyticsQueueDepth      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PaymentsSucceeded:        atomic.LoadUint64(&m.paymentsSucceeded),
		PaymentsFailed:           atomic.LoadUint64(&m.paymentsFailed),
		PaymentsRefunded:         atomic.LoadUint64(&m.paymentsRefunded),
		CouponsRedeemed:          atomic.LoadUint64(&m.couponsRedeemed),
		CheckoutDurationCount:    atomic.LoadUint64(&m.checkoutDurationCount),
		CheckoutDurationTotalNs:  atomic.LoadInt64(&m.checkoutDurationTotalNs),
		ProductsCreated:          atomic.LoadUint64(&m.productsCreated),
		ProductsUpdated:          atomic.LoadUint64(&m.productsUpdated),
		ProductsDeleted:          atomic.LoadUint64(&m.productsDeleted),
		WebhookDeliveriesSuccess: atomic.LoadUint64(&m.webhookDeliveriesSuccess),
		WebhookDeliveriesFailed:  atomic.LoadUint64(&m.webhookDeliveriesFailed),
		WebhookRetries:           atomic.LoadUint64(&m.webhookRetries),
		WebhookQueueDepth:        atomic.LoadInt64(&m.webhookQueueDepth),
		AnalyticsEventsPublished: atomic.LoadUint64(&m.analyticsEventsPublished),
		AnalyticsEventsDropped:   atomic.LoadUint64(&m.analyticsEventsDropped),
		AnalyticsEventsProcessed: atomic.LoadUint64(&m.analyticsEventsProcessed),
		AnalyticsEventsFailed:    atomic.LoadUint64(&m.analyticsEventsFailed),
		AnalyticsQueueDepth:      atomic.LoadInt64(&m.analyticsQueueDepth),
	}
}

// IncPayment increments the payment counter for a status.
func (m *InMemoryRecorder) IncPayment(status string) {
	switch status {
	case "succeeded":
		atomic.AddUint64(&m.paymentsSucceeded, 1)
	case "failed":
		atomic.AddUint64(&m.paymentsFailed, 1)
	case "refunded":
		atomic.AddUint64(&m.paymentsRefunded, 1)
	}
}

// IncCouponRedeemed increments the coupon redemption counter.
func (m *InMemoryRecorder) IncCouponRedeemed() {
	atomic.AddUint64(&m.couponsRedeemed, 1)
}

// ObserveCheckoutDuration records checkout duration.
func (m *InMemoryRecorder) ObserveCheckoutDuration(duration time.Duration) {
	atomic.AddUint64(&m.checkoutDurationCount, 1)
	atomic.AddInt64(&m.checkoutDurationTotalNs, duration.Nanoseconds())
}

// IncProductCreated increments the product created counter.
func (m *InMemoryRecorder) IncProductCreated() {
	atomic.AddUint64(&m.productsCreated, 1)
}

// IncProductUpdated increments the product updated counter.
func (m *InMemoryRecorder) IncProductUpdated() {
	atomic.AddUint64(&m.productsUpdated, 1)
}

// IncProductDeleted increments the product deleted counter.
func (m *InMemoryRecorder) IncProductDeleted() {
	atomic.AddUint64(&m.productsDeleted, 1)
}

// IncWebhookDelivery increments the delivery counter for a status.
func (m *InMemoryRecorder) IncWebhookDelivery(status string, endpointID string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.webhookDeliveriesSuccess, 1)
	default:
		atomic.AddUint64(&m.webhookDeliveriesFailed, 1)
	}
}

// IncWebhookRetry increments the retry counter.
func (m *InMemoryRecorder) IncWebhookRetry(endpointID string, attempt int) {
	atomic.AddUint64(&m.webhookRetries, 1)
}

// ObserveWebhookDeliveryDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {
}

// SetWebhookQueueDepth records current webhook queue depth.
func (m *InMemoryRecorder) SetWebhookQueueDepth(depth int64) {
	atomic.StoreInt64(&m.webhookQueueDepth, depth)
}

// IncAnalyticsEventPublished increments the analytics publish counter.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.analyticsEventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.analyticsEventsDropped, 1)
}

// IncAnalyticsEventProcessed increments the analytics processed counter.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.analyticsEventsProcessed, 1)
		return
	}
	atomic.AddUint64(&m.analyticsEventsFailed, 1)
}

// ObserveAnalyticsBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {}

// ObserveAnalyticsBatchDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

// SetAnalyticsQueueDepth records current analytics stream depth.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.analyticsQueueDepth, depth)
}
