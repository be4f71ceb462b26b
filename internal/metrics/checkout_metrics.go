package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказов и склада.
type CheckoutMetrics struct {
	// Счётчики операций
	ordersCommitted    prometheus.Counter
	ordersCancelled    prometheus.Counter
	commitRejected     *prometheus.CounterVec
	stockAdjustments   *prometheus.CounterVec
	lowStockDetections prometheus.Counter

	// Гистограммы времени выполнения
	commitDuration prometheus.Histogram

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для активных черновиков
	activeDrafts prometheus.Gauge
}

// NewCheckoutMetrics создаёт новый экземпляр метрик оформления.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCommitted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_orders_committed_total",
			Help: "Total number of orders committed successfully",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		commitRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_checkout_rejected_total",
			Help: "Total number of rejected checkout attempts grouped by reason",
		}, []string{"reason"}),
		stockAdjustments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "pos_stock_adjustments_total",
			Help: "Total number of manual stock adjustments grouped by direction",
		}, []string{"direction"}),
		lowStockDetections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_low_stock_detections_total",
			Help: "Total number of times a product dropped to or below the low stock threshold",
		}),
		commitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "pos_checkout_commit_duration_seconds",
			Help:    "Duration of order commit operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeDrafts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "pos_active_order_drafts",
			Help: "Number of currently open order drafts",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCommitted увеличивает счётчик оформленных заказов.
func (m *CheckoutMetrics) RecordOrderCommitted() {
	m.ordersCommitted.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *CheckoutMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordCommitRejected увеличивает счётчик отклонённых попыток оформления.
func (m *CheckoutMetrics) RecordCommitRejected(reason string) {
	m.commitRejected.WithLabelValues(reason).Inc()
}

// RecordStockAdjustment увеличивает счётчик ручных корректировок остатка.
func (m *CheckoutMetrics) RecordStockAdjustment(direction string) {
	m.stockAdjustments.WithLabelValues(direction).Inc()
}

// RecordLowStockDetected увеличивает счётчик срабатываний порога остатка.
func (m *CheckoutMetrics) RecordLowStockDetected() {
	m.lowStockDetections.Inc()
}

// RecordCommitDuration записывает время фиксации заказа.
func (m *CheckoutMetrics) RecordCommitDuration(duration time.Duration) {
	m.commitDuration.Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CheckoutMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordDraftOpened увеличивает количество открытых черновиков.
func (m *CheckoutMetrics) RecordDraftOpened() {
	m.activeDrafts.Inc()
}

// RecordDraftClosed уменьшает количество открытых черновиков.
func (m *CheckoutMetrics) RecordDraftClosed() {
	m.activeDrafts.Dec()
}
