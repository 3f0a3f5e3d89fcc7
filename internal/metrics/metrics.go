// Package metrics exposes Prometheus instrumentation for ledger operations.
// Recording functions are no-ops until Init has been called.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "splitledger_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	operationsTotal  *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	paymentsTotal  *prometheus.CounterVec
	paymentsNet    *prometheus.CounterVec
	feesCollected  prometheus.Counter
	refundedAmount prometheus.Counter
	billsSettled   prometheus.Counter

	eventPublishErrors *prometheus.CounterVec
)

// Init registers ledger metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		operationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total ledger operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		operationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Ledger operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		paymentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_total",
				Help: "Accepted payments by status",
			},
			[]string{"status"},
		)
		paymentsNet = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_net_amount_total",
				Help: "Net minor units credited toward bills by payment status",
			},
			[]string{"status"},
		)
		feesCollected = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "fees_collected_total",
				Help: "Fee minor units deducted from payments",
			},
		)
		refundedAmount = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "refunded_amount_total",
				Help: "Minor units returned to payers",
			},
		)
		billsSettled = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "bills_settled_total",
				Help: "Bills that reached the settled state",
			},
		)
		eventPublishErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_publish_errors_total",
				Help: "Events that could not be published by type",
			},
			[]string{"type"},
		)

		prometheus.MustRegister(
			operationsTotal,
			operationLatency,
			paymentsTotal,
			paymentsNet,
			feesCollected,
			refundedAmount,
			billsSettled,
			eventPublishErrors,
		)
	})
}

// ObserveOperation records the result and latency of one ledger call.
func ObserveOperation(operation, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if operationsTotal != nil {
		operationsTotal.WithLabelValues(operation, result).Inc()
	}
	if operationLatency != nil {
		operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordPayment counts an accepted payment.
func RecordPayment(status string, net, fee int64) {
	if paymentsTotal != nil {
		paymentsTotal.WithLabelValues(status).Inc()
	}
	if paymentsNet != nil {
		paymentsNet.WithLabelValues(status).Add(float64(net))
	}
	if feesCollected != nil && fee > 0 {
		feesCollected.Add(float64(fee))
	}
}

// RecordRefund counts refunded minor units.
func RecordRefund(amount int64) {
	if refundedAmount != nil && amount > 0 {
		refundedAmount.Add(float64(amount))
	}
}

// IncBillSettled increments the settled bills counter.
func IncBillSettled() {
	if billsSettled != nil {
		billsSettled.Inc()
	}
}

// IncEventPublishError increments the failed publication counter.
func IncEventPublishError(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if eventPublishErrors != nil {
		eventPublishErrors.WithLabelValues(eventType).Inc()
	}
}
