package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCalcTotal counts quote calculation outcomes.
	QuoteCalcTotal *prometheus.CounterVec
	// QuoteCalcLatency records quote calculation latency in milliseconds.
	QuoteCalcLatency *prometheus.HistogramVec
	// QuoteBasisMethodTotal counts taxable-basis selections per method.
	QuoteBasisMethodTotal *prometheus.CounterVec
	// ClassificationFallbackTotal counts line items priced under the fallback policy.
	ClassificationFallbackTotal prometheus.Counter
	// ExpiredFallbackPolicyTotal counts calculations served by an expired fallback policy.
	ExpiredFallbackPolicyTotal prometheus.Counter
	// SnapshotRefreshTotal counts snapshot refresh outcomes per source.
	SnapshotRefreshTotal *prometheus.CounterVec
	// ReviewTasksEnqueued counts classification review tasks enqueued.
	ReviewTasksEnqueued prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCalcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calc_total",
			Help:      "Count of quote calculation outcomes.",
		}, []string{"result"})
		QuoteCalcLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_calc_duration_ms",
			Help:      "Latency of quote calculations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"result"})
		QuoteBasisMethodTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_basis_method_total",
			Help:      "Count of taxable-basis method selections across line items.",
		}, []string{"method"})
		ClassificationFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_fallback_total",
			Help:      "Line items priced under the named fallback policy.",
		})
		ExpiredFallbackPolicyTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_policy_expired_total",
			Help:      "Calculations that used a fallback policy past its review date.",
		})
		SnapshotRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_total",
			Help:      "Count of snapshot refresh outcomes by source.",
		}, []string{"source", "result"})
		ReviewTasksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_tasks_enqueued_total",
			Help:      "Classification review tasks enqueued for operators.",
		})

		mustRegisterCollector(reg, QuoteCalcTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteCalcTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteCalcLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteCalcLatency = v
			}
		})
		mustRegisterCollector(reg, QuoteBasisMethodTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteBasisMethodTotal = v
			}
		})
		mustRegisterCollector(reg, ClassificationFallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ClassificationFallbackTotal = v
			}
		})
		mustRegisterCollector(reg, ExpiredFallbackPolicyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ExpiredFallbackPolicyTotal = v
			}
		})
		mustRegisterCollector(reg, SnapshotRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SnapshotRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, ReviewTasksEnqueued, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReviewTasksEnqueued = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
