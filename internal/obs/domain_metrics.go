package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCalculationsTotal counts quote calculations by outcome code.
	QuoteCalculationsTotal *prometheus.CounterVec
	// QuoteCacheLookups counts cache lookups by result (hit/miss/error).
	QuoteCacheLookups *prometheus.CounterVec
	// QuoteCalculationLatency records full pipeline latency in milliseconds.
	QuoteCalculationLatency prometheus.Histogram
	// PromoRedemptionsTotal counts promo code redemption outcomes.
	PromoRedemptionsTotal *prometheus.CounterVec
	// PriceBookPublishesTotal counts price book publish operations.
	PriceBookPublishesTotal prometheus.Counter
	// QuoteEventsPublishFailures counts quote-calculated events that failed to
	// reach the publish sink (logged and swallowed by the orchestrator).
	QuoteEventsPublishFailures prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calculations_total",
			Help:      "Count of quote calculations by outcome.",
		}, []string{"result"})
		QuoteCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_lookups_total",
			Help:      "Count of quote cache lookups by result.",
		}, []string{"result"})
		QuoteCalculationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_calculation_duration_ms",
			Help:      "Latency of full quote calculations in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		PromoRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_redemptions_total",
			Help:      "Count of promo code redemption outcomes.",
		}, []string{"result"})
		PriceBookPublishesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_book_publishes_total",
			Help:      "Number of price book versions published.",
		})
		QuoteEventsPublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_event_publish_failures_total",
			Help:      "Quote-calculated events that could not be handed to the sink.",
		})

		mustRegisterCollector(reg, QuoteCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteCalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteCacheLookups = v
			}
		})
		mustRegisterCollector(reg, QuoteCalculationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteCalculationLatency = v
			}
		})
		mustRegisterCollector(reg, PromoRedemptionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoRedemptionsTotal = v
			}
		})
		mustRegisterCollector(reg, PriceBookPublishesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PriceBookPublishesTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteEventsPublishFailures, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				QuoteEventsPublishFailures = v
			}
		})
	})
}

// IncQuoteCalculation records a calculation outcome when metrics are enabled.
func IncQuoteCalculation(result string) {
	if QuoteCalculationsTotal != nil {
		QuoteCalculationsTotal.WithLabelValues(result).Inc()
	}
}

// IncQuoteCacheLookup records a cache lookup outcome when metrics are enabled.
func IncQuoteCacheLookup(result string) {
	if QuoteCacheLookups != nil {
		QuoteCacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveQuoteLatency records pipeline latency when metrics are enabled.
func ObserveQuoteLatency(millis float64) {
	if QuoteCalculationLatency != nil {
		QuoteCalculationLatency.Observe(millis)
	}
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
