package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// CheckoutMetrics records completion attempts and shipping price/selection outcomes.
type CheckoutMetrics struct {
	completions  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	priceCalcs   *prometheus.CounterVec
	shippingSels *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_completion_total",
		Help: "Order completion attempts by payment path and result.",
	}, []string{"path", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_completion_duration_seconds",
		Help:    "Duration of order completion attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	priceCalcs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipping_price_calculation_total",
		Help: "Calculated shipping price requests by result.",
	}, []string{"result"})
	shippingSels := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipping_selection_total",
		Help: "Shipping method selections by result.",
	}, []string{"result"})
	reg.MustRegister(completions, duration, priceCalcs, shippingSels)
	return &CheckoutMetrics{
		completions:  completions,
		duration:     duration,
		priceCalcs:   priceCalcs,
		shippingSels: shippingSels,
	}
}

// ObserveCompletion records one completion attempt for the given path.
func (m *CheckoutMetrics) ObserveCompletion(path string, ok bool, elapsed time.Duration) {
	if m == nil || m.completions == nil {
		return
	}
	label := normalizeLabel(path)
	m.completions.WithLabelValues(label, result(ok)).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// IncPriceCalculation counts one calculated shipping price request.
func (m *CheckoutMetrics) IncPriceCalculation(ok bool) {
	if m == nil || m.priceCalcs == nil {
		return
	}
	m.priceCalcs.WithLabelValues(result(ok)).Inc()
}

// IncShippingSelection counts one shipping method selection.
func (m *CheckoutMetrics) IncShippingSelection(ok bool) {
	if m == nil || m.shippingSels == nil {
		return
	}
	m.shippingSels.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
