package chargebee

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess   = "success"
	outcomeAPIError  = "api_error"
	outcomeTransport = "transport_error"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chargebee",
			Name:      "requests_total",
			Help:      "Chargebee API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chargebee",
			Name:      "request_duration_seconds",
			Help:      "Chargebee API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg == nil {
		return m, nil
	}

	if err := reg.Register(m.requests); err != nil {
		existing, err := alreadyRegistered[*prometheus.CounterVec](err)
		if err != nil {
			return nil, err
		}
		m.requests = existing
	}

	if err := reg.Register(m.duration); err != nil {
		existing, err := alreadyRegistered[*prometheus.HistogramVec](err)
		if err != nil {
			return nil, err
		}
		m.duration = existing
	}

	return m, nil
}

// alreadyRegistered returns the collector that is already registered when
// err reports a duplicate registration.
func alreadyRegistered[T prometheus.Collector](err error) (T, error) {
	var zero T

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return zero, err
	}

	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return zero, err
	}

	return existing, nil
}

func (m *clientMetrics) observe(operation string, elapsed time.Duration, err error) {
	outcome := outcomeSuccess
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			outcome = outcomeAPIError
		} else {
			outcome = outcomeTransport
		}
	}

	m.requests.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
