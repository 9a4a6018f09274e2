package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "judgebox"

// Submission outcomes.
const (
	outcomeExecuted    = "executed"
	outcomeInternal    = "internal_error"
	outcomeCompilation = "compilation_error"
	outcomeAbandoned   = "abandoned"
	outcomeRejected    = "rejected"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	submissions      *prometheus.CounterVec
	cases            *prometheus.CounterVec
	caseRuntime      prometheus.Histogram
	deliveryFailures *prometheus.CounterVec
	queued           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Number of submissions by outcome",
		}, []string{"outcome"}),

		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cases_total",
			Help:      "Number of evaluated cases by result",
		}, []string{"result"}),

		// 1ms -> ~16s
		caseRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "case_runtime_seconds",
			Help:      "Histogram for the measured runtime of successful cases",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}),

		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_failures_total",
			Help:      "Number of reports dropped after a failed delivery",
		}, []string{"kind"}),

		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queued_submissions",
			Help:      "Number of submissions waiting for a worker",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.submissions, m.cases, m.caseRuntime, m.deliveryFailures, m.queued)
	}
	return m
}
