// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the bot's Prometheus metrics.
type Collector struct {
	MessagesTotal     *prometheus.CounterVec
	TransactionsAdded prometheus.Counter
	PipelineErrors    *prometheus.CounterVec
	LLMRequestSeconds prometheus.Histogram
	RateFetchSeconds  prometheus.Histogram
}

// New creates a Collector with all metrics under the given namespace.
func New(namespace string) *Collector {
	return &Collector{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages processed, by outcome.",
		}, []string{"outcome"}),
		TransactionsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_added_total",
			Help:      "Transactions successfully submitted to the budgeting backend.",
		}),
		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_errors_total",
			Help:      "Pipeline failures, by error kind.",
		}, []string{"kind"}),
		LLMRequestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_seconds",
			Help:      "Latency of completion requests.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		RateFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_fetch_seconds",
			Help:      "Latency of currency rate feed fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// Register registers all metrics with the given registry.
func (c *Collector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.MessagesTotal,
		c.TransactionsAdded,
		c.PipelineErrors,
		c.LLMRequestSeconds,
		c.RateFetchSeconds,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
