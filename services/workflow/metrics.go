package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records run and node execution counters.
type Metrics struct {
	runs          *prometheus.CounterVec
	nodes         *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	quotaExceeded prometheus.Counter
}

// NewMetrics creates the workflow collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heliex_workflow_runs_total",
				Help: "Total number of workflow runs by outcome",
			},
			[]string{"status"},
		),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heliex_workflow_node_executions_total",
				Help: "Total number of node executions by type and final status",
			},
			[]string{"type", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heliex_workflow_node_duration_seconds",
				Help:    "Duration of node executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		quotaExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heliex_workflow_quota_exceeded_total",
			Help: "Node failures caused by remote quota exhaustion",
		}),
	}
	reg.MustRegister(m.runs, m.nodes, m.nodeDuration, m.quotaExceeded)
	return m
}

func (m *Metrics) observeNode(t NodeType, status NodeStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.nodes.WithLabelValues(string(t), string(status)).Inc()
	m.nodeDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

func (m *Metrics) observeRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) observeQuota() {
	if m == nil {
		return
	}
	m.quotaExceeded.Inc()
}
