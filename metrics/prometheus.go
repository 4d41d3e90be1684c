package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector forwards search counters to Prometheus in addition to
// keeping the per-search snapshot.
type PrometheusCollector struct {
	collector

	searches       prometheus.Counter
	rolloutsTotal  prometheus.Counter
	expansions     prometheus.Counter
	terminalLeaves prometheus.Counter
	treeReuses     prometheus.Counter
	duration       prometheus.Histogram
}

// NewPrometheusCollector registers the search metrics with reg under namespace.
func NewPrometheusCollector(namespace string, reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of completed searches",
		}),
		rolloutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollouts_total",
			Help:      "Total number of rollouts across searches",
		}),
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Total number of decision nodes created during selection",
		}),
		terminalLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminal_leaves_total",
			Help:      "Total number of rollouts ending in a terminal state",
		}),
		treeReuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_reuses_total",
			Help:      "Total number of searches that reused an existing tree",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
	}

	for _, m := range []prometheus.Collector{c.searches, c.rolloutsTotal, c.expansions, c.terminalLeaves, c.treeReuses, c.duration} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *PrometheusCollector) AddRollout() {
	c.collector.AddRollout()
	c.rolloutsTotal.Inc()
}

func (c *PrometheusCollector) AddExpansion() {
	c.collector.AddExpansion()
	c.expansions.Inc()
}

func (c *PrometheusCollector) AddTerminalLeaf() {
	c.collector.AddTerminalLeaf()
	c.terminalLeaves.Inc()
}

func (c *PrometheusCollector) Complete() SearchMetric {
	metric := c.collector.Complete()
	c.searches.Inc()
	if metric.IsTreeReused {
		c.treeReuses.Inc()
	}
	c.duration.Observe(metric.Duration.Seconds())
	return metric
}
