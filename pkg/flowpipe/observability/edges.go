package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EdgeStats is a point-in-time view of one edge's queue and traffic.
type EdgeStats struct {
	Edge      string
	Capacity  int
	Depth     int
	Pushed    int64
	Popped    int64
	Dropped   int64
	Blocked   int64
	LastColor uint64
	Colored   bool
	Drained   bool
	Closed    bool
}

// EdgeStatsSource reports the current state of every edge it owns.
type EdgeStatsSource interface {
	EdgeStats() []EdgeStats
}

// EdgeCollector exposes edge queues as Prometheus metrics.
// Values are read from the source on every scrape.
type EdgeCollector struct {
	source EdgeStatsSource

	depth    *prometheus.Desc
	capacity *prometheus.Desc
	pushed   *prometheus.Desc
	popped   *prometheus.Desc
	dropped  *prometheus.Desc
	blocked  *prometheus.Desc
}

var _ prometheus.Collector = (*EdgeCollector)(nil)

// NewEdgeCollector creates a collector over source. constLabels are
// attached to every series (typically the run ID).
func NewEdgeCollector(source EdgeStatsSource, constLabels prometheus.Labels) *EdgeCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("flowpipe", "edge", name),
			help,
			[]string{"edge"},
			constLabels,
		)
	}
	return &EdgeCollector{
		source:   source,
		depth:    desc("queue_depth", "Datums currently queued on the edge"),
		capacity: desc("capacity", "Queue capacity of the edge (0 = unbounded)"),
		pushed:   desc("pushed_total", "Datums accepted by the edge"),
		popped:   desc("popped_total", "Datums delivered by the edge"),
		dropped:  desc("dropped_total", "Datums dropped after the consumer retired"),
		blocked:  desc("blocked_total", "Pushes that waited for queue space"),
	}
}

// Describe implements prometheus.Collector.
func (c *EdgeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depth
	ch <- c.capacity
	ch <- c.pushed
	ch <- c.popped
	ch <- c.dropped
	ch <- c.blocked
}

// Collect implements prometheus.Collector.
func (c *EdgeCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.EdgeStats() {
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(s.Depth), s.Edge)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Edge)
		ch <- prometheus.MustNewConstMetric(c.pushed, prometheus.CounterValue, float64(s.Pushed), s.Edge)
		ch <- prometheus.MustNewConstMetric(c.popped, prometheus.CounterValue, float64(s.Popped), s.Edge)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped), s.Edge)
		ch <- prometheus.MustNewConstMetric(c.blocked, prometheus.CounterValue, float64(s.Blocked), s.Edge)
	}
}
