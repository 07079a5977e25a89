package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts an engine's statistics counters to prometheus.Collector.
// No repo in the retrieval pack imports Prometheus directly; this is the
// one dependency in the module with no same-language grounding file, named
// here as the statistics-exposure collaborator's wire format rather than
// left unreferenced (see DESIGN.md).
type Collector struct {
	src Source

	payloadCountMin   *prometheus.Desc
	payloadCountMax   *prometheus.Desc
	payloadCountTotal *prometheus.Desc
	messageSizeMin    *prometheus.Desc
	messageSizeMax    *prometheus.Desc
	messageSizeTotal  *prometheus.Desc
	totalMessages     *prometheus.Desc
}

// NewCollector builds a Collector reading statistics from src on every
// scrape.
func NewCollector(src Source) *Collector {
	const ns = "h2dtx"
	return &Collector{
		src: src,
		payloadCountMin: prometheus.NewDesc(ns+"_payload_count_min",
			"Minimum payload descriptor count observed in a delivered message.", nil, nil),
		payloadCountMax: prometheus.NewDesc(ns+"_payload_count_max",
			"Maximum payload descriptor count observed in a delivered message.", nil, nil),
		payloadCountTotal: prometheus.NewDesc(ns+"_payload_count_total",
			"Total payload descriptors delivered across all messages.", nil, nil),
		messageSizeMin: prometheus.NewDesc(ns+"_message_size_min_bytes",
			"Minimum delivered message size in bytes.", nil, nil),
		messageSizeMax: prometheus.NewDesc(ns+"_message_size_max_bytes",
			"Maximum delivered message size in bytes.", nil, nil),
		messageSizeTotal: prometheus.NewDesc(ns+"_message_size_total_bytes",
			"Total bytes delivered across all messages.", nil, nil),
		totalMessages: prometheus.NewDesc(ns+"_messages_total",
			"Total number of messages delivered.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.payloadCountMin
	ch <- c.payloadCountMax
	ch <- c.payloadCountTotal
	ch <- c.messageSizeMin
	ch <- c.messageSizeMax
	ch <- c.messageSizeTotal
	ch <- c.totalMessages
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.payloadCountMin, prometheus.GaugeValue, float64(s.PayloadCountMin))
	ch <- prometheus.MustNewConstMetric(c.payloadCountMax, prometheus.GaugeValue, float64(s.PayloadCountMax))
	ch <- prometheus.MustNewConstMetric(c.payloadCountTotal, prometheus.CounterValue, float64(s.PayloadCountTotal))
	ch <- prometheus.MustNewConstMetric(c.messageSizeMin, prometheus.GaugeValue, float64(s.MessageSizeMin))
	ch <- prometheus.MustNewConstMetric(c.messageSizeMax, prometheus.GaugeValue, float64(s.MessageSizeMax))
	ch <- prometheus.MustNewConstMetric(c.messageSizeTotal, prometheus.CounterValue, float64(s.MessageSizeTotal))
	ch <- prometheus.MustNewConstMetric(c.totalMessages, prometheus.CounterValue, float64(s.TotalMessages))
}

var _ prometheus.Collector = (*Collector)(nil)
