// Package stats exposes a txfifo.Engine's statistics counters: a plain
// snapshot struct for direct inspection, and a prometheus.Collector
// adapter for services that scrape metrics.
package stats
