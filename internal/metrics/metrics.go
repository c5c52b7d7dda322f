// Package metrics exposes the scanner's Prometheus counters and gauges:
// SYNs sent, findings published (by outcome), flows evicted, and current
// flow table size. Grounded on
// _examples/etalazz-vsa/internal/ratelimiter/telemetry/churn/prom_counters.go
// — global metric vars registered once in init(), an opt-in HTTP endpoint
// started only when a listen address is configured, mirroring that
// package's MetricsAddr-gated promhttp server rather than always binding
// one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SynsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sporefinder_syns_sent_total",
		Help: "Total SYN packets emitted by the scanner.",
	})

	FindingsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sporefinder_findings_published_total",
		Help: "Total findings published, by outcome.",
	}, []string{"outcome"})

	FlowsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sporefinder_flows_evicted_total",
		Help: "Total flows removed by the garbage collector.",
	})

	FlowTableSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sporefinder_flow_table_size",
		Help: "Current number of entries in the flow table.",
	})
)

func init() {
	prometheus.MustRegister(SynsSent, FindingsPublished, FlowsEvicted, FlowTableSize)
}

// Serve starts the /metrics HTTP endpoint on addr in the background. A
// caller only reaches this when -metricsAddr was set; the scanner's
// default CLI surface stays the two positional args spec §6 describes.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
