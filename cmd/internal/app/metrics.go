package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"taskdash/cmd/internal/realtime"
)

// newRegistry builds the agent's private registry with runtime collectors
// and the /events subscriber gauge.
func newRegistry(hub *realtime.Hub) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "taskdash",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Connected /events subscribers.",
		}, func() float64 { return float64(hub.Subscribers()) }),
	)
	return reg
}
