// Package metrics exposes the owner event loop's own state as Prometheus
// instruments: nothing external is observed, only the transfer table and
// the chunks the loop itself writes. This gives
// github.com/prometheus/client_golang (present in the teacher family's
// richest go.mod, see DESIGN.md) a genuine home in an otherwise
// network-free library.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the three instruments one owner loop registers.
type Metrics struct {
	TransfersCompleted prometheus.Counter
	BytesSent          prometheus.Counter
	TransfersActive    prometheus.Gauge
}

// New creates and registers a Metrics set against reg, labeled with runID
// as the run_id label (clip's worker passes its own process id). Passing a
// nil registry returns an unregistered Metrics that still tracks values,
// for callers that don't want Prometheus wiring at all.
func New(reg *prometheus.Registry, runID string) *Metrics {
	labels := prometheus.Labels{"run_id": runID}
	m := &Metrics{
		TransfersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "libxclip",
			Subsystem:   "owner",
			Name:        "transfers_completed_total",
			Help:        "INCR and single-shot transfers the owner loop has completed.",
			ConstLabels: labels,
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "libxclip",
			Subsystem:   "owner",
			Name:        "bytes_sent_total",
			Help:        "Payload bytes written to requestor properties.",
			ConstLabels: labels,
		}),
		TransfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "libxclip",
			Subsystem:   "owner",
			Name:        "transfers_active",
			Help:        "Number of INCR transfers currently in flight.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.TransfersCompleted, m.BytesSent, m.TransfersActive)
	}
	return m
}
