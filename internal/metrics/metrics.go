// Package metrics exposes Prometheus counters for batch runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide registry. A dedicated registry keeps test
// processes from tripping over duplicate registrations.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Batch counts per-path outcomes for one operation.
type Batch struct {
	Processed prometheus.Counter
	Passed    prometheus.Counter
	Repaired  prometheus.Counter
	Errors    prometheus.Counter
}

// NewBatch creates outcome counters labelled with the operation name,
// registered on Registry.
func NewBatch(operation string) *Batch {
	labels := prometheus.Labels{"operation": operation}
	factory := promauto.With(Registry)

	return &Batch{
		Processed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "gridkeeper_paths_processed_total",
			Help:        "Input paths processed.",
			ConstLabels: labels,
		}),
		Passed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "gridkeeper_paths_passed_total",
			Help:        "Paths that passed without mutation.",
			ConstLabels: labels,
		}),
		Repaired: factory.NewCounter(prometheus.CounterOpts{
			Name:        "gridkeeper_paths_repaired_total",
			Help:        "Paths brought back to a correct state.",
			ConstLabels: labels,
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "gridkeeper_paths_errored_total",
			Help:        "Paths that failed checking or repair.",
			ConstLabels: labels,
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
