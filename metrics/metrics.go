package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ObjectErrors    *prometheus.CounterVec
	ResolvedTraces  *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	DebugFilesFound *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObjectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backward_object_errors_total",
			Help: "Total number of errors while trying to open or parse an object file",
		}, []string{"error"}),
		ResolvedTraces: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backward_resolved_traces_total",
			Help: "Total number of resolved traces by outcome (full, symbol_only, object_only, unknown)",
		}, []string{"outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backward_cache_hits_total",
			Help: "Total number of addresses served from the resolution cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backward_cache_misses_total",
			Help: "Total number of addresses that required backend work",
		}),
		DebugFilesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backward_debug_files_found_total",
			Help: "Total number of split debug files located (by_build_id, by_debuglink, embedded)",
		}, []string{"source"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ObjectErrors,
			m.ResolvedTraces,
			m.CacheHits,
			m.CacheMisses,
			m.DebugFilesFound,
		)
	}

	return m
}
