package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Expansions     *prometheus.CounterVec
	Lookups        *prometheus.CounterVec
	Searches       prometheus.Counter
	SearchErrors   *prometheus.CounterVec
	Completions    prometheus.Counter
	DemangleHits   prometheus.Counter
	DemangleMisses prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symcore_unit_expansions_total",
			Help: "Total number of partial unit expansions by outcome",
		}, []string{"outcome"}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symcore_lookups_total",
			Help: "Total number of name lookups by the tier that answered",
		}, []string{"tier"}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symcore_searches_total",
			Help: "Total number of whole-program symbol searches",
		}),
		SearchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symcore_search_errors_total",
			Help: "Total number of rejected or failed searches",
		}, []string{"error"}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symcore_completions_total",
			Help: "Total number of prefix completion requests",
		}),
		DemangleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symcore_demangle_cache_hits_total",
			Help: "Total number of demangled name cache hits",
		}),
		DemangleMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symcore_demangle_cache_misses_total",
			Help: "Total number of demangled name cache misses",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Expansions,
			m.Lookups,
			m.Searches,
			m.SearchErrors,
			m.Completions,
			m.DemangleHits,
			m.DemangleMisses,
		)
	}

	return m
}
