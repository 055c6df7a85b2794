package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterCacheHits          prometheus.Counter
	CounterCacheMisses        prometheus.Counter
	CounterCacheStaleServed   prometheus.Counter
	CounterCacheBgRefreshes   *prometheus.CounterVec
	CounterHistorySaves       prometheus.Counter
	CounterHistoryEvictions   prometheus.Counter
	CounterStorageErrors      prometheus.Counter

	// gauges
	GaugeLifeSignal prometheus.Gauge
}

func NewTestManager() *Manager {
	return NewManager("traintrack", "test", prometheus.NewRegistry())
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterCacheHits := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_hits",
		Help:      "The total number of fresh cache hits",
	})
	counterCacheMisses := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_misses",
		Help:      "The total number of cache misses",
	})
	counterCacheStaleServed := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_stale_served",
		Help:      "Cache reads answered with stale data after a fetch failure",
	})
	counterCacheBgRefreshes := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_background_refreshes",
		Help:      "Background cache refreshes, by outcome",
	}, []string{"outcome"})
	counterHistorySaves := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "history_saves",
		Help:      "The total number of saved workout entries",
	})
	counterHistoryEvictions := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "history_evictions",
		Help:      "Workout entries dropped by the retention cap",
	})
	counterStorageErrors := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "storage_errors",
		Help:      "Storage errors swallowed at the store boundary",
	})

	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	return &Manager{
		CounterCacheHits:        counterCacheHits,
		CounterCacheMisses:      counterCacheMisses,
		CounterCacheStaleServed: counterCacheStaleServed,
		CounterCacheBgRefreshes: counterCacheBgRefreshes,
		CounterHistorySaves:     counterHistorySaves,
		CounterHistoryEvictions: counterHistoryEvictions,
		CounterStorageErrors:    counterStorageErrors,
		GaugeLifeSignal:         gaugeLifeSignal,
	}
}
