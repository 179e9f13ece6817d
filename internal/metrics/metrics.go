package metrics

import "github.com/prometheus/client_golang/prometheus"

var IndexMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "flatcomments",
	Subsystem: "index",
	Name:      "mutations",
}, []string{"event", "result"})

var DriftMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "flatcomments",
	Subsystem: "index",
	Name:      "drift_misses",
}, []string{"op"})

var Reindexed = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "flatcomments",
	Subsystem: "index",
	Name:      "reindexed_lists",
})

var ContentTypeCache = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "flatcomments",
	Subsystem: "contenttypes",
	Name:      "cache_lookups",
}, []string{"result"})

func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{IndexMutations, DriftMisses, Reindexed, ContentTypeCache} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
