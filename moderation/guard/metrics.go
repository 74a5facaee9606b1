package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var guardActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_guard_actions",
	Help: "Guarded changes, by kind and outcome",
}, []string{"kind", "outcome"})
