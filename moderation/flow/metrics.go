package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_flows",
	Help: "Interactive flows, by kind and outcome",
}, []string{"kind", "outcome"})
