package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_commands",
	Help: "Commands handled, by name and outcome",
}, []string{"name", "outcome"})
