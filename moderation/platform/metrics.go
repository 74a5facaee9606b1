package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failed platform calls, by operation. Incremented by callers, which otherwise swallow the error.
var CallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_platform_call_errors",
	Help: "Number of failed (and tolerated) platform API calls",
}, []string{"op"})
