package sanction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sanctionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_sanctions_applied",
	Help: "Number of sanctions recorded, by kind",
}, []string{"kind"})

var sanctionsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_sanctions_expired",
	Help: "Number of timed sanctions reversed on expiry",
})

var sanctionsReleased = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_sanctions_released",
	Help: "Number of manual releases",
})

var staleTimerFires = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_stale_timer_fires",
	Help: "Number of expiry timers which fired after their sanction was already reversed or superseded",
})

var exemptSkips = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_sanctions_exempt_skipped",
	Help: "Number of protective sanctions skipped because the member holds the exempt role",
})
