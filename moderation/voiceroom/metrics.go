package voiceroom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_rooms_created",
	Help: "Number of ephemeral voice rooms created",
})

var roomsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aguard_rooms_deleted",
	Help: "Number of ephemeral voice rooms deleted after becoming empty",
})

var roomTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_room_transfers",
	Help: "Number of room ownership transfers, by cause",
}, []string{"cause"})

var roomControls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_room_controls",
	Help: "Number of room control operations, by operation",
}, []string{"op"})

var managedRooms = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "aguard_rooms_managed",
	Help: "Number of ephemeral voice rooms currently managed",
})
