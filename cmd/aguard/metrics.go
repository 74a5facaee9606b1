package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_gateway_events",
	Help: "Gateway events queued for the moderation engine, by type",
}, []string{"type"})

var gatewayEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_gateway_events_dropped",
	Help: "Gateway events which could not be queued, by type",
}, []string{"type"})

var keepalivePings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_keepalive_pings",
	Help: "Self-ping requests, by outcome",
}, []string{"outcome"})
