package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ridesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rides_created_total",
		Help: "Total number of ride requests accepted.",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_transitions_total",
		Help: "Ride status transition attempts grouped by outcome.",
	}, []string{"result"})
)
