package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleetbox", Name: "trips_dispatched_total", Help: "Trips dispatched"})
	TripsCompletedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleetbox", Name: "trips_completed_total", Help: "Trips completed"})
	ShipmentsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleetbox", Name: "shipments_booked_total", Help: "Shipments booked onto trucks"})
	ShipmentsDelivered   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleetbox", Name: "shipments_delivered_total", Help: "Shipments delivered"})

	ValidationRejects = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleetbox", Name: "validation_rejects_total", Help: "Requests rejected by a business rule"},
		[]string{"rule"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleetbox", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetbox",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
