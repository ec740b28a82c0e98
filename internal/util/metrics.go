package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_confirmed_total",
		Help: "Total number of orders confirmed by auto-approval",
	})

	OrdersCanceledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_canceled_total",
		Help: "Total number of canceled orders",
	}, []string{"reason"})

	OrdersShippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_shipped_total",
		Help: "Total number of shipped orders",
	})

	OrdersDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_delivered_total",
		Help: "Total number of delivered orders",
	})

	InventoryReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reserve_latency_seconds",
		Help:    "Latency of inventory reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	InventoryReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed inventory reservations",
	}, []string{"reason"})

	VanAssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "van_assignments_total",
		Help: "Total number of van assignment attempts",
	}, []string{"result"})

	AgentAssignmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_assignments_total",
		Help: "Total number of delivery agent assignments",
	})

	RoutesBuiltTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routes_built_total",
		Help: "Total number of agent routes built",
	})

	RouteStopsPlanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_stops_planned",
		Help:    "Number of stops per built route",
		Buckets: []float64{1, 2, 5, 10, 20, 50},
	})

	RouteBuildLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_build_latency_seconds",
		Help:    "Latency of route optimization",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of events published to the dispatch topic",
	})

	NotificationsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_recorded_total",
		Help: "Total number of notification records written",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
