package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	routes        *prometheus.CounterVec
	routeDuration prometheus.Histogram
	fallbacks     prometheus.Counter
	sessions      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocaresume_routes_total",
				Help: "Total number of routed queries by task label and backend",
			},
			[]string{"label", "backend"},
		),
		routeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vocaresume_route_duration_seconds",
				Help:    "Time spent routing a query",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vocaresume_router_fallbacks_total",
				Help: "Number of session routers that switched to keyword rules",
			},
		),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocaresume_sessions_active",
				Help: "Number of live session routers",
			},
		),
	}
	reg.MustRegister(m.routes, m.routeDuration, m.fallbacks, m.sessions)
	return m
}
