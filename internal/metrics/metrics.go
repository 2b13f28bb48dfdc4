package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Status scheduler
	StatusEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cp_status_evaluations_total",
		Help: "Status scheduler ticks by outcome",
	}, []string{"outcome"})

	StatusTransmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cp_status_transmissions_total",
		Help: "Successful status transmissions by trigger",
	}, []string{"reason"})

	SendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cp_status_send_latency_seconds",
		Help:    "Latency of status transmissions",
		Buckets: prometheus.DefBuckets,
	})

	// Charge port
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_sessions_started_total",
		Help: "Charging sessions started on plug-in",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cp_sessions_completed_total",
		Help: "Charging sessions completed on unplug",
	})

	// Simulator
	SimulatedPowerW = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cp_sim_power_watts",
		Help: "Smoothed power drawn by the simulated vehicle",
	})

	SimulatedEnergyWh = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cp_sim_energy_wh",
		Help: "Cumulative energy delivered by the simulator",
	})
)

// Outcome labels for StatusEvaluations.
const (
	OutcomeNotVerified = "not_verified"
	OutcomeUnchanged   = "unchanged"
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
)

// Reason labels for StatusTransmissions.
const (
	ReasonChanged = "changed"
	ReasonTimeout = "timeout"
)
