package config

import "time"

// Central place for all application-wide timing constants and other defaults.
// Changing a value here immediately affects all components that import
// github.com/w3cp/cp-firmware/internal/config.

const (
	// Scheduling
	StatusEvalInterval    = 1 * time.Second   // Evaluate status for changes
	MaxStatusSilence      = 300 * time.Second // Resend unchanged status after this long
	SimulatorTickInterval = 1 * time.Second   // Advance the physics simulator

	// Operation time-outs (to avoid blocking goroutines)
	SendTimeout    = 5 * time.Second // Status send over any transport
	MQTTTimeout    = 5 * time.Second // MQTT connect / publish
	ReconnectDelay = 5 * time.Second // Wait before redialling a dropped WebSocket

	// Control API
	ControlShutdownTimeout = 5 * time.Second

	// Hardware
	DefaultThermalPath = "/sys/class/thermal"
)
