package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all configuration options for the charge-point firmware
type Config struct {
	// Identity
	ChargePointID   string `json:"charge_point_id"`  // Identifier announced to the backend
	FirmwareVersion string `json:"firmware_version"` // Reported in the system info block

	// Transport
	TransportURL string `json:"transport_url"` // mqtt://, mqtts://, ws://, wss:// or empty for none
	TLSInsecure  bool   `json:"tls_insecure"`  // Skip certificate verification on TLS transports

	// Local surfaces
	ControlAddr string `json:"control_addr"` // HTTP listen address for the control API, empty disables it

	// Simulator
	Simulate bool  `json:"simulate"` // Drive the charge port from the physics simulator
	SimSeed  int64 `json:"sim_seed"` // Seed for the simulator noise source

	// Hardware
	ChargePorts int `json:"charge_ports"` // Number of charge ports, only 1 is supported

	// Thermal
	ThermalPath string `json:"thermal_path"` // sysfs thermal zone directory

	// Application Configuration
	Verbose bool `json:"verbose"` // Enable verbose logging

	// Scheduling
	StatusInterval   time.Duration `json:"status_interval"`    // How often the status is evaluated
	MaxStatusSilence time.Duration `json:"max_status_silence"` // Resend even when unchanged after this long
}

// GetDefaultConfig returns a configuration with sensible defaults
func GetDefaultConfig() *Config {
	return &Config{
		FirmwareVersion:  "dev",
		ControlAddr:      ":8080",
		Simulate:         true,
		SimSeed:          1,
		ChargePorts:      1,
		ThermalPath:      DefaultThermalPath,
		StatusInterval:   StatusEvalInterval,
		MaxStatusSilence: MaxStatusSilence,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ChargePointID) == "" {
		return fmt.Errorf("charge point ID is required")
	}

	if c.TransportURL != "" {
		u, err := url.Parse(c.TransportURL)
		if err != nil {
			return fmt.Errorf("invalid transport URL: %w", err)
		}
		switch u.Scheme {
		case "mqtt", "mqtts", "ws", "wss":
		default:
			return fmt.Errorf("transport URL must use supported protocol (mqtt://, mqtts://, ws://, or wss://)")
		}
		if u.Host == "" {
			return fmt.Errorf("transport URL has no host")
		}
	}

	if c.ChargePorts != 1 {
		return fmt.Errorf("exactly one charge port is supported, got %d", c.ChargePorts)
	}

	// Set defaults for invalid values
	if c.StatusInterval <= 0 {
		c.StatusInterval = StatusEvalInterval
	}
	if c.MaxStatusSilence <= 0 {
		c.MaxStatusSilence = MaxStatusSilence
	}

	return nil
}

// HasTransport returns true if an upstream transport is configured
func (c *Config) HasTransport() bool {
	return c.TransportURL != ""
}

// UsesMQTT returns true if the transport is an MQTT broker
func (c *Config) UsesMQTT() bool {
	return strings.HasPrefix(c.TransportURL, "mqtt://") || strings.HasPrefix(c.TransportURL, "mqtts://")
}

// UsesWebSocket returns true if the transport is a raw WebSocket backend
func (c *Config) UsesWebSocket() bool {
	return strings.HasPrefix(c.TransportURL, "ws://") || strings.HasPrefix(c.TransportURL, "wss://")
}

// HasControl returns true if the local control API should be served
func (c *Config) HasControl() bool {
	return c.ControlAddr != ""
}
