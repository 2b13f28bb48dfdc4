package domain

import (
	"math"

	"github.com/w3cp/cp-firmware/internal/model"
)

const (
	// EnergyDeltaThresholdKWh is the import energy change that warrants a
	// transmit on its own.
	EnergyDeltaThresholdKWh = 0.1
	// ImportPowerThresholdW separates "importing" from "idle" for change
	// detection.
	ImportPowerThresholdW = 50.0

	// energyTolerance absorbs float64 rounding so a delta of exactly
	// EnergyDeltaThresholdKWh between decimal meter readings still counts.
	energyTolerance = 1e-9
)

// Changed reports whether cur differs from prev in a way worth sending
// upstream. Timestamps, system info, sessions and EV info never count on their
// own; they ride along with the next significant change or the silence
// timeout.
func Changed(prev, cur *model.ChargePointStatus) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	if prev.ConnectionType != cur.ConnectionType {
		return true
	}
	if !sameTime(prev.OnlineSince, cur.OnlineSince) {
		return true
	}
	if len(prev.ChargePorts) != len(cur.ChargePorts) {
		return true
	}
	for i := range cur.ChargePorts {
		if portChanged(prev.ChargePorts[i], cur.ChargePorts[i]) {
			return true
		}
	}
	return false
}

func portChanged(p, c *model.ChargePort) bool {
	if (p == nil) != (c == nil) {
		return true
	}
	if p == nil {
		return false
	}
	return connectorChanged(p.Connector, c.Connector) || meteringChanged(p.Metering, c.Metering)
}

func connectorChanged(p, c *model.Connector) bool {
	if (p == nil) != (c == nil) {
		return true
	}
	if p == nil {
		return false
	}
	return p.Status != c.Status ||
		p.Iec61851State != c.Iec61851State ||
		!sameBool(p.RelayClosed, c.RelayClosed) ||
		!sameBool(p.Locked, c.Locked)
}

func meteringChanged(p, c *model.EnergyStatus) bool {
	if (p == nil) != (c == nil) {
		return true
	}
	if p == nil {
		return false
	}
	if p.EnergyImportKWh != nil && c.EnergyImportKWh != nil &&
		math.Abs(*c.EnergyImportKWh-*p.EnergyImportKWh) >= EnergyDeltaThresholdKWh-energyTolerance {
		return true
	}
	return importing(p) != importing(c)
}

func importing(e *model.EnergyStatus) bool {
	return e.ActivePowerImportW != nil && *e.ActivePowerImportW > ImportPowerThresholdW
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
